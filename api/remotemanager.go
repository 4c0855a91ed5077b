package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/aouyang1/photoslideshow/settings"
	"github.com/aouyang1/photoslideshow/util"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	mapset "github.com/deckarep/golang-set/v2"
)

const remoteSyncTimeout = 30 * time.Minute

// ObjectStore lists and fetches the images of a remote folder.
type ObjectStore interface {
	ListKeys(ctx context.Context) ([]string, error)
	Download(ctx context.Context, key, dst string) error
}

type s3Store struct {
	client *s3.Client
	bucket string
}

func newS3Store(ctx context.Context, bucket, profile string) (*s3Store, error) {
	var opts []func(*config.LoadOptions) error
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}

	// Load the Shared AWS Configuration (~/.aws/config)
	ctxCfg, cancelCfg := context.WithTimeout(ctx, 3*time.Second)
	defer cancelCfg()
	cfg, err := config.LoadDefaultConfig(ctxCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load aws config: %w", err)
	}

	return &s3Store{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}, nil
}

func (s *s3Store) ListKeys(ctx context.Context) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("unable to list bucket %s: %w", s.bucket, err)
		}
		for _, object := range page.Contents {
			keys = append(keys, aws.ToString(object.Key))
		}
	}
	return keys, nil
}

func (s *s3Store) Download(ctx context.Context, key, dst string) error {
	downloader := manager.NewDownloader(s.client)

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("unable to create file for s3 download, %s, %w", key, err)
	}
	defer f.Close()

	if _, err := downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		os.Remove(dst)
		return fmt.Errorf("unable to download object from s3, %s, %w", key, err)
	}
	return nil
}

// RemoteManager mirrors the images of a bucket into a local folder that the
// slideshow plays from, and signals Updated when the folder changed.
type RemoteManager struct {
	store      ObjectStore
	outputPath string
	interval   time.Duration

	Updated chan struct{}
}

func NewRemoteManager(ctx context.Context, cfg settings.Remote, interval time.Duration) (*RemoteManager, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("no s3 bucket configured")
	}
	store, err := newS3Store(ctx, cfg.Bucket, cfg.Profile)
	if err != nil {
		return nil, err
	}
	return NewRemoteManagerWithStore(store, cfg.Folder, interval), nil
}

func NewRemoteManagerWithStore(store ObjectStore, outputPath string, interval time.Duration) *RemoteManager {
	return &RemoteManager{
		store:      store,
		outputPath: outputPath,
		interval:   interval,
		Updated:    make(chan struct{}, 1),
	}
}

func (r *RemoteManager) getLocalFiles() (mapset.Set[string], error) {
	dirs, err := os.ReadDir(r.outputPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read directory, %s, %w", r.outputPath, err)
	}

	localFiles := mapset.NewSet[string]()
	for dir := range slices.Values(dirs) {
		name := dir.Name()
		if dir.IsDir() || !util.IsSupported(name) {
			continue
		}
		localFiles.Add(name)
	}
	return localFiles, nil
}

func (r *RemoteManager) getRemoteFiles(ctx context.Context) (mapset.Set[string], error) {
	keys, err := r.store.ListKeys(ctx)
	if err != nil {
		return nil, err
	}

	remoteFiles := mapset.NewSet[string]()
	for key := range slices.Values(keys) {
		// the folder is flat, nested keys are not mirrored
		if strings.Contains(key, "/") || !util.IsSupported(key) {
			continue
		}
		remoteFiles.Add(key)
	}

	if remoteFiles.Cardinality() == 0 {
		slog.Info("no remote files found")
	}
	return remoteFiles, nil
}

// SyncFolder downloads new remote images and removes local ones that are gone
// from the bucket. It reports whether the folder changed.
func (r *RemoteManager) SyncFolder(ctx context.Context) (bool, error) {
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return false, fmt.Errorf("unable to create remote folder, %s, %w", r.outputPath, err)
	}

	localFiles, err := r.getLocalFiles()
	if err != nil {
		return false, err
	}

	remoteFiles, err := r.getRemoteFiles(ctx)
	if err != nil {
		return false, err
	}

	changed := false
	toDelete := localFiles.Difference(remoteFiles).ToSlice()
	toDownload := remoteFiles.Difference(localFiles).ToSlice()
	if len(toDelete) > 0 {
		slog.Info("deleting local files", "count", len(toDelete), "names", toDelete)
		for name := range slices.Values(toDelete) {
			if err := os.Remove(filepath.Join(r.outputPath, name)); err != nil {
				slog.Warn("unable to remove local file", "name", name, "error", err)
				continue
			}
			changed = true
		}
	}
	if len(toDownload) > 0 {
		slog.Info("adding files", "count", len(toDownload), "names", toDownload)
		for name := range slices.Values(toDownload) {
			if err := r.store.Download(ctx, name, filepath.Join(r.outputPath, name)); err != nil {
				slog.Warn("error while downloading s3 object", "name", name, "error", err)
				continue
			}
			changed = true
		}
	}

	// Only signal update if there were actual changes
	if changed {
		select {
		case r.Updated <- struct{}{}:
		default:
		}
	}
	return changed, nil
}

func (r *RemoteManager) sync(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, remoteSyncTimeout)
	defer cancel()
	if _, err := r.SyncFolder(ctx); err != nil {
		slog.Warn("error while syncing with remote", "error", err)
	}
}

func (r *RemoteManager) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Initial sync
	r.sync(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sync(ctx)
		}
	}
}
