// Package store database for the enumerated library and playback position
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Database struct {
	db *sql.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &Database{db: db}

	// Create table if it doesn't exist
	if err := database.createTable(); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return database, nil
}

func (d *Database) createTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS images (
		path   TEXT NOT NULL,
		folder TEXT NOT NULL,
		"order" INTEGER NOT NULL,
		PRIMARY KEY (path)
	);
	CREATE INDEX IF NOT EXISTS idx_images_order ON images("order");
	CREATE TABLE IF NOT EXISTS playback (
		singleton INTEGER NOT NULL DEFAULT 1 CHECK (singleton = 1),
		path      TEXT NOT NULL,
		shown_at  INTEGER NOT NULL,
		PRIMARY KEY (singleton)
	);
	`
	_, err := d.db.Exec(query)
	return err
}

// ReplaceImages swaps the stored library snapshot for images in one transaction.
func (d *Database) ReplaceImages(images []Image) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM images`); err != nil {
		return fmt.Errorf("failed to clear images: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO images (path, folder, "order") VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, img := range images {
		if _, err := stmt.Exec(img.Path, img.Folder, img.Order); err != nil {
			return fmt.Errorf("failed to insert image %s: %w", img.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit images: %w", err)
	}
	return nil
}

func (d *Database) GetImages(limit int, offset int) ([]Image, error) {
	query := `
		SELECT path, folder, "order"
		FROM images
		ORDER BY "order" ASC
		LIMIT ? OFFSET ?
	`
	rows, err := d.db.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.Path, &img.Folder, &img.Order); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, img)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return images, nil
}

// ErrImageNotFound is returned when no image has the requested order.
var ErrImageNotFound = errors.New("image not found")

func (d *Database) GetImage(order int) (*Image, error) {
	query := `SELECT path, folder, "order" FROM images WHERE "order" = ?`
	var img Image
	err := d.db.QueryRow(query, order).Scan(&img.Path, &img.Folder, &img.Order)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %d", ErrImageNotFound, order)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return &img, nil
}

func (d *Database) GetImageCount() (int, error) {
	query := `SELECT COUNT(*) FROM images`
	var count int
	err := d.db.QueryRow(query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get image count: %w", err)
	}
	return count, nil
}

// GetPlayback returns the last shown image. Path is empty when nothing has
// been shown yet.
func (d *Database) GetPlayback() (*Playback, error) {
	const query = `
		SELECT path,
		       shown_at
		FROM playback
		WHERE singleton = 1
	`

	var path string
	var shownAt int64

	err := d.db.QueryRow(query).Scan(&path, &shownAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &Playback{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get playback: %w", err)
	}

	return &Playback{
		Path:    path,
		ShownAt: time.Unix(shownAt, 0),
	}, nil
}

// SavePlayback records path as the image on screen.
func (d *Database) SavePlayback(path string, shownAt time.Time) error {
	const stmt = `
		INSERT INTO playback (
			singleton,
			path,
			shown_at
		) VALUES (1, ?, ?)
		ON CONFLICT(singleton) DO UPDATE SET
			path     = excluded.path,
			shown_at = excluded.shown_at
	`

	if _, err := d.db.Exec(stmt, path, shownAt.Unix()); err != nil {
		return fmt.Errorf("upsert playback: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}
