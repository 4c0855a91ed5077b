// Package client talks to a running slideshow's control server
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aouyang1/photoslideshow/api/models"
	"github.com/aouyang1/photoslideshow/slideshow"
)

type ControlClient struct {
	baseURL string
	client  *http.Client
}

func NewControlClient(baseURL string) *ControlClient {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &ControlClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Do sends an action and returns the slideshow state after it was queued.
func (cc *ControlClient) Do(ctx context.Context, action slideshow.Action) (slideshow.Status, error) {
	var resp models.ActionResponse
	err := cc.call(ctx, http.MethodPost, "/slideshow/"+string(action), &resp)
	return resp.Status, err
}

func (cc *ControlClient) Play(ctx context.Context, index int) (slideshow.Status, error) {
	var resp models.ActionResponse
	err := cc.call(ctx, http.MethodPost, fmt.Sprintf("/slideshow/play/%d", index), &resp)
	return resp.Status, err
}

// SetCaption turns captions on or off in the slideshow's settings file.
func (cc *ControlClient) SetCaption(ctx context.Context, show bool) error {
	state := "0"
	if show {
		state = "1"
	}
	var resp models.CaptionStateResponse
	return cc.call(ctx, http.MethodPut, "/settings/caption/"+state, &resp)
}

func (cc *ControlClient) Status(ctx context.Context) (slideshow.Status, error) {
	var resp models.StatusResponse
	err := cc.call(ctx, http.MethodGet, "/status", &resp)
	return resp.Status, err
}

func (cc *ControlClient) call(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, cc.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := cc.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp models.ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("server error: %s", errResp.Error)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
