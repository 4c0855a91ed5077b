// Package models tracks all api models for request and responses
package models

import (
	"github.com/aouyang1/photoslideshow/slideshow"
	"github.com/aouyang1/photoslideshow/store"
)

type ImageListResponse struct {
	Images []store.Image `json:"images"`
	Total  int           `json:"total"`
	Page   int           `json:"page"`
	Limit  int           `json:"limit"`
}

type ActionResponse struct {
	Action string           `json:"action"`
	Status slideshow.Status `json:"status"`
}

type StatusResponse struct {
	slideshow.Status
	Uptime string `json:"uptime"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type DisplayStateResponse struct {
	Enabled bool `json:"enabled"`
}

type CaptionStateResponse struct {
	ShowCaption bool   `json:"show_caption"`
	Path        string `json:"path"`
}
