package store

import "time"

type Image struct {
	Path   string `json:"path"`
	Folder string `json:"folder"`
	Order  int    `json:"order"`
}

type Playback struct {
	Path    string    `json:"path"`
	ShownAt time.Time `json:"shown_at"`
}
