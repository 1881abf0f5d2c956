// Package video holds the data model shared by the scanner, the sampler, and
// the fingerprinting engine.
package video

import (
	"image"
	"time"
)

// File is a candidate video discovered by directory traversal. The engine
// treats it as read-only.
type File struct {
	Path    string    `json:"path" yaml:"path"`
	Size    int64     `json:"size" yaml:"size"`
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`
	// Duration is zero until probed.
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// ModUnixNano returns the modification time used as part of the cache key.
func (f File) ModUnixNano() int64 {
	return f.ModTime.UnixNano()
}

// FrameSample is one decoded frame at a sampled timestamp.
type FrameSample struct {
	Index     int
	Timestamp time.Duration
	Image     image.Image
}
