// Package resolver turns media URLs into byte streams, format listings and
// fetch-to-disk operations. The concrete implementation shells out to yt-dlp;
// everything above this package depends only on the Resolver interface.
package resolver

import (
	"context"
	"io"

	"github.com/eagleeye/backend/internal/media"
)

// Selection is the quality and kind a client asked for.
type Selection struct {
	Quality media.Quality
	Kind    media.Kind
}

// Source is a live upstream byte stream for a resolved media URL. The caller
// owns Body and must close it.
type Source struct {
	Title       string
	ContentType string
	Length      int64 // -1 when unknown
	Body        io.ReadCloser
}

// VideoFormat describes one available video variant.
type VideoFormat struct {
	FormatID string  `json:"format_id"`
	Quality  string  `json:"quality"`
	Height   int     `json:"height"`
	Ext      string  `json:"ext"`
	Filesize int64   `json:"filesize,omitempty"`
	FPS      float64 `json:"fps,omitempty"`
	HasAudio bool    `json:"has_audio"`
}

// AudioFormat describes one available audio-only variant.
type AudioFormat struct {
	FormatID string `json:"format_id"`
	Quality  string `json:"quality"`
	Bitrate  int    `json:"abr"`
	Ext      string `json:"ext"`
	Filesize int64  `json:"filesize,omitempty"`
}

// FormatList is the set of quality variants available for a URL.
type FormatList struct {
	Title string        `json:"title"`
	Video []VideoFormat `json:"video_formats"`
	Audio []AudioFormat `json:"audio_formats"`
}

// FetchResult describes a completed fetch-to-disk operation.
type FetchResult struct {
	FilePath string
	Title    string
}

// ProgressFunc receives fetch progress as a fraction in [0, 1]. Callbacks may
// arrive at irregular intervals; callers must not assume ordering.
type ProgressFunc func(fraction float64)

// Resolver resolves media URLs. It is the boundary to the external
// extraction machinery; implementations must not be assumed cheap.
type Resolver interface {
	// Resolve returns a live byte source for the URL matching the selection.
	// It fails outright when no usable source exists; it never returns a
	// partially started stream.
	Resolve(ctx context.Context, url string, sel Selection) (*Source, error)

	// Formats lists the quality variants available for the URL.
	Formats(ctx context.Context, url string) (*FormatList, error)

	// Fetch downloads the URL to a file under destDir, reporting progress.
	Fetch(ctx context.Context, url string, sel Selection, destDir string, progress ProgressFunc) (*FetchResult, error)
}
