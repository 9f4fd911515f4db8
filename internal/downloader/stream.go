package downloader

import (
	"context"
	"io"
	"time"
)

// UnknownSize marks a byte count the site did not declare.
const UnknownSize int64 = -1

// StreamDescriptor describes one candidate media stream of a catalog.
type StreamDescriptor struct {
	// ID is the site's identifier for the stream (the itag on YouTube).
	ID           int
	HasVideo     bool
	HasAudio     bool
	Container    string
	MimeType     string
	QualityLabel string
	// ResolutionRank orders video quality, higher is better. Zero for audio-only streams.
	ResolutionRank int
	// AudioBitrateRank orders audio quality, higher is better.
	AudioBitrateRank int
	// SizeBytes is the declared size, or UnknownSize.
	SizeBytes int64
}

// IsCombined reports whether the stream carries both video and audio.
func (s StreamDescriptor) IsCombined() bool { return s.HasVideo && s.HasAudio }

// IsVideoOnly reports whether the stream carries video without audio.
func (s StreamDescriptor) IsVideoOnly() bool { return s.HasVideo && !s.HasAudio }

// IsAudioOnly reports whether the stream carries audio without video.
func (s StreamDescriptor) IsAudioOnly() bool { return s.HasAudio && !s.HasVideo }

// SizeKnown reports whether the site declared a size for the stream.
func (s StreamDescriptor) SizeKnown() bool { return s.SizeBytes > 0 }

// Extension returns the file extension used when saving the stream on its own.
func (s StreamDescriptor) Extension() string {
	switch {
	case s.Container == "":
		return "bin"
	case s.Container == "mp4" && s.IsAudioOnly():
		return "m4a"
	default:
		return s.Container
	}
}

// Catalog is the resolved view of one target: its metadata and candidate streams.
type Catalog struct {
	ID       string
	Title    string
	Author   string
	Duration time.Duration
	Streams  []StreamDescriptor

	// handle is the site-specific object the Source needs to open streams.
	handle any
}

// Source resolves targets into catalogs and opens the byte stream of a
// descriptor from a catalog it produced.
type Source interface {
	Resolve(ctx context.Context, target string) (*Catalog, error)
	// Open returns the stream body and its length, or UnknownSize.
	Open(ctx context.Context, catalog *Catalog, stream StreamDescriptor) (io.ReadCloser, int64, error)
}
