package downloader

import (
	"context"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/kkdai/youtube/v2"
)

const (
	minChunkSize     int64 = 256 * 1024      // 256KB keeps progress responsive on small files
	maxChunkSize     int64 = 2 * 1024 * 1024 // cap to avoid excessive requests on large files
	targetChunkCount int64 = 64
)

var qualityHeightRe = regexp.MustCompile(`([0-9]{3,4})p`)

// YouTubeSource resolves YouTube URLs and opens their streams.
type YouTubeSource struct {
	client YouTubeClient
	// mu serializes chunk-size tuning with the stream request that uses it.
	mu sync.Mutex
}

// NewYouTubeSource returns a source backed by the YouTube client.
func NewYouTubeSource(timeout time.Duration) *YouTubeSource {
	return newYouTubeSourceWithClient(&youtubeClientAdapter{
		&youtube.Client{HTTPClient: newHTTPClient(timeout)},
	})
}

func newYouTubeSourceWithClient(client YouTubeClient) *YouTubeSource {
	return &YouTubeSource{client: client}
}

func (s *YouTubeSource) Resolve(ctx context.Context, target string) (*Catalog, error) {
	video, err := s.client.GetVideoContext(ctx, target)
	if err != nil {
		return nil, errors.Wrap(err, "fetching metadata")
	}
	if video == nil {
		return nil, errors.Newf("fetching metadata: no video returned for %s", target)
	}
	return catalogFromVideo(video), nil
}

func (s *YouTubeSource) Open(ctx context.Context, catalog *Catalog, stream StreamDescriptor) (io.ReadCloser, int64, error) {
	video, ok := catalog.handle.(*youtube.Video)
	if !ok || video == nil {
		return nil, 0, errors.New("catalog was not produced by the YouTube source")
	}
	format := findFormat(video, stream)
	if format == nil {
		return nil, 0, errors.Newf("stream %d not present in catalog %s", stream.ID, catalog.ID)
	}

	s.mu.Lock()
	adjustChunkSize(s.client, format.ContentLength)
	body, size, err := s.client.GetStreamContext(ctx, video, format)
	s.mu.Unlock()
	if err != nil {
		return nil, 0, err
	}
	if size <= 0 {
		size = UnknownSize
		if format.ContentLength > 0 {
			size = format.ContentLength
		}
	}
	return body, size, nil
}

// adjustChunkSize picks a smaller chunk size for the YouTube client to keep
// progress updates frequent without spawning thousands of requests.
func adjustChunkSize(client YouTubeClient, contentLength int64) {
	if client == nil || contentLength <= 0 {
		return
	}
	chunk := contentLength / targetChunkCount
	if chunk < minChunkSize {
		chunk = minChunkSize
	} else if chunk > maxChunkSize {
		chunk = maxChunkSize
	}
	client.SetChunkSize(chunk)
}

func findFormat(video *youtube.Video, stream StreamDescriptor) *youtube.Format {
	for i := range video.Formats {
		f := &video.Formats[i]
		if f.ItagNo == stream.ID && f.MimeType == stream.MimeType {
			return f
		}
	}
	return nil
}

func catalogFromVideo(video *youtube.Video) *Catalog {
	streams := make([]StreamDescriptor, 0, len(video.Formats))
	for _, f := range video.Formats {
		streams = append(streams, descriptorFromFormat(f))
	}
	return &Catalog{
		ID:       video.ID,
		Title:    video.Title,
		Author:   video.Author,
		Duration: video.Duration,
		Streams:  streams,
		handle:   video,
	}
}

func descriptorFromFormat(f youtube.Format) StreamDescriptor {
	mime := strings.ToLower(f.MimeType)
	hasVideo := f.Width > 0 || f.Height > 0 || strings.HasPrefix(mime, "video/")
	hasAudio := f.AudioChannels > 0

	d := StreamDescriptor{
		ID:           f.ItagNo,
		HasVideo:     hasVideo,
		HasAudio:     hasAudio,
		Container:    mimeToExt(f.MimeType),
		MimeType:     f.MimeType,
		QualityLabel: f.QualityLabel,
		SizeBytes:    UnknownSize,
	}
	if f.ContentLength > 0 {
		d.SizeBytes = f.ContentLength
	}
	if hasVideo {
		d.ResolutionRank = f.Height
		if d.ResolutionRank == 0 {
			d.ResolutionRank = parseQualityHeight(f.QualityLabel)
		}
	}
	if hasAudio {
		d.AudioBitrateRank = bitrateForFormat(&f)
	}
	return d
}

// parseQualityHeight reads the height out of labels like "1080p60".
func parseQualityHeight(label string) int {
	m := qualityHeightRe.FindStringSubmatch(label)
	if len(m) < 2 {
		return 0
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return v
}

func bitrateForFormat(f *youtube.Format) int {
	if f.Bitrate > 0 {
		return f.Bitrate
	}
	if f.AverageBitrate > 0 {
		return f.AverageBitrate
	}
	return 0
}
