package downloader

import (
	"bytes"
	"context"
	"io"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
)

var errConnectionReset = errors.New("connection reset by peer")

type fakeStream struct {
	body []byte
	// declared overrides the length returned by Open; zero means len(body).
	declared int64
	// With fails set, the body returns errConnectionReset after failAfter bytes.
	fails     bool
	failAfter int
	openErr   error
}

// fakeSource serves in-memory stream bodies keyed by stream ID.
type fakeSource struct {
	catalog    *Catalog
	resolveErr error
	streams    map[int]fakeStream

	mu       sync.Mutex
	resolved []string
	opened   []int
}

func (f *fakeSource) Resolve(ctx context.Context, target string) (*Catalog, error) {
	f.mu.Lock()
	f.resolved = append(f.resolved, target)
	f.mu.Unlock()
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.catalog, nil
}

func (f *fakeSource) Open(ctx context.Context, catalog *Catalog, stream StreamDescriptor) (io.ReadCloser, int64, error) {
	f.mu.Lock()
	f.opened = append(f.opened, stream.ID)
	f.mu.Unlock()

	fs, ok := f.streams[stream.ID]
	if !ok {
		return nil, 0, errors.Newf("unknown stream %d", stream.ID)
	}
	if fs.openErr != nil {
		return nil, 0, fs.openErr
	}
	size := fs.declared
	if size == 0 {
		size = int64(len(fs.body))
	}
	var r io.Reader = bytes.NewReader(fs.body)
	if fs.fails && fs.failAfter <= len(fs.body) {
		r = io.MultiReader(bytes.NewReader(fs.body[:fs.failAfter]), errReader{errConnectionReset})
	}
	return io.NopCloser(r), size, nil
}

func (f *fakeSource) openedIDs() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.opened...)
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

// fakeMerger concatenates both inputs into the output instead of running ffmpeg.
type fakeMerger struct {
	available bool
	err       error

	mu    sync.Mutex
	calls [][3]string
}

func (m *fakeMerger) Available() bool { return m.available }

func (m *fakeMerger) Merge(ctx context.Context, videoPath, audioPath, outputPath string) error {
	m.mu.Lock()
	m.calls = append(m.calls, [3]string{videoPath, audioPath, outputPath})
	m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	video, err := os.ReadFile(videoPath)
	if err != nil {
		return err
	}
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, append(video, audio...), 0o644)
}

func (m *fakeMerger) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// recordingSink keeps every event it receives.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Handle(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) forTask(task string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if e.Task == task {
			out = append(out, e)
		}
	}
	return out
}

func payload(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i%251)
	}
	return b
}
