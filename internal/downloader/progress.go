package downloader

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"
)

const copyBufferSize = 32 * 1024

// EventKind identifies what happened to a task.
type EventKind string

const (
	EventStart    EventKind = "start"
	EventProgress EventKind = "progress"
	EventDone     EventKind = "done"
	EventFailed   EventKind = "failed"
)

// Event is one progress notification. Expected is UnknownSize when the
// stream length is not known; renderers then show an absolute byte count.
type Event struct {
	Task       string
	Kind       EventKind
	Downloaded int64
	Expected   int64
	Err        error
}

// Percent returns completion in [0,100] and false when the size is unknown.
func (e Event) Percent() (float64, bool) {
	if e.Expected <= 0 {
		return 0, false
	}
	pct := float64(e.Downloaded) * 100 / float64(e.Expected)
	if pct > 100 {
		pct = 100
	}
	return pct, true
}

// ProgressSink receives events from every task of a request. Events of one
// task arrive in order; events of different tasks may interleave and Handle
// may be called from several goroutines.
type ProgressSink interface {
	Handle(Event)
}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(Event)

func (f SinkFunc) Handle(e Event) { f(e) }

type discardSink struct{}

func (discardSink) Handle(Event) {}

// DiscardProgress drops every event.
var DiscardProgress ProgressSink = discardSink{}

// progressWriter counts bytes for one task and forwards each chunk as an event.
type progressWriter struct {
	task *DownloadTask
	sink ProgressSink
}

func newProgressWriter(task *DownloadTask, sink ProgressSink) *progressWriter {
	if sink == nil {
		sink = DiscardProgress
	}
	return &progressWriter{task: task, sink: sink}
}

func (p *progressWriter) Write(b []byte) (int, error) {
	total := p.task.advance(len(b))
	p.sink.Handle(Event{
		Task:       p.task.Label,
		Kind:       EventProgress,
		Downloaded: total,
		Expected:   p.task.ExpectedBytes(),
	})
	return len(b), nil
}

func (p *progressWriter) emit(kind EventKind, err error) {
	p.sink.Handle(Event{
		Task:       p.task.Label,
		Kind:       kind,
		Downloaded: p.task.DownloadedBytes(),
		Expected:   p.task.ExpectedBytes(),
		Err:        err,
	})
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	select {
	case <-r.ctx.Done():
		return 0, r.ctx.Err()
	default:
		return r.r.Read(p)
	}
}

// rateLimitedWriter blocks each write until the limiter admits its bytes.
type rateLimitedWriter struct {
	ctx     context.Context
	limiter *rate.Limiter
	w       io.Writer
}

func newRateLimitedWriter(ctx context.Context, w io.Writer, bytesPerSecond int64) io.Writer {
	if bytesPerSecond <= 0 {
		return w
	}
	burst := copyBufferSize
	if bytesPerSecond < int64(burst) {
		burst = int(bytesPerSecond)
	}
	return &rateLimitedWriter{
		ctx:     ctx,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burst),
		w:       w,
	}
}

func (w *rateLimitedWriter) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n := len(p) - written
		if n > w.limiter.Burst() {
			n = w.limiter.Burst()
		}
		if err := w.limiter.WaitN(w.ctx, n); err != nil {
			return written, err
		}
		m, err := w.w.Write(p[written : written+n])
		written += m
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// copyChunks moves src to dst one buffer at a time. Each chunk is written to
// the destination before progress is reported and before the next read, so
// at most one chunk is held in memory.
func copyChunks(ctx context.Context, dst io.Writer, src io.Reader, progress io.Writer) (int64, error) {
	reader := &contextReader{ctx: ctx, r: src}
	buf := make([]byte, copyBufferSize)
	var total int64
	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			written, err := dst.Write(buf[:n])
			total += int64(written)
			if err != nil {
				return total, errors.Wrap(err, "writing chunk")
			}
			if written != n {
				return total, io.ErrShortWrite
			}
			if progress != nil {
				_, _ = progress.Write(buf[:n])
			}
		}
		if errors.Is(readErr, io.EOF) {
			return total, nil
		}
		if readErr != nil {
			return total, readErr
		}
	}
}
