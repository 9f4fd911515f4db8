package downloader

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/cockroachdb/errors"
)

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) / 2, nil }

func TestCopyChunksReportsEachChunkAfterWrite(t *testing.T) {
	src := bytes.Repeat([]byte("x"), 3*copyBufferSize+10)
	var dst bytes.Buffer
	var reported []int
	progress := writerFunc(func(p []byte) (int, error) {
		if dst.Len() < sumInts(reported)+len(p) {
			t.Fatalf("progress reported before the chunk was written")
		}
		reported = append(reported, len(p))
		return len(p), nil
	})

	n, err := copyChunks(context.Background(), &dst, bytes.NewReader(src), progress)
	if err != nil {
		t.Fatalf("copyChunks: %v", err)
	}
	if n != int64(len(src)) || !bytes.Equal(dst.Bytes(), src) {
		t.Fatalf("copied %d bytes, want %d", n, len(src))
	}
	for _, size := range reported {
		if size > copyBufferSize {
			t.Fatalf("chunk of %d bytes exceeds buffer size", size)
		}
	}
	if sumInts(reported) != len(src) {
		t.Fatalf("reported %d bytes, want %d", sumInts(reported), len(src))
	}
}

func TestCopyChunksErrors(t *testing.T) {
	readErr := errors.New("read failed")
	if _, err := copyChunks(context.Background(), io.Discard, iotest.ErrReader(readErr), nil); !errors.Is(err, readErr) {
		t.Fatalf("expected read error, got %v", err)
	}

	if _, err := copyChunks(context.Background(), shortWriter{}, strings.NewReader("abcdef"), nil); !errors.Is(err, io.ErrShortWrite) {
		t.Fatalf("expected short write, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := copyChunks(ctx, io.Discard, strings.NewReader("abc"), nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestCopyChunksDataWithEOF(t *testing.T) {
	var dst bytes.Buffer
	n, err := copyChunks(context.Background(), &dst, iotest.DataErrReader(strings.NewReader("hello")), nil)
	if err != nil || n != 5 || dst.String() != "hello" {
		t.Fatalf("expected 5 bytes without error, got %d, %v", n, err)
	}
}

func TestProgressWriterEmitsRunningTotal(t *testing.T) {
	task := newDownloadTask(labelCombined, combinedStream(18, 360, "mp4", 10), "x")
	sink := &recordingSink{}
	pw := newProgressWriter(task, sink)

	_, _ = pw.Write(make([]byte, 4))
	_, _ = pw.Write(make([]byte, 6))
	pw.emit(EventDone, nil)

	events := sink.forTask(labelCombined)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Downloaded != 4 || events[1].Downloaded != 10 || events[2].Kind != EventDone {
		t.Fatalf("unexpected events %+v", events)
	}
	if pct, ok := events[1].Percent(); !ok || pct != 100 {
		t.Fatalf("expected 100%%, got %v %v", pct, ok)
	}
}

func TestEventPercent(t *testing.T) {
	cases := []struct {
		event Event
		want  float64
		ok    bool
	}{
		{event: Event{Downloaded: 50, Expected: 200}, want: 25, ok: true},
		{event: Event{Downloaded: 5, Expected: UnknownSize}, want: 0, ok: false},
		{event: Event{Downloaded: 5, Expected: 0}, want: 0, ok: false},
		{event: Event{Downloaded: 300, Expected: 200}, want: 100, ok: true},
	}
	for _, tc := range cases {
		got, ok := tc.event.Percent()
		if got != tc.want || ok != tc.ok {
			t.Fatalf("Percent(%+v) = %v, %v; want %v, %v", tc.event, got, ok, tc.want, tc.ok)
		}
	}
}

func TestRateLimitedWriter(t *testing.T) {
	var buf bytes.Buffer
	if w := newRateLimitedWriter(context.Background(), &buf, 0); w != io.Writer(&buf) {
		t.Fatal("zero rate must return the writer unchanged")
	}

	w := newRateLimitedWriter(context.Background(), &buf, 1000)
	start := time.Now()
	if _, err := w.Write(make([]byte, 1500)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 400*time.Millisecond {
		t.Fatalf("expected the limiter to delay the write, took %s", elapsed)
	}
	if buf.Len() != 1500 {
		t.Fatalf("expected 1500 bytes written, got %d", buf.Len())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	limited := newRateLimitedWriter(ctx, io.Discard, 10)
	if _, err := limited.Write(make([]byte, 100)); err == nil {
		t.Fatal("expected cancelled context to stop the write")
	}
}

func TestDiscardProgressAndSinkFunc(t *testing.T) {
	DiscardProgress.Handle(Event{Task: "x"})

	var got []EventKind
	sink := SinkFunc(func(e Event) { got = append(got, e.Kind) })
	sink.Handle(Event{Kind: EventStart})
	if len(got) != 1 || got[0] != EventStart {
		t.Fatalf("unexpected events %v", got)
	}
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func sumInts(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}
