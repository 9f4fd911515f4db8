package downloader

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// Progress display modes accepted by NewRenderer.
const (
	ProgressAuto = "auto"
	ProgressBar  = "bar"
	ProgressTUI  = "tui"
	ProgressLog  = "log"
	ProgressJSON = "json"
	ProgressNone = "none"
)

// ProgressModes lists the valid display modes.
var ProgressModes = []string{ProgressAuto, ProgressBar, ProgressTUI, ProgressLog, ProgressJSON, ProgressNone}

// Renderer is a ProgressSink that owns terminal state and must be closed.
type Renderer interface {
	ProgressSink
	Close() error
}

type nopRenderer struct{ ProgressSink }

func (nopRenderer) Close() error { return nil }

// NewRenderer builds the sink for mode. In auto mode a terminal gets bars,
// or the full-screen view when the split tasks run in parallel; anything
// else gets log lines.
func NewRenderer(ctx context.Context, mode string, out *os.File, parallel bool, logger *zap.Logger) (Renderer, error) {
	if logger == nil {
		logger = zap.L()
	}
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == ProgressAuto || mode == "" {
		switch {
		case !isTerminal(out):
			mode = ProgressLog
		case parallel:
			mode = ProgressTUI
		default:
			mode = ProgressBar
		}
	}

	switch mode {
	case ProgressBar:
		return newBarSink(out), nil
	case ProgressTUI:
		pm := NewProgressManager(out)
		pm.Start(ctx)
		return pm, nil
	case ProgressLog:
		return nopRenderer{newLogSink(logger)}, nil
	case ProgressJSON:
		return nopRenderer{newJSONSink(os.Stdout)}, nil
	case ProgressNone:
		return nopRenderer{DiscardProgress}, nil
	default:
		return nil, WrapConfig(errors.Newf("unknown progress mode %q (want one of %s)", mode, strings.Join(ProgressModes, ", ")))
	}
}

func isTerminal(file *os.File) bool {
	if file == nil {
		return false
	}
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// barSink draws one progress bar per task. Bars of a split plan normally run
// one after the other, so a single line is redrawn at a time.
type barSink struct {
	out  io.Writer
	mu   sync.Mutex
	bars map[string]*progressbar.ProgressBar
}

func newBarSink(out io.Writer) *barSink {
	return &barSink{out: out, bars: make(map[string]*progressbar.ProgressBar)}
}

func (s *barSink) newBar(task string, expected int64) *progressbar.ProgressBar {
	if expected <= 0 {
		expected = -1
	}
	out := s.out
	return progressbar.NewOptions64(expected,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(fmt.Sprintf("%-8s", task)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(out, "\n")
		}),
	)
}

func (s *barSink) Handle(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Kind {
	case EventStart:
		s.bars[e.Task] = s.newBar(e.Task, e.Expected)
	case EventProgress:
		if bar := s.bars[e.Task]; bar != nil {
			_ = bar.Set64(e.Downloaded)
		}
	case EventDone:
		if bar := s.bars[e.Task]; bar != nil {
			_ = bar.Finish()
			delete(s.bars, e.Task)
		}
	case EventFailed:
		if bar := s.bars[e.Task]; bar != nil {
			_ = bar.Exit()
			fmt.Fprintln(s.out)
			delete(s.bars, e.Task)
		}
	}
}

func (s *barSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for task, bar := range s.bars {
		_ = bar.Exit()
		delete(s.bars, task)
	}
	return nil
}
