package downloader

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestProgressModelTracksTasks(t *testing.T) {
	m := newProgressModel()
	start := time.Now().Add(-2 * time.Second)

	m.Update(registerMsg{id: labelVideo, total: 1000, start: start})
	m.Update(registerMsg{id: labelAudio, total: UnknownSize, start: start})
	m.Update(registerMsg{id: labelVideo, total: 5, start: start})
	if len(m.order) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(m.order))
	}
	if m.tasks[labelVideo].total != 1000 {
		t.Fatal("re-registering must not reset a task")
	}

	m.Update(updateMsg{id: labelVideo, current: 250, total: 1000})
	if got := m.tasks[labelVideo].percent; got != 0.25 {
		t.Fatalf("expected 0.25, got %v", got)
	}
	m.Update(updateMsg{id: labelAudio, current: 64})
	if m.tasks[labelAudio].percent != 0 || m.tasks[labelAudio].current != 64 {
		t.Fatal("unknown size must track bytes without a percentage")
	}
	m.Update(updateMsg{id: "missing", current: 1})

	view := m.View()
	if !strings.Contains(view, "Downloads") || !strings.Contains(view, labelVideo) || !strings.Contains(view, labelAudio) {
		t.Fatalf("view is missing tasks:\n%s", view)
	}
	if !strings.Contains(view, "?%") || !strings.Contains(view, "64B / ?") {
		t.Fatalf("unknown size not rendered:\n%s", view)
	}

	m.Update(finishMsg{id: labelVideo, current: 1000})
	m.Update(finishMsg{id: labelAudio, current: 64, err: errConnectionReset})
	if !m.tasks[labelVideo].done || m.tasks[labelVideo].percent != 1 {
		t.Fatal("finished task must be complete")
	}
	view = m.View()
	if !strings.Contains(view, "completed in") || !strings.Contains(view, "failed: "+errConnectionReset.Error()) {
		t.Fatalf("final states not rendered:\n%s", view)
	}

	_, cmd := m.Update(stopMsg{})
	if !m.quit || cmd == nil {
		t.Fatal("stop must quit the program")
	}
}

func TestProgressModelResize(t *testing.T) {
	m := newProgressModel()
	m.Update(registerMsg{id: labelCombined, total: 10, start: time.Now()})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	if m.width != 120 || m.tasks[labelCombined].bar.Width != barWidth(120) {
		t.Fatalf("bar not resized: %d", m.tasks[labelCombined].bar.Width)
	}
	if newProgressModel().View() != "" {
		t.Fatal("empty model must render nothing")
	}
}

func TestProgressManagerWithoutStart(t *testing.T) {
	pm := NewProgressManager(nil)
	pm.Handle(Event{Task: labelVideo, Kind: EventStart, Expected: 10})
	pm.Handle(Event{Task: labelVideo, Kind: EventProgress, Downloaded: 5, Expected: 10})
	if err := pm.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	var nilManager *ProgressManager
	nilManager.Handle(Event{Task: labelVideo, Kind: EventDone})
	if err := nilManager.Close(); err != nil {
		t.Fatalf("Close on nil manager returned error: %v", err)
	}
}

func TestBarWidthAndTruncateLine(t *testing.T) {
	if barWidth(5) != 10 || barWidth(80) != 70 {
		t.Fatalf("unexpected widths %d %d", barWidth(5), barWidth(80))
	}
	if truncateLine("abcdefgh", 6) != "abc..." || truncateLine("abc", 0) != "abc" || truncateLine("abcdef", 2) != "ab" {
		t.Fatal("unexpected truncation")
	}
}
