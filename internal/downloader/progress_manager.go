package downloader

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	progressbar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const tuiUpdateInterval = 100 * time.Millisecond

// ProgressManager renders task progress with Bubble Tea. It implements
// ProgressSink; Start must be called before events arrive.
type ProgressManager struct {
	mu      sync.Mutex
	out     io.Writer
	ctx     context.Context
	cancel  context.CancelFunc
	program *tea.Program
	started bool
	done    chan struct{}

	lastSent map[string]time.Time
}

// NewProgressManager creates a progress manager that draws to out.
func NewProgressManager(out io.Writer) *ProgressManager {
	return &ProgressManager{out: out, lastSent: make(map[string]time.Time)}
}

// Start begins the progress rendering in a separate goroutine.
func (pm *ProgressManager) Start(ctx context.Context) {
	if pm == nil {
		return
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.started {
		return
	}

	opts := []tea.ProgramOption{
		tea.WithOutput(pm.out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	}
	program := tea.NewProgram(newProgressModel(), opts...)

	pm.ctx, pm.cancel = context.WithCancel(ctx)
	pm.program = program
	pm.started = true
	pm.done = make(chan struct{})

	go func() {
		defer close(pm.done)
		_, _ = program.Run()
		pm.cancel()
	}()

	go func() {
		<-pm.ctx.Done()
		pm.send(stopMsg{})
	}()
}

// Close stops the progress rendering and waits for it to finish.
func (pm *ProgressManager) Close() error {
	if pm == nil {
		return nil
	}

	pm.mu.Lock()
	program := pm.program
	done := pm.done
	pm.mu.Unlock()

	if program != nil {
		program.Send(stopMsg{})
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	}
	return nil
}

// Handle forwards an event to the model. Progress events of a task are
// dropped when they arrive faster than the redraw interval.
func (pm *ProgressManager) Handle(e Event) {
	if pm == nil {
		return
	}
	now := time.Now()
	switch e.Kind {
	case EventStart:
		pm.send(registerMsg{id: e.Task, total: e.Expected, start: now})
	case EventProgress:
		pm.mu.Lock()
		last := pm.lastSent[e.Task]
		throttled := now.Sub(last) < tuiUpdateInterval
		if !throttled {
			pm.lastSent[e.Task] = now
		}
		pm.mu.Unlock()
		if !throttled {
			pm.send(updateMsg{id: e.Task, current: e.Downloaded, total: e.Expected})
		}
	case EventDone:
		pm.send(finishMsg{id: e.Task, current: e.Downloaded})
	case EventFailed:
		pm.send(finishMsg{id: e.Task, current: e.Downloaded, err: e.Err})
	}
}

func (pm *ProgressManager) send(msg tea.Msg) {
	if pm == nil {
		return
	}
	pm.mu.Lock()
	program := pm.program
	pm.mu.Unlock()
	if program != nil {
		program.Send(msg)
	}
}

type registerMsg struct {
	id    string
	total int64
	start time.Time
}

type updateMsg struct {
	id      string
	current int64
	total   int64
}

type finishMsg struct {
	id      string
	current int64
	err     error
}

type stopMsg struct{}

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#0B0B0B")).
			Background(lipgloss.Color("#FFE66D")).
			Bold(true).
			Padding(0, 1)

	percentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00F5D4")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8F8F2")).
			Bold(true)

	etaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A6ADC8")).
			Faint(true)

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7FDBFF"))
)

type progressModel struct {
	tasks map[string]*progressTask
	order []string
	width int
	quit  bool
}

type progressTask struct {
	label    string
	total    int64
	current  int64
	started  time.Time
	finished time.Time
	percent  float64
	bar      progressbar.Model
	spin     spinner.Model
	done     bool
	err      error
}

func newProgressModel() *progressModel {
	return &progressModel{
		tasks: make(map[string]*progressTask),
		width: 80,
	}
}

func barWidth(total int) int {
	width := total - 10
	if width < 10 {
		return 10
	}
	return width
}

func truncateLine(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}
	if width <= 3 {
		return text[:width]
	}
	return text[:width-3] + "..."
}

func (m *progressModel) Init() tea.Cmd {
	return nil
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		for _, task := range m.tasks {
			task.bar.Width = barWidth(m.width)
		}
	case registerMsg:
		if _, exists := m.tasks[msg.id]; exists {
			return m, nil
		}
		m.order = append(m.order, msg.id)
		spin := spinner.New()
		spin.Spinner = spinner.MiniDot
		spin.Style = spinnerStyle
		bar := progressbar.New(
			progressbar.WithGradient("#FF006E", "#00F5FF"),
			progressbar.WithWidth(barWidth(m.width)),
			progressbar.WithoutPercentage(),
		)
		task := &progressTask{
			label:   msg.id,
			total:   msg.total,
			started: msg.start,
			bar:     bar,
			spin:    spin,
		}
		m.tasks[msg.id] = task
		return m, tea.Batch(task.bar.SetPercent(0), task.spin.Tick)
	case updateMsg:
		if task, ok := m.tasks[msg.id]; ok {
			task.current = msg.current
			if msg.total > 0 {
				task.total = msg.total
			}
			if task.total > 0 {
				task.percent = math.Min(1, math.Max(0, float64(task.current)/float64(task.total)))
				return m, task.bar.SetPercent(task.percent)
			}
		}
	case finishMsg:
		if task, ok := m.tasks[msg.id]; ok {
			task.done = true
			task.finished = time.Now()
			task.current = msg.current
			task.err = msg.err
			if msg.err == nil {
				task.percent = 1
				return m, task.bar.SetPercent(1)
			}
		}
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case progressbar.FrameMsg:
		cmds := make([]tea.Cmd, 0, len(m.tasks))
		for _, task := range m.tasks {
			model, cmd := task.bar.Update(msg)
			if updated, ok := model.(progressbar.Model); ok {
				task.bar = updated
			}
			if cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		return m, tea.Batch(cmds...)
	case spinner.TickMsg:
		cmds := make([]tea.Cmd, 0, len(m.tasks))
		for _, task := range m.tasks {
			if task.done {
				continue
			}
			updated, cmd := task.spin.Update(msg)
			task.spin = updated
			if cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		return m, tea.Batch(cmds...)
	case stopMsg:
		m.quit = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.order) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(" Downloads"))
	b.WriteString("\n")
	for _, id := range m.order {
		task, ok := m.tasks[id]
		if !ok {
			continue
		}
		b.WriteString(m.renderTask(task))
	}
	return b.String()
}

func (m *progressModel) renderTask(task *progressTask) string {
	var b strings.Builder

	end := time.Now()
	if task.done {
		end = task.finished
	}
	elapsed := end.Sub(task.started)

	spinText := " "
	if !task.done {
		spinText = spinnerStyle.Render(task.spin.View())
	}
	percentText := percentStyle.Render(fmt.Sprintf("%5.1f%%", task.percent*100))
	if task.total <= 0 {
		percentText = percentStyle.Render("    ?%")
	}
	fmt.Fprintf(&b, "%s %s %s\n", spinText, percentText, labelStyle.Render(task.label))
	b.WriteString(task.bar.View())
	b.WriteString("\n")

	total := "?"
	if task.total > 0 {
		total = humanBytes(task.total)
	}
	bytesLine := fmt.Sprintf("%s / %s · %s", humanBytes(task.current), total, formatRate(task.current, elapsed))
	fmt.Fprintf(&b, "        %s\n", etaStyle.Render(bytesLine))

	var status string
	switch {
	case task.err != nil:
		status = failedStyle.Render(truncateLine("failed: "+task.err.Error(), m.width-8))
	case task.done:
		status = etaStyle.Render(fmt.Sprintf("completed in %s", formatDurationShort(elapsed)))
	default:
		status = etaStyle.Render(fmt.Sprintf("elapsed %s · eta %s",
			formatDurationShort(elapsed),
			formatDurationShort(estimateETA(task.current, task.total, elapsed))))
	}
	fmt.Fprintf(&b, "        %s\n", status)
	return b.String()
}
