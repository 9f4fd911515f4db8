package downloader

import (
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// TaskState is the lifecycle position of a DownloadTask.
type TaskState int

const (
	TaskPending TaskState = iota
	TaskInProgress
	TaskCompleted
	TaskFailed
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskInProgress:
		return "in_progress"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s TaskState) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// DownloadTask is one byte transfer of a stream to a file. Only the executor
// mutates it; readers may inspect it concurrently.
type DownloadTask struct {
	Label           string
	Source          StreamDescriptor
	DestinationPath string

	expected   atomic.Int64
	downloaded atomic.Int64

	mu    sync.Mutex
	state TaskState
	err   error
}

func newDownloadTask(label string, source StreamDescriptor, destination string) *DownloadTask {
	t := &DownloadTask{
		Label:           label,
		Source:          source,
		DestinationPath: destination,
	}
	expected := UnknownSize
	if source.SizeKnown() {
		expected = source.SizeBytes
	}
	t.expected.Store(expected)
	return t
}

// ExpectedBytes returns the expected size, or UnknownSize.
func (t *DownloadTask) ExpectedBytes() int64 { return t.expected.Load() }

// DownloadedBytes returns the bytes written so far.
func (t *DownloadTask) DownloadedBytes() int64 { return t.downloaded.Load() }

func (t *DownloadTask) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the failure cause once the task has failed.
func (t *DownloadTask) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *DownloadTask) start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TaskPending {
		return errors.Newf("task %s: cannot start from state %s", t.Label, t.state)
	}
	t.state = TaskInProgress
	return nil
}

// setExpected replaces the declared size with the length reported by the
// opened stream, when there is one.
func (t *DownloadTask) setExpected(n int64) {
	if n > 0 {
		t.expected.Store(n)
	}
}

// advance records a received chunk and returns the running total.
func (t *DownloadTask) advance(n int) int64 {
	if n <= 0 {
		return t.downloaded.Load()
	}
	return t.downloaded.Add(int64(n))
}

func (t *DownloadTask) complete() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TaskInProgress {
		return errors.Newf("task %s: cannot complete from state %s", t.Label, t.state)
	}
	t.state = TaskCompleted
	return nil
}

// fail moves a pending or running task to failed. Failing a terminal task is
// a no-op that keeps the first outcome.
func (t *DownloadTask) fail(cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		return
	}
	t.state = TaskFailed
	t.err = cause
}
