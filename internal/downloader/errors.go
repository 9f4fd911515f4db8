package downloader

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
)

// Category classifies a failure so callers can report it and pick an exit code.
type Category string

const (
	CategoryUnknown           Category = "unknown"
	CategoryInvalidURL        Category = "invalid_url"
	CategoryResolutionFailed  Category = "resolution_failed"
	CategoryNoStreamAvailable Category = "no_stream_available"
	CategoryDownloadFailed    Category = "download_failed"
	CategoryMergeFailed       Category = "merge_failed"
	CategoryConfig            Category = "config"
	CategoryInterrupted       Category = "interrupted"
)

// ErrNoStreamAvailable is returned by Plan when the catalog holds neither a
// combined stream nor a video-only/audio-only pair.
var ErrNoStreamAvailable = errors.New("no usable stream available")

// CategorizedError attaches a Category to an underlying error.
type CategorizedError struct {
	Category Category
	// Task names the download task that failed, if any.
	Task string
	Err  error
}

func (e CategorizedError) Error() string {
	if e.Err == nil {
		return string(e.Category)
	}
	return e.Err.Error()
}

func (e CategorizedError) Unwrap() error {
	return e.Err
}

func wrapCategory(category Category, err error) error {
	if err == nil {
		return nil
	}
	var existing CategorizedError
	if errors.As(err, &existing) && existing.Category == category {
		return err
	}
	return CategorizedError{Category: category, Err: err}
}

func wrapTask(category Category, task string, err error) error {
	if err == nil {
		return nil
	}
	return CategorizedError{Category: category, Task: task, Err: err}
}

// WrapConfig marks err as a configuration error.
func WrapConfig(err error) error {
	return wrapCategory(CategoryConfig, err)
}

// CategoryOf returns the outermost category attached to err. Context
// cancellation is reported as interrupted regardless of where it surfaced.
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return CategoryInterrupted
	}
	var categorized CategorizedError
	if errors.As(err, &categorized) {
		return categorized.Category
	}
	return CategoryUnknown
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	switch CategoryOf(err) {
	case "":
		return 0
	case CategoryInvalidURL:
		return 2
	case CategoryResolutionFailed:
		return 3
	case CategoryNoStreamAvailable:
		return 4
	case CategoryDownloadFailed:
		return 5
	case CategoryMergeFailed:
		return 6
	case CategoryConfig:
		return 7
	case CategoryInterrupted:
		return 130
	default:
		return 1
	}
}

var restrictedMarkers = []string{
	"private",
	"sign in",
	"login required",
	"members only",
	"premium",
	"copyright",
	"unavailable",
	"age-restricted",
	"age restricted",
	"not available",
}

// isRestrictedAccess reports whether err looks like the site refused access to
// the target rather than a transport problem.
func isRestrictedAccess(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range restrictedMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
