package app

import (
	"context"

	"github.com/lvcoi/ytgrab/internal/downloader"
)

// Downloader fetches one video URL.
type Downloader interface {
	Download(ctx context.Context, url string) (downloader.Result, error)
}

type Result struct {
	URL      string            `json:"url"`
	Download downloader.Result `json:"-"`
	Err      error             `json:"-"`
	Error    string            `json:"error,omitempty"`
}

// Run downloads url and returns the outcome with the process exit code.
func Run(ctx context.Context, d Downloader, url string) (Result, int) {
	res, err := d.Download(ctx, url)
	result := Result{URL: url, Download: res, Err: err}
	if err == nil {
		return result, 0
	}
	result.Error = err.Error()

	exitCode := downloader.ExitCode(err)
	// A cancelled context surfaces as whatever the interrupted operation
	// returned, so it decides the code regardless of the category.
	if ctx.Err() != nil {
		exitCode = downloader.ExitCode(context.Canceled)
	}
	return result, exitCode
}
