package downloader

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const defaultFFmpegPath = "ffmpeg"

// Merger combines a video-only file and an audio-only file into one container
// without re-encoding.
type Merger interface {
	Available() bool
	Merge(ctx context.Context, videoPath, audioPath, outputPath string) error
}

// FFmpegMerger runs ffmpeg to stream-copy both inputs into the output.
type FFmpegMerger struct {
	// Path is the executable name or path. Empty means "ffmpeg" from PATH.
	Path string
}

func (m FFmpegMerger) binary() string {
	if strings.TrimSpace(m.Path) == "" {
		return defaultFFmpegPath
	}
	return m.Path
}

// Available checks if ffmpeg is installed and accessible.
func (m FFmpegMerger) Available() bool {
	_, err := exec.LookPath(m.binary())
	return err == nil
}

// mergeArgs builds the ffmpeg arguments: both inputs mapped, every stream
// copied, output overwritten.
func mergeArgs(videoPath, audioPath, outputPath string) []string {
	inputs := []*ffmpeg.Stream{
		ffmpeg.Input(videoPath),
		ffmpeg.Input(audioPath),
	}
	return ffmpeg.Output(inputs, outputPath, ffmpeg.KwArgs{"c": "copy"}).
		OverWriteOutput().
		GetArgs()
}

func (m FFmpegMerger) Merge(ctx context.Context, videoPath, audioPath, outputPath string) error {
	bin, err := exec.LookPath(m.binary())
	if err != nil {
		return errors.Wrapf(err, "merge tool %q unavailable", m.binary())
	}
	cmd := exec.CommandContext(ctx, bin, mergeArgs(videoPath, audioPath, outputPath)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "ffmpeg: %s", lastLines(string(out), 5))
	}
	return checkArtifact(outputPath)
}

// checkArtifact verifies the merged output exists and is non-empty.
func checkArtifact(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(err, "stat merged output")
	}
	if info.IsDir() {
		return errors.Newf("merged output %s is a directory", path)
	}
	if info.Size() == 0 {
		return errors.Newf("merged output %s is empty", path)
	}
	return nil
}

func lastLines(text string, n int) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
