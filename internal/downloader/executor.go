package downloader

import (
	"context"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	labelCombined = "combined"
	labelVideo    = "video"
	labelAudio    = "audio"
)

// Artifact is the finished file of a request.
type Artifact struct {
	Path  string
	Mode  Mode
	Bytes int64
	// Tasks lists the transfers that were started, in start order.
	Tasks []*DownloadTask
}

// Executor realizes an AcquisitionPlan on disk.
type Executor struct {
	Source Source
	Merger Merger
	Sink   ProgressSink
	Logger *zap.Logger

	// Parallel runs the two transfers of a split plan concurrently.
	Parallel bool
	// KeepParts retains split intermediates after a successful merge.
	KeepParts bool
	// LimitRate caps each transfer in bytes per second; zero disables it.
	LimitRate int64
}

func (e *Executor) logger() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.L()
}

func (e *Executor) sink() ProgressSink {
	if e.Sink != nil {
		return e.Sink
	}
	return DiscardProgress
}

// Execute fetches every stream of plan into target and returns the final
// artifact. No artifact is returned unless every transfer completed and,
// for split plans, the merge succeeded.
func (e *Executor) Execute(ctx context.Context, catalog *Catalog, plan AcquisitionPlan, target Target) (Artifact, error) {
	if e.Source == nil {
		return Artifact{}, errors.New("executor has no source")
	}
	if err := os.MkdirAll(target.Dir, 0o755); err != nil {
		return Artifact{}, wrapCategory(CategoryDownloadFailed, errors.Wrap(err, "creating output directory"))
	}

	switch plan.Mode() {
	case ModeCombined:
		return e.executeCombined(ctx, catalog, plan, target)
	case ModeSplit:
		return e.executeSplit(ctx, catalog, plan, target)
	default:
		return Artifact{}, errors.Newf("invalid acquisition plan: %s", plan.Mode())
	}
}

func (e *Executor) executeCombined(ctx context.Context, catalog *Catalog, plan AcquisitionPlan, target Target) (Artifact, error) {
	stream, _ := plan.Combined()
	task := newDownloadTask(labelCombined, stream, target.finalPath(stream.Extension()))
	artifact := Artifact{Mode: ModeCombined, Tasks: []*DownloadTask{task}}

	if err := e.runTask(ctx, catalog, task); err != nil {
		return artifact, err
	}
	artifact.Path = task.DestinationPath
	artifact.Bytes = task.DownloadedBytes()
	return artifact, nil
}

func (e *Executor) executeSplit(ctx context.Context, catalog *Catalog, plan AcquisitionPlan, target Target) (Artifact, error) {
	video, audio, _ := plan.Split()
	specs := []*DownloadTask{
		newDownloadTask(labelVideo, video, target.partPath(labelVideo, video.Extension())),
		newDownloadTask(labelAudio, audio, target.partPath(labelAudio, audio.Extension())),
	}
	artifact := Artifact{Mode: ModeSplit}

	var err error
	if e.Parallel {
		artifact.Tasks = specs
		err = e.runParallel(ctx, catalog, specs)
	} else {
		artifact.Tasks, err = e.runSequential(ctx, catalog, specs)
	}
	if err != nil {
		return artifact, err
	}

	videoPath, audioPath := specs[0].DestinationPath, specs[1].DestinationPath
	output := target.finalPath(mergedContainer(video))
	if e.Merger == nil {
		return artifact, wrapCategory(CategoryMergeFailed, errors.New("no merge tool configured"))
	}
	e.logger().Info("Merging",
		zap.String("video", videoPath),
		zap.String("audio", audioPath),
		zap.String("output", output))
	if err := e.Merger.Merge(ctx, videoPath, audioPath, output); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.WithSecondaryError(ctxErr, err)
		}
		e.logger().Error("Merge failed, keeping intermediate files",
			zap.Error(err),
			zap.String("video", videoPath),
			zap.String("audio", audioPath))
		return artifact, wrapCategory(CategoryMergeFailed, err)
	}

	if !e.KeepParts {
		for _, path := range []string{videoPath, audioPath} {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				e.logger().Warn("Removing intermediate file failed", zap.String("path", path), zap.Error(err))
			}
		}
	}

	artifact.Path = output
	if info, err := os.Stat(output); err == nil {
		artifact.Bytes = info.Size()
	}
	return artifact, nil
}

// runSequential starts tasks one after another and stops at the first
// failure; tasks after it are never created.
func (e *Executor) runSequential(ctx context.Context, catalog *Catalog, tasks []*DownloadTask) ([]*DownloadTask, error) {
	started := make([]*DownloadTask, 0, len(tasks))
	for _, task := range tasks {
		started = append(started, task)
		if err := e.runTask(ctx, catalog, task); err != nil {
			return started, err
		}
	}
	return started, nil
}

// runParallel starts every task at once. The first failure cancels the
// others; Wait returns only after all of them reached a terminal state.
func (e *Executor) runParallel(ctx context.Context, catalog *Catalog, tasks []*DownloadTask) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() error {
			return e.runTask(gctx, catalog, task)
		})
	}
	return g.Wait()
}

// runTask transfers one stream into task.DestinationPath. Bytes land in a
// ".part" sibling that is renamed only once the transfer is complete, so the
// destination never holds a partial file. On failure the ".part" file stays.
func (e *Executor) runTask(ctx context.Context, catalog *Catalog, task *DownloadTask) (err error) {
	progress := newProgressWriter(task, e.sink())
	if err := task.start(); err != nil {
		return wrapTask(CategoryDownloadFailed, task.Label, err)
	}
	defer func() {
		if err != nil {
			task.fail(err)
			progress.emit(EventFailed, err)
			e.logger().Error("Download failed",
				zap.String("task", task.Label),
				zap.Int64("downloaded", task.DownloadedBytes()),
				zap.Error(err))
			err = wrapTask(CategoryDownloadFailed, task.Label, err)
		}
	}()

	body, size, err := e.Source.Open(ctx, catalog, task.Source)
	if err != nil {
		return errors.Wrap(err, "starting stream")
	}
	defer body.Close()
	task.setExpected(size)

	partPath := task.DestinationPath + partSuffix
	file, err := os.OpenFile(partPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "opening output file")
	}
	defer func() {
		if file != nil {
			_ = file.Close()
		}
	}()

	e.logger().Debug("Downloading",
		zap.String("task", task.Label),
		zap.Int("stream", task.Source.ID),
		zap.Int64("expected", task.ExpectedBytes()),
		zap.String("path", task.DestinationPath))
	progress.emit(EventStart, nil)

	dst := newRateLimitedWriter(ctx, file, e.LimitRate)
	if _, err := copyChunks(ctx, dst, body, progress); err != nil {
		return errors.Wrap(err, "download failed")
	}
	if expected, got := task.ExpectedBytes(), task.DownloadedBytes(); expected > 0 && got != expected {
		return errors.Wrapf(io.ErrUnexpectedEOF, "received %d of %d bytes", got, expected)
	}

	closeErr := file.Close()
	file = nil
	if closeErr != nil {
		return errors.Wrap(closeErr, "closing output file")
	}
	if err := os.Rename(partPath, task.DestinationPath); err != nil {
		return errors.Wrap(err, "finalizing output file")
	}
	if err := task.complete(); err != nil {
		return err
	}
	progress.emit(EventDone, nil)
	return nil
}
