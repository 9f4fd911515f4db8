package downloader

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Options describes CLI behavior for a download run.
type Options struct {
	OutputDir string
	// BaseName overrides the artifact name. Empty means the video title.
	BaseName   string
	FFmpegPath string
	// DisableMerge plans as if no merge tool were installed.
	DisableMerge bool
	KeepParts    bool
	Parallel     bool
	// LimitRate caps each transfer in bytes per second.
	LimitRate int64
	Timeout   time.Duration
}

// Result describes a request. On failure it holds whatever was known when
// the request stopped.
type Result struct {
	ID       string
	Title    string
	Author   string
	Artifact Artifact
}

// Downloader turns one video URL into one playable file.
type Downloader struct {
	Source Source
	Merger Merger
	Sink   ProgressSink
	Logger *zap.Logger
	Opts   Options
}

// New wires a Downloader to YouTube and the ffmpeg merge tool.
func New(opts Options, sink ProgressSink, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.L()
	}
	return &Downloader{
		Source: NewYouTubeSource(opts.Timeout),
		Merger: FFmpegMerger{Path: opts.FFmpegPath},
		Sink:   sink,
		Logger: logger,
		Opts:   opts,
	}
}

func (d *Downloader) logger() *zap.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return zap.L()
}

// Catalog resolves rawURL without downloading anything.
func (d *Downloader) Catalog(ctx context.Context, rawURL string) (*Catalog, error) {
	target, err := normalizeTarget(rawURL)
	if err != nil {
		return nil, err
	}
	return d.resolve(ctx, target)
}

func (d *Downloader) resolve(ctx context.Context, target string) (*Catalog, error) {
	catalog, err := d.Source.Resolve(ctx, target)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.WithSecondaryError(ctxErr, err)
		}
		if isRestrictedAccess(err) {
			d.logger().Warn("The video appears to be private, restricted or unavailable", zap.String("url", target))
		}
		return nil, wrapCategory(CategoryResolutionFailed, err)
	}
	return catalog, nil
}

// Download resolves rawURL, plans the acquisition, and executes it.
func (d *Downloader) Download(ctx context.Context, rawURL string) (Result, error) {
	target, err := normalizeTarget(rawURL)
	if err != nil {
		return Result{}, err
	}

	log := d.logger()
	log.Info("Resolving", zap.String("url", target))
	catalog, err := d.resolve(ctx, target)
	if err != nil {
		return Result{}, err
	}
	result := Result{ID: catalog.ID, Title: catalog.Title, Author: catalog.Author}

	mergeAvailable := !d.Opts.DisableMerge && d.Merger != nil && d.Merger.Available()
	plan, err := Plan(catalog.Streams, mergeAvailable)
	if err != nil {
		log.Error("No usable stream",
			zap.String("id", catalog.ID),
			zap.Int("streams", len(catalog.Streams)),
			zap.Bool("merge_available", mergeAvailable))
		return result, err
	}
	d.logSummary(catalog, plan, mergeAvailable)

	baseName := d.Opts.BaseName
	if strings.TrimSpace(baseName) == "" {
		baseName = catalog.Title
	}
	executor := &Executor{
		Source:    d.Source,
		Merger:    d.Merger,
		Sink:      d.Sink,
		Logger:    log,
		Parallel:  d.Opts.Parallel,
		KeepParts: d.Opts.KeepParts,
		LimitRate: d.Opts.LimitRate,
	}
	artifact, err := executor.Execute(ctx, catalog, plan, Target{
		Dir:           d.Opts.OutputDir,
		BaseName:      baseName,
		PartsBaseName: catalog.ID,
	})
	result.Artifact = artifact
	if err != nil {
		return result, err
	}
	log.Info("Saved",
		zap.String("path", artifact.Path),
		zap.String("size", humanBytes(artifact.Bytes)))
	return result, nil
}

func (d *Downloader) logSummary(catalog *Catalog, plan AcquisitionPlan, mergeAvailable bool) {
	fields := []zap.Field{
		zap.String("title", catalog.Title),
		zap.String("author", catalog.Author),
		zap.Duration("duration", catalog.Duration),
		zap.Int("best_combined", bestResolution(catalog.Streams, StreamDescriptor.IsCombined)),
		zap.Int("best_video_only", bestResolution(catalog.Streams, StreamDescriptor.IsVideoOnly)),
		zap.Bool("merge_available", mergeAvailable),
		zap.Stringer("mode", plan.Mode()),
	}
	for _, s := range plan.Streams() {
		fields = append(fields, zap.String(streamKind(s), describeStream(s)))
	}
	d.logger().Info("Plan", fields...)
}

func bestResolution(streams []StreamDescriptor, keep func(StreamDescriptor) bool) int {
	best := 0
	for _, s := range streams {
		if keep(s) && s.ResolutionRank > best {
			best = s.ResolutionRank
		}
	}
	return best
}

func describeStream(s StreamDescriptor) string {
	parts := []string{s.Extension()}
	if s.HasVideo {
		parts = append(parts, resolutionText(s))
	}
	if s.IsAudioOnly() {
		parts = append(parts, bitrateText(s.AudioBitrateRank))
	}
	parts = append(parts, sizeText(s.SizeBytes))
	return strings.Join(parts, " ")
}
