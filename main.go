package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lvcoi/ytgrab/internal/app"
	"github.com/lvcoi/ytgrab/internal/config"
	"github.com/lvcoi/ytgrab/internal/db"
	"github.com/lvcoi/ytgrab/internal/downloader"
)

var logLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

func newCommand(exitCode *int) *cli.Command {
	return &cli.Command{
		Name:            "ytgrab",
		Usage:           "Download a single YouTube video as one playable file",
		ArgsUsage:       "<url>",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   config.DefaultPath,
				Usage:   "YAML config file",
				Sources: cli.EnvVars(config.EnvPrefix + "_CONFIG"),
			},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "downloads", Usage: "output directory"},
			&cli.StringFlag{Name: "name", Usage: "output base name (default: video title)"},
			&cli.StringFlag{Name: "ffmpeg", Value: "ffmpeg", Usage: "ffmpeg executable used to merge split downloads"},
			&cli.BoolFlag{Name: "no-merge", Usage: "never download separate video and audio streams"},
			&cli.BoolFlag{Name: "keep-parts", Usage: "keep separate video and audio files after merging"},
			&cli.BoolFlag{Name: "parallel", Usage: "download video and audio streams concurrently"},
			&cli.StringFlag{Name: "progress", Value: downloader.ProgressAuto, Usage: "progress display: auto, bar, tui, log, json, none"},
			&cli.StringFlag{Name: "limit-rate", Usage: "per-stream rate limit (e.g. 512K, 2M)"},
			&cli.DurationFlag{Name: "timeout", Usage: "HTTP client timeout, covering the whole transfer (0 = none)"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "log level: debug, info, warn, error"},
			&cli.StringFlag{Name: "history", Usage: "SQLite file recording finished downloads"},
			&cli.BoolFlag{Name: "list-formats", Usage: "list available streams and exit"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			*exitCode = run(ctx, cmd)
			return nil
		},
	}
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"), cmd.IsSet("config"))
	if err != nil {
		return nil, err
	}
	if cmd.IsSet("output") {
		cfg.Output = cmd.String("output")
	}
	if cmd.IsSet("name") {
		cfg.Name = cmd.String("name")
	}
	if cmd.IsSet("ffmpeg") {
		cfg.FFmpeg = cmd.String("ffmpeg")
	}
	if cmd.IsSet("no-merge") {
		cfg.NoMerge = cmd.Bool("no-merge")
	}
	if cmd.IsSet("keep-parts") {
		cfg.KeepParts = cmd.Bool("keep-parts")
	}
	if cmd.IsSet("parallel") {
		cfg.Parallel = cmd.Bool("parallel")
	}
	if cmd.IsSet("progress") {
		cfg.Progress = cmd.String("progress")
	}
	if cmd.IsSet("limit-rate") {
		cfg.LimitRate = cmd.String("limit-rate")
	}
	if cmd.IsSet("timeout") {
		cfg.Timeout = cmd.Duration("timeout")
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if cmd.IsSet("history") {
		cfg.History = cmd.String("history")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cmd *cli.Command) int {
	log := zap.L()

	cfg, err := loadConfig(cmd)
	if err != nil {
		log.Error("Invalid configuration", zap.Error(err))
		return downloader.ExitCode(err)
	}
	if lvl, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		logLevel.SetLevel(lvl)
	}

	url := cmd.Args().First()
	if url == "" || cmd.Args().Len() > 1 {
		err := downloader.CategorizedError{
			Category: downloader.CategoryInvalidURL,
			Err:      errors.New("exactly one url is required"),
		}
		if cfg.Progress == downloader.ProgressJSON {
			_ = downloader.WriteJSONResult(os.Stdout, url, downloader.Result{}, err)
		} else {
			fmt.Fprintf(os.Stderr, "usage: %s [options] <url>\n", cmd.Name)
		}
		return downloader.ExitCode(err)
	}

	if cmd.Bool("list-formats") {
		d := downloader.New(cfg.Options(), downloader.DiscardProgress, log)
		catalog, err := d.Catalog(ctx, url)
		if err != nil {
			log.Error("Listing formats failed", zap.String("url", url), zap.Error(err))
			return downloader.ExitCode(err)
		}
		if err := downloader.WriteFormats(os.Stdout, catalog); err != nil {
			log.Error("Writing formats failed", zap.Error(err))
			return 1
		}
		return 0
	}

	renderer, err := downloader.NewRenderer(ctx, cfg.Progress, os.Stderr, cfg.Parallel, log)
	if err != nil {
		log.Error("Invalid configuration", zap.Error(err))
		return downloader.ExitCode(err)
	}
	d := downloader.New(cfg.Options(), renderer, log)

	started := time.Now()
	result, code := app.Run(ctx, d, url)
	_ = renderer.Close()
	downloader.CloseIdleConnections()
	if cfg.History != "" && result.Err == nil {
		recordHistory(cfg.History, result, log)
	}

	if cfg.Progress == downloader.ProgressJSON {
		_ = downloader.WriteJSONResult(os.Stdout, url, result.Download, result.Err)
		return code
	}
	downloader.NewPrinter(os.Stderr, false).Result(result.Download, result.Err)
	if result.Err != nil {
		log.Debug("Request failed",
			zap.String("category", string(downloader.CategoryOf(result.Err))),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(result.Err))
	}
	return code
}

func recordHistory(path string, result app.Result, log *zap.Logger) {
	history, err := db.Open(path)
	if err != nil {
		log.Warn("Opening download history failed", zap.String("path", path), zap.Error(err))
		return
	}
	defer history.Close()
	if err := app.Record(history, result, log); err != nil {
		log.Warn("Recording download failed", zap.String("path", path), zap.Error(err))
	}
}

func main() {
	zc := zap.NewDevelopmentConfig()
	zc.Level = logLevel
	zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := zc.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	if err := newCommand(&exitCode).Run(ctx, os.Args); err != nil {
		zap.L().Error("Unexpected error", zap.Error(err))
		exitCode = downloader.ExitCode(downloader.WrapConfig(err))
	}
	stop()
	_ = logger.Sync()
	os.Exit(exitCode)
}
