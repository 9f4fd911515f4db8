// Package config loads ytgrab settings from defaults, an optional YAML file
// and YTGRAB_* environment variables, in that order.
package config

import (
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/lvcoi/ytgrab/internal/downloader"
)

const (
	EnvPrefix   = "YTGRAB"
	DefaultPath = "ytgrab.yml"
)

type Config struct {
	Output    string        `yaml:"output"     envconfig:"OUTPUT"`
	Name      string        `yaml:"name"       envconfig:"NAME"`
	FFmpeg    string        `yaml:"ffmpeg"     envconfig:"FFMPEG"`
	NoMerge   bool          `yaml:"no_merge"   envconfig:"NO_MERGE"`
	KeepParts bool          `yaml:"keep_parts" envconfig:"KEEP_PARTS"`
	Parallel  bool          `yaml:"parallel"   envconfig:"PARALLEL"`
	Progress  string        `yaml:"progress"   envconfig:"PROGRESS"`
	LimitRate string        `yaml:"limit_rate" envconfig:"LIMIT_RATE"`
	Timeout   time.Duration `yaml:"timeout"    envconfig:"TIMEOUT"`
	LogLevel  string        `yaml:"log_level"  envconfig:"LOG_LEVEL"`
	// History is the SQLite file recording finished downloads. Empty disables it.
	History string `yaml:"history" envconfig:"HISTORY"`
}

func Default() *Config {
	return &Config{
		Output:   "downloads",
		FFmpeg:   "ffmpeg",
		Progress: downloader.ProgressAuto,
		LogLevel: "info",
	}
}

// Load reads path over the defaults and then applies the environment. A
// missing file is only an error when required is set.
func Load(path string, required bool) (*Config, error) {
	c := Default()
	if path == "" {
		path = DefaultPath
	}

	buf, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(buf, c); err != nil {
			return nil, downloader.WrapConfig(errors.Wrapf(err, "parsing config file %s", path))
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return nil, downloader.WrapConfig(errors.Wrapf(err, "reading config file %s", path))
	}

	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return nil, downloader.WrapConfig(errors.Wrap(err, "parsing environment variables"))
	}
	return c, nil
}

// Validate checks c and normalizes the progress mode to lower case.
func (c *Config) Validate() error {
	c.Progress = strings.ToLower(strings.TrimSpace(c.Progress))
	if strings.TrimSpace(c.Output) == "" {
		return downloader.WrapConfig(errors.New("output directory must not be empty"))
	}
	if !slices.Contains(downloader.ProgressModes, c.Progress) {
		return downloader.WrapConfig(errors.Newf("unknown progress mode %q (want one of %s)",
			c.Progress, strings.Join(downloader.ProgressModes, ", ")))
	}
	if _, err := ParseByteRate(c.LimitRate); err != nil {
		return downloader.WrapConfig(err)
	}
	if c.Timeout < 0 {
		return downloader.WrapConfig(errors.Newf("timeout must not be negative: %s", c.Timeout))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return downloader.WrapConfig(errors.Wrapf(err, "log level"))
	}
	return nil
}

// Options converts the configuration into downloader options. Call Validate first.
func (c *Config) Options() downloader.Options {
	rate, _ := ParseByteRate(c.LimitRate)
	return downloader.Options{
		OutputDir:    c.Output,
		BaseName:     c.Name,
		FFmpegPath:   c.FFmpeg,
		DisableMerge: c.NoMerge,
		KeepParts:    c.KeepParts,
		Parallel:     c.Parallel,
		LimitRate:    rate,
		Timeout:      c.Timeout,
	}
}

// ParseByteRate parses sizes such as "512K", "2M" or "1.5G" (binary units,
// optional trailing "B" or "/s") into bytes per second. Empty and "0" disable
// limiting.
func ParseByteRate(s string) (int64, error) {
	raw := strings.ToUpper(strings.TrimSpace(s))
	raw = strings.TrimSuffix(raw, "/S")
	raw = strings.TrimSuffix(raw, "IB")
	raw = strings.TrimSuffix(raw, "B")
	if raw == "" {
		return 0, nil
	}

	multiplier := float64(1)
	switch raw[len(raw)-1] {
	case 'K':
		multiplier = 1 << 10
	case 'M':
		multiplier = 1 << 20
	case 'G':
		multiplier = 1 << 30
	}
	if multiplier != 1 {
		raw = raw[:len(raw)-1]
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || value < 0 || math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, errors.Newf("invalid rate %q", s)
	}
	bytes := value * multiplier
	if bytes >= math.MaxInt64 {
		return 0, errors.Newf("rate %q is too large", s)
	}
	if value > 0 && int64(bytes) == 0 {
		return 0, errors.Newf("rate %q is below one byte per second", s)
	}
	return int64(bytes), nil
}
