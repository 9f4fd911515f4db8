package app

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/lvcoi/ytgrab/internal/db"
)

// History stores finished downloads.
type History interface {
	Lookup(videoID string) (*db.MediaRecord, bool, error)
	Save(record *db.MediaRecord) error
}

// Record saves a successful result to h. Failed results are ignored.
func Record(h History, result Result, logger *zap.Logger) error {
	if h == nil || result.Err != nil || result.Download.ID == "" {
		return nil
	}
	if logger == nil {
		logger = zap.L()
	}

	res := result.Download
	if prev, ok, err := h.Lookup(res.ID); err != nil {
		logger.Warn("Reading download history failed", zap.String("id", res.ID), zap.Error(err))
	} else if ok {
		logger.Info("Downloaded before",
			zap.String("id", res.ID),
			zap.String("path", prev.FilePath),
			zap.Time("at", prev.UpdatedAt))
	}

	streams := make([]string, 0, len(res.Artifact.Tasks))
	for _, task := range res.Artifact.Tasks {
		streams = append(streams, task.Label+":"+strconv.Itoa(task.Source.ID))
	}
	return h.Save(&db.MediaRecord{
		VideoID:   res.ID,
		Title:     res.Title,
		Author:    res.Author,
		MediaType: db.ClassifyMediaType(result.URL, res.Author),
		Mode:      res.Artifact.Mode.String(),
		Streams:   strings.Join(streams, ","),
		FilePath:  res.Artifact.Path,
		SourceURL: result.URL,
		FileSize:  res.Artifact.Bytes,
	})
}
