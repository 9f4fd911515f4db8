// Package db keeps a history of finished downloads in SQLite.
package db

import (
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"moul.io/zapgorm2"
)

// MediaRecord is one finished download. Downloading the same video again
// replaces its record.
type MediaRecord struct {
	VideoID   string `gorm:"primaryKey"`
	Title     string
	Author    string
	MediaType string `gorm:"index"`
	Mode      string
	Streams   string
	FilePath  string
	SourceURL string
	FileSize  int64
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// DB wraps the history database.
type DB struct {
	db *gorm.DB
}

// Open opens or creates the SQLite database at the given path.
func Open(path string) (*DB, error) {
	log := zapgorm2.New(zap.L())
	log.IgnoreRecordNotFoundError = true

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: log})
	if err != nil {
		return nil, errors.Wrapf(err, "opening database at %s", path)
	}
	if err := gdb.AutoMigrate(&MediaRecord{}); err != nil {
		return nil, errors.Wrap(err, "creating schema")
	}
	return &DB{db: gdb}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// replacedColumns are overwritten when a video is saved again; created_at keeps
// the time of the first download.
var replacedColumns = []string{
	"title", "author", "media_type", "mode", "streams",
	"file_path", "source_url", "file_size", "updated_at",
}

// Save inserts record or replaces the record of the same video.
func (d *DB) Save(record *MediaRecord) error {
	if d == nil || d.db == nil {
		return errors.New("database not initialized")
	}
	if record.VideoID == "" {
		return errors.New("media record has no video id")
	}
	return d.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "video_id"}},
		DoUpdates: clause.AssignmentColumns(replacedColumns),
	}).Create(record).Error
}

// Lookup returns the record of videoID, if any.
func (d *DB) Lookup(videoID string) (*MediaRecord, bool, error) {
	if d == nil || d.db == nil {
		return nil, false, errors.New("database not initialized")
	}
	var record MediaRecord
	err := d.db.First(&record, "video_id = ?", videoID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &record, true, nil
}
