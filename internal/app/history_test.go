package app

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lvcoi/ytgrab/internal/db"
	"github.com/lvcoi/ytgrab/internal/downloader"
)

type fakeHistory struct {
	records   map[string]*db.MediaRecord
	lookupErr error
	saved     []*db.MediaRecord
}

func (h *fakeHistory) Lookup(videoID string) (*db.MediaRecord, bool, error) {
	if h.lookupErr != nil {
		return nil, false, h.lookupErr
	}
	r, ok := h.records[videoID]
	return r, ok, nil
}

func (h *fakeHistory) Save(record *db.MediaRecord) error {
	h.saved = append(h.saved, record)
	return nil
}

func splitResult() Result {
	return Result{
		URL: "https://music.youtube.com/watch?v=abc",
		Download: downloader.Result{
			ID:     "abc",
			Title:  "Song",
			Author: "Band",
			Artifact: downloader.Artifact{
				Path:  "downloads/Song.mp4",
				Mode:  downloader.ModeSplit,
				Bytes: 4096,
				Tasks: []*downloader.DownloadTask{
					{Label: "video", Source: downloader.StreamDescriptor{ID: 137}},
					{Label: "audio", Source: downloader.StreamDescriptor{ID: 140}},
				},
			},
		},
	}
}

func TestRecordSavesSuccessfulDownload(t *testing.T) {
	h := &fakeHistory{}
	if err := Record(h, splitResult(), zap.NewNop()); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if len(h.saved) != 1 {
		t.Fatalf("expected one record, got %d", len(h.saved))
	}
	got := h.saved[0]
	want := db.MediaRecord{
		VideoID:   "abc",
		Title:     "Song",
		Author:    "Band",
		MediaType: "music",
		Mode:      "split",
		Streams:   "video:137,audio:140",
		FilePath:  "downloads/Song.mp4",
		SourceURL: "https://music.youtube.com/watch?v=abc",
		FileSize:  4096,
	}
	if *got != want {
		t.Fatalf("expected %+v, got %+v", want, *got)
	}
}

func TestRecordSkipsFailures(t *testing.T) {
	h := &fakeHistory{}
	failed := splitResult()
	failed.Err = errors.New("merge failed")
	if err := Record(h, failed, zap.NewNop()); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if err := Record(h, Result{}, zap.NewNop()); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if err := Record(nil, splitResult(), zap.NewNop()); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if len(h.saved) != 0 {
		t.Fatalf("expected nothing saved, got %d", len(h.saved))
	}
}

func TestRecordLogsPreviousDownload(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := &fakeHistory{records: map[string]*db.MediaRecord{
		"abc": {VideoID: "abc", FilePath: "old/Song.mp4", UpdatedAt: time.Unix(1_700_000_000, 0)},
	}}
	if err := Record(h, splitResult(), zap.New(core)); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	entries := logs.FilterMessage("Downloaded before").All()
	if len(entries) != 1 || entries[0].ContextMap()["path"] != "old/Song.mp4" {
		t.Fatalf("expected a previous download log line, got %+v", entries)
	}

	core, logs = observer.New(zap.InfoLevel)
	h = &fakeHistory{lookupErr: errors.New("disk I/O error")}
	if err := Record(h, splitResult(), zap.New(core)); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if logs.FilterLevelExact(zap.WarnLevel).Len() != 1 || len(h.saved) != 1 {
		t.Fatal("lookup failures must be logged and the record still saved")
	}
}
