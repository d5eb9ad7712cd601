package reconciler

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/erenuysaldev/Erotify/internal/constants"
	"github.com/erenuysaldev/Erotify/internal/logger"
	"github.com/erenuysaldev/Erotify/internal/tagging"
)

func touch(t *testing.T, dir, name string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, 64), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}
	return path
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		filename   string
		wantArtist string
		wantTitle  string
	}{
		{"Artist - Song Title.mp3", "Artist", "Song Title"},
		{"SoloName.mp3", "Unknown Artist", "SoloName"},
		{"A - B - C.mp3", "A", "B - C"},
		{"Daft Punk - One More Time.flac", "Daft Punk", "One More Time"},
		{"No-Spaces-Dash.mp3", "Unknown Artist", "No-Spaces-Dash"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			artist, title := ParseFilename(tt.filename)
			if artist != tt.wantArtist {
				t.Errorf("artist = %q, want %q", artist, tt.wantArtist)
			}
			if title != tt.wantTitle {
				t.Errorf("title = %q, want %q", title, tt.wantTitle)
			}
		})
	}
}

func TestScan_EmptyDir(t *testing.T) {
	r := New(logger.Discard())

	records, err := r.Scan(t.TempDir(), constants.DefaultScanWindow)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no records, got %d", len(records))
	}
}

func TestScan_MissingDir(t *testing.T) {
	r := New(logger.Discard())

	records, err := r.Scan(filepath.Join(t.TempDir(), "missing"), constants.DefaultScanWindow)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no records, got %d", len(records))
	}
}

func TestScan_FiltersByWindowAndExtension(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	touch(t, dir, "Artist - Fresh.mp3", now.Add(-time.Minute))
	touch(t, dir, "Artist - Stale.mp3", now.Add(-10*time.Minute))
	touch(t, dir, "cover.jpg", now)
	touch(t, dir, "Other - Track.flac", now)
	if err := os.Mkdir(filepath.Join(dir, "sub.mp3"), 0755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	r := New(logger.Discard())
	records, err := r.Scan(dir, 5*time.Minute)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d: %+v", len(records), records)
	}

	if records[0].Filename != "Artist - Fresh.mp3" || records[1].Filename != "Other - Track.flac" {
		t.Errorf("Unexpected records: %s, %s", records[0].Filename, records[1].Filename)
	}
	for _, rec := range records {
		if rec.Album != constants.DefaultAlbum {
			t.Errorf("Expected default album for untagged file, got %q", rec.Album)
		}
		if rec.Source != constants.SourceTag {
			t.Errorf("Expected source %q, got %q", constants.SourceTag, rec.Source)
		}
		if rec.Duration != 0 {
			t.Errorf("Expected duration 0, got %d", rec.Duration)
		}
	}
}

func TestScan_UsesTagAlbumButFilenameTitle(t *testing.T) {
	dir := t.TempDir()
	path := touch(t, dir, "Filename Artist - Filename Title.mp3", time.Now())
	if err := tagging.Write(path, &tagging.Tags{Title: "Tag Title", Artist: "Tag Artist", Album: "Tag Album"}); err != nil {
		t.Fatalf("tagging.Write failed: %v", err)
	}

	r := New(logger.Discard())
	records, err := r.Scan(dir, time.Minute)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}

	rec := records[0]
	if rec.Title != "Filename Title" || rec.Artist != "Filename Artist" {
		t.Errorf("Expected filename-derived title/artist, got %q/%q", rec.Title, rec.Artist)
	}
	if rec.Album != "Tag Album" {
		t.Errorf("Expected tag album, got %q", rec.Album)
	}
}

func TestIsAudioFile(t *testing.T) {
	if !IsAudioFile("a.MP3") {
		t.Error("Expected extension match to be case-insensitive")
	}
	if IsAudioFile("a.txt") {
		t.Error("Expected .txt to be rejected")
	}
}
