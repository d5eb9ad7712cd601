// Package reconciler infers completed downloads from the files on disk.
package reconciler

import (
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/erenuysaldev/Erotify/internal/constants"
	"github.com/erenuysaldev/Erotify/internal/domain"
	"github.com/erenuysaldev/Erotify/internal/logger"
	"github.com/erenuysaldev/Erotify/internal/tagging"
)

type Reconciler struct {
	Logger *logger.Logger
	now    func() time.Time
}

func New(log *logger.Logger) *Reconciler {
	if log == nil {
		log = logger.Default()
	}
	return &Reconciler{
		Logger: log.WithComponent("reconciler"),
		now:    time.Now,
	}
}

// Scan lists audio files in dir modified within window of now. A missing or
// empty directory yields no records and no error.
func (r *Reconciler) Scan(dir string, window time.Duration) ([]domain.DownloadedFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			r.Logger.Warn("Output directory does not exist", "dir", dir)
			return nil, nil
		}
		return nil, err
	}

	cutoff := r.now().Add(-window)
	var records []domain.DownloadedFile
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !IsAudioFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		if !info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		artist, title := ParseFilename(entry.Name())
		record := domain.DownloadedFile{
			Path:     path,
			Filename: entry.Name(),
			Title:    title,
			Artist:   artist,
			Album:    constants.DefaultAlbum,
			Source:   constants.SourceTag,
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		}
		r.enrich(&record)
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Filename < records[j].Filename
	})
	return records, nil
}

// enrich fills album and artwork from embedded tags when they can be read.
// Title and artist always come from the filename.
func (r *Reconciler) enrich(record *domain.DownloadedFile) {
	tags, err := tagging.Read(record.Path)
	if err != nil {
		r.Logger.WithFile(record.Path).Debug("No readable tags", "error", err)
		return
	}
	if album := strings.TrimSpace(tags.Album); album != "" {
		record.Album = album
	}
	record.HasArtwork = tags.HasArtwork
}

// ParseFilename splits "Artist - Title.ext" on the first separator. A name
// without a separator is all title, by an unknown artist.
func ParseFilename(filename string) (artist, title string) {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	if a, t, ok := strings.Cut(base, constants.TitleSeparator); ok {
		return strings.TrimSpace(a), strings.TrimSpace(t)
	}
	return constants.UnknownArtist, strings.TrimSpace(base)
}

func IsAudioFile(name string) bool {
	return slices.Contains(constants.AudioExtensions, strings.ToLower(filepath.Ext(name)))
}
