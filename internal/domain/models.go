package domain

import (
	"fmt"
	"time"
)

type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
	JobStatusCancelled   JobStatus = "cancelled"
)

// IsTerminal reports whether no further transition may leave this status.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// IsActive reports whether a job in this status may still be cancelled.
func (s JobStatus) IsActive() bool {
	return s == JobStatusPending || s == JobStatusDownloading
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle
// forward-only: pending -> downloading -> {completed, failed}, with cancelled
// reachable from pending or downloading. A downloading job may be updated in place.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusDownloading || next == JobStatusCancelled
	case JobStatusDownloading:
		switch next {
		case JobStatusDownloading, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
			return true
		}
	}
	return false
}

// SongInfo is the best-effort metadata of the first song a job produced.
type SongInfo struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	Duration int    `json:"duration"`
}

// Job is one tracked download request.
type Job struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	SongInfo  *SongInfo `json:"song_info"`
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Status    JobStatus `json:"status"`
	Message   string    `json:"message"`
	FilePath  string    `json:"file_path,omitempty"`
	Files     []string  `json:"files,omitempty"`
	Progress  float64   `json:"progress"`
}

// Transition moves the job to next, keeping progress monotonic. It refuses
// backward moves and any move out of a terminal status.
func (j *Job) Transition(next JobStatus, progress float64, message string) error {
	if !j.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, next)
	}
	j.Status = next
	if progress > j.Progress {
		j.Progress = progress
	}
	if message != "" {
		j.Message = message
	}
	j.UpdatedAt = time.Now()
	return nil
}

// Clone returns a deep copy safe to hand to readers.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.SongInfo != nil {
		info := *j.SongInfo
		c.SongInfo = &info
	}
	if j.Files != nil {
		c.Files = append([]string(nil), j.Files...)
	}
	return &c
}

// DownloadedFile is a transient parse result for one audio file found on disk.
type DownloadedFile struct {
	ModTime    time.Time `json:"mod_time"`
	Path       string    `json:"path"`
	Filename   string    `json:"filename"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	Album      string    `json:"album,omitempty"`
	Source     string    `json:"source"`
	Size       int64     `json:"size"`
	Duration   int       `json:"duration"`
	HasArtwork bool      `json:"has_artwork"`
}

// Credentials is the provider API client id/secret pair.
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// Configured reports whether both halves of the pair are present.
func (c Credentials) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// SearchResult is one track returned by the provider search.
type SearchResult struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	URL      string `json:"url"`
	CoverURL string `json:"cover_url,omitempty"`
	Duration int    `json:"duration"`
}
