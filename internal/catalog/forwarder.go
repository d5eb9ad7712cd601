// Package catalog forwards downloaded files to the music library service.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/erenuysaldev/Erotify/internal/constants"
	"github.com/erenuysaldev/Erotify/internal/domain"
	"github.com/erenuysaldev/Erotify/internal/httpclient"
	"github.com/erenuysaldev/Erotify/internal/logger"
)

// maxErrorBody caps how much of a rejection body is kept in the error.
const maxErrorBody = 512

// Record is the body POSTed to the library's add-downloaded endpoint.
type Record struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Album     string `json:"album"`
	Filename  string `json:"filename"`
	Source    string `json:"source"`
	CreatedAt string `json:"createdAt"`
	Duration  int    `json:"duration"`
}

// Stats counts forwarding outcomes since start.
type Stats struct {
	Forwarded int64 `json:"forwarded"`
	Failed    int64 `json:"failed"`
}

type Forwarder struct {
	client    *httpclient.Client
	logger    *logger.Logger
	endpoint  string
	forwarded atomic.Int64
	failed    atomic.Int64
}

// NewForwarder posts to baseURL + /api/music/add-downloaded. Requests are not
// retried; a rejected record is simply reported.
func NewForwarder(baseURL string, timeout time.Duration, log *logger.Logger) *Forwarder {
	if log == nil {
		log = logger.Default()
	}
	return &Forwarder{
		client:   httpclient.NewClient(nil, httpclient.Options{Timeout: timeout, Retries: 1}),
		logger:   log.WithComponent("catalog"),
		endpoint: strings.TrimRight(baseURL, "/") + constants.CatalogAddPath,
	}
}

// NewRecord builds the catalog payload for a reconciled file. filename is the
// name relative to the library's upload directory.
func NewRecord(file domain.DownloadedFile, filename string) Record {
	album := file.Album
	if album == "" {
		album = constants.DefaultAlbum
	}
	source := file.Source
	if source == "" {
		source = constants.SourceTag
	}
	return Record{
		ID:        uuid.New().String(),
		Title:     file.Title,
		Artist:    file.Artist,
		Album:     album,
		Duration:  file.Duration,
		Filename:  filename,
		Source:    source,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// Forward sends one record. Any non-2xx reply is domain.ErrCatalogRejected.
func (f *Forwarder) Forward(ctx context.Context, record Record) error {
	err := f.post(ctx, record)
	log := f.logger.With("title", record.Title, "filename", record.Filename)
	if err != nil {
		f.failed.Add(1)
		log.Warn("Failed to add song to catalog", "error", err)
		return err
	}
	f.forwarded.Add(1)
	log.Info("Song added to catalog")
	return nil
}

func (f *Forwarder) post(ctx context.Context, record Record) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("post to catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: status %d: %s", domain.ErrCatalogRejected, resp.StatusCode, strings.TrimSpace(string(text)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (f *Forwarder) Stats() Stats {
	return Stats{
		Forwarded: f.forwarded.Load(),
		Failed:    f.failed.Load(),
	}
}
