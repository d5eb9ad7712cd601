package dto

import "github.com/erenuysaldev/Erotify/internal/domain"

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status            string `json:"status"`
	SpotDLInitialized bool   `json:"spotdl_initialized"`
	SpotifyConfigured bool   `json:"spotify_configured"`
}

type SearchResponse struct {
	Message string                `json:"message,omitempty"`
	Results []domain.SearchResult `json:"results"`
}

func NewSearchResponse(results []domain.SearchResult) SearchResponse {
	if results == nil {
		results = []domain.SearchResult{}
	}
	return SearchResponse{Results: results}
}

type DownloadStartedResponse struct {
	DownloadID string `json:"download_id"`
	Status     string `json:"status"`
}

type DownloadsResponse struct {
	Downloads []*domain.Job `json:"downloads"`
}

func NewDownloadsResponse(jobs []*domain.Job) DownloadsResponse {
	if jobs == nil {
		jobs = []*domain.Job{}
	}
	return DownloadsResponse{Downloads: jobs}
}

// CredentialsUpdatedResponse reports the flag under both the current and the
// legacy key so older clients keep working.
type CredentialsUpdatedResponse struct {
	Message           string `json:"message"`
	Success           bool   `json:"success"`
	Configured        bool   `json:"configured"`
	SpotifyConfigured bool   `json:"spotify_configured"`
}

type CredentialsTestResponse struct {
	Message   string `json:"message,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Error     string `json:"error,omitempty"`
	Details   string `json:"details,omitempty"`
	Success   bool   `json:"success"`
}

type SettingsResponse struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Configured   bool   `json:"configured"`
}
