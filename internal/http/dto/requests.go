package dto

import "strings"

type SearchRequest struct {
	Query string `json:"query" validate:"required,max=500"`
}

func (r *SearchRequest) Normalize() {
	r.Query = strings.TrimSpace(r.Query)
}

// DownloadRequest asks for one URL to be fetched. OutputPath is accepted for
// client compatibility; files always land in the configured output directory.
type DownloadRequest struct {
	URL        string `json:"url" validate:"required,max=2048"`
	OutputPath string `json:"output_path,omitempty"`
}

func (r *DownloadRequest) Normalize() {
	r.URL = strings.TrimSpace(r.URL)
}

// CredentialsRequest replaces the stored provider credentials. Empty values
// are allowed and leave the provider unconfigured.
type CredentialsRequest struct {
	ClientID     string `json:"client_id" validate:"max=256"`
	ClientSecret string `json:"client_secret" validate:"max=256"`
}

func (r *CredentialsRequest) Normalize() {
	r.ClientID = strings.TrimSpace(r.ClientID)
	r.ClientSecret = strings.TrimSpace(r.ClientSecret)
}

type TestCredentialsRequest struct {
	ClientID     string `json:"client_id" validate:"required,max=256"`
	ClientSecret string `json:"client_secret" validate:"required,max=256"`
}

func (r *TestCredentialsRequest) Normalize() {
	r.ClientID = strings.TrimSpace(r.ClientID)
	r.ClientSecret = strings.TrimSpace(r.ClientSecret)
}
