package httpapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/erenuysaldev/Erotify/internal/app"
	"github.com/erenuysaldev/Erotify/internal/domain"
	"github.com/erenuysaldev/Erotify/internal/http/dto"
	"github.com/erenuysaldev/Erotify/internal/logger"
	"github.com/erenuysaldev/Erotify/internal/spotify"
)

const maxBodyBytes = 1 << 20

const msgSearchUnconfigured = "Spotify credentials not configured. Please set SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET environment variables."

// JobManager is the job lifecycle as seen by the HTTP layer. *app.JobService satisfies it.
type JobManager interface {
	EnqueueDownload(url string) (*app.Task, error)
	GetJob(id string) (*domain.Job, error)
	ListJobs() []*domain.Job
	CancelJob(id string) (*domain.Job, error)
}

type Searcher interface {
	Search(ctx context.Context, query string) ([]domain.SearchResult, error)
}

// CredentialsManager is satisfied by *credentials.Store.
type CredentialsManager interface {
	Get() domain.Credentials
	Set(creds domain.Credentials) error
	Configured() bool
	Masked() domain.Credentials
}

type CredentialsValidator interface {
	Validate(ctx context.Context, creds domain.Credentials) (*spotify.Valid, error)
}

// ToolChecker reports whether the download tool can be started.
type ToolChecker interface {
	Available() bool
}

type Handler struct {
	Jobs        JobManager
	Searcher    Searcher
	Credentials CredentialsManager
	Validator   CredentialsValidator
	Tool        ToolChecker
	Logger      *logger.Logger
}

func NewHandler(jobs JobManager, searcher Searcher, creds CredentialsManager, validator CredentialsValidator, tool ToolChecker, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{
		Jobs:        jobs,
		Searcher:    searcher,
		Credentials: creds,
		Validator:   validator,
		Tool:        tool,
		Logger:      log.WithComponent("http"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Post("/search", h.Search)

	r.Post("/download", h.StartDownload)
	r.Get("/download/{id}/status", h.DownloadStatus)
	r.Delete("/download/{id}", h.CancelDownload)
	r.Get("/downloads", h.ListDownloads)

	r.Get("/settings", h.Settings)
	r.Post("/update-credentials", h.UpdateCredentials)
	r.Post("/update-spotify-config", h.UpdateCredentials)
	r.Post("/test-credentials", h.TestCredentials)
	r.Post("/test-spotify-config", h.TestCredentials)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.HealthResponse{
		Status:            "healthy",
		SpotDLInitialized: h.Tool.Available(),
		SpotifyConfigured: h.Credentials.Configured(),
	})
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req dto.SearchRequest
	if !h.bind(w, r, &req) {
		return
	}

	if !h.Credentials.Configured() {
		writeJSON(w, http.StatusOK, unconfiguredSearch())
		return
	}

	results, err := h.Searcher.Search(r.Context(), req.Query)
	if errors.Is(err, domain.ErrCredentialsMissing) {
		writeJSON(w, http.StatusOK, unconfiguredSearch())
		return
	}
	if err != nil {
		h.Logger.Error("Search failed", "query", req.Query, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.NewSearchResponse(results))
}

func unconfiguredSearch() dto.SearchResponse {
	resp := dto.NewSearchResponse(nil)
	resp.Message = msgSearchUnconfigured
	return resp
}

func (h *Handler) StartDownload(w http.ResponseWriter, r *http.Request) {
	var req dto.DownloadRequest
	if !h.bind(w, r, &req) {
		return
	}
	if req.OutputPath != "" {
		h.Logger.Debug("Ignoring requested output path", "output_path", req.OutputPath)
	}

	task, err := h.Jobs.EnqueueDownload(req.URL)
	if err != nil {
		h.Logger.Error("Failed to enqueue download", "url", req.URL, "error", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, dto.DownloadStartedResponse{
		DownloadID: task.ID,
		Status:     "started",
	})
}

func (h *Handler) DownloadStatus(w http.ResponseWriter, r *http.Request) {
	job, err := h.Jobs.GetJob(chi.URLParam(r, "id"))
	if err != nil {
		h.writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) ListDownloads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.NewDownloadsResponse(h.Jobs.ListJobs()))
}

func (h *Handler) CancelDownload(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Jobs.CancelJob(chi.URLParam(r, "id")); err != nil {
		h.writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Download cancelled"})
}

func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	masked := h.Credentials.Masked()
	writeJSON(w, http.StatusOK, dto.SettingsResponse{
		ClientID:     masked.ClientID,
		ClientSecret: masked.ClientSecret,
		Configured:   masked.Configured(),
	})
}

func (h *Handler) UpdateCredentials(w http.ResponseWriter, r *http.Request) {
	var req dto.CredentialsRequest
	if !h.bind(w, r, &req) {
		return
	}

	creds := domain.Credentials{ClientID: req.ClientID, ClientSecret: req.ClientSecret}
	if err := h.Credentials.Set(creds); err != nil {
		h.Logger.Error("Failed to update credentials", "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.CredentialsTestResponse{Error: err.Error()})
		return
	}

	configured := creds.Configured()
	writeJSON(w, http.StatusOK, dto.CredentialsUpdatedResponse{
		Success:           true,
		Message:           "Spotify config updated successfully",
		Configured:        configured,
		SpotifyConfigured: configured,
	})
}

// TestCredentials checks a pair against the provider without storing it.
// A rejected pair is a successful request with success=false.
func (h *Handler) TestCredentials(w http.ResponseWriter, r *http.Request) {
	var req dto.TestCredentialsRequest
	if !decode(w, r, &req) {
		return
	}
	req.Normalize()
	if errs := dto.Validate(&req); errs != nil {
		writeJSON(w, http.StatusBadRequest, dto.CredentialsTestResponse{
			Error: "Client ID and Client Secret are required",
		})
		return
	}

	valid, err := h.Validator.Validate(r.Context(), domain.Credentials{
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
	})
	if err != nil {
		resp := dto.CredentialsTestResponse{Error: err.Error()}
		var authErr *spotify.AuthError
		if errors.As(err, &authErr) {
			resp.Details = authErr.Body
		} else {
			h.Logger.Error("Credential check failed", "error", err)
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	writeJSON(w, http.StatusOK, dto.CredentialsTestResponse{
		Success:   true,
		Message:   "Spotify credentials are valid",
		TokenType: valid.TokenType,
	})
}

func (h *Handler) writeJobError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "Download not found")
		return
	}
	h.Logger.Error("Job lookup failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

type normalizer interface {
	Normalize()
}

// bind decodes, normalizes and validates a request body. On failure it has
// already written a 400 and returns false.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, req normalizer) bool {
	if !decode(w, r, req) {
		return false
	}
	req.Normalize()
	if errs := dto.Validate(req); errs != nil {
		h.Logger.Warn("Validation failed", "path", r.URL.Path, "errors", dto.ToResponse(errs))
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:  dto.ToResponse(errs),
			Fields: dto.ToMap(errs),
		})
		return false
	}
	return true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Default().Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message})
}
