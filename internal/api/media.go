package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/eagleeye/backend/internal/auth"
	"github.com/eagleeye/backend/internal/cache"
	"github.com/eagleeye/backend/internal/download"
	apperrors "github.com/eagleeye/backend/internal/errors"
	"github.com/eagleeye/backend/internal/logger"
	"github.com/eagleeye/backend/internal/media"
	"github.com/eagleeye/backend/internal/resolver"
	"github.com/eagleeye/backend/internal/token"
	"github.com/eagleeye/backend/internal/validators"
)

const formatsCacheTTL = 10 * time.Minute

// ArchiveDeleter removes archived download artifacts.
type ArchiveDeleter interface {
	Delete(ctx context.Context, key string) error
}

// MediaHandlers serves the media download and playback endpoints.
type MediaHandlers struct {
	orchestrator *download.Orchestrator
	store        download.Store
	resolver     resolver.Resolver
	tokens       token.Cache
	sources      *validators.Registry
	formats      *cache.Cache
	archive      ArchiveDeleter
	tokenTTL     time.Duration
	log          *logger.Logger
}

// MediaConfig wires the media handlers' dependencies. Formats and Archive
// are optional.
type MediaConfig struct {
	Orchestrator *download.Orchestrator
	Store        download.Store
	Resolver     resolver.Resolver
	Tokens       token.Cache
	Sources      *validators.Registry
	Formats      *cache.Cache
	Archive      ArchiveDeleter
	TokenTTL     time.Duration
	Logger       *logger.Logger
}

// NewMediaHandlers creates the media handler set.
func NewMediaHandlers(cfg *MediaConfig) *MediaHandlers {
	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = token.DefaultTTL
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default().WithComponent("api")
	}
	return &MediaHandlers{
		orchestrator: cfg.Orchestrator,
		store:        cfg.Store,
		resolver:     cfg.Resolver,
		tokens:       cfg.Tokens,
		sources:      cfg.Sources,
		formats:      cfg.Formats,
		archive:      cfg.Archive,
		tokenTTL:     tokenTTL,
		log:          log,
	}
}

// mediaRequest is the shared request body for downloads and playback tokens.
type mediaRequest struct {
	URL     string `json:"url"`
	Kind    string `json:"kind,omitempty"`
	Quality string `json:"quality,omitempty"`
}

// selection validates the request and returns the parsed kind and quality.
func (h *MediaHandlers) selection(req *mediaRequest) (media.Kind, media.Quality, error) {
	if req.URL == "" {
		return "", media.Quality{}, apperrors.ValidationError("url is required")
	}

	kind, err := media.ParseKind(req.Kind)
	if err != nil {
		return "", media.Quality{}, apperrors.ValidationError(err.Error())
	}

	quality, err := media.ParseQuality(req.Quality)
	if err != nil {
		return "", media.Quality{}, apperrors.InvalidQuality(req.Quality)
	}

	if result := h.sources.Validate(req.URL); !result.Valid {
		return "", media.Quality{}, apperrors.UnsupportedSource(req.URL)
	}

	return kind, quality, nil
}

// jobResponse is the wire form of a download job.
type jobResponse struct {
	JobID       string  `json:"job_id"`
	URL         string  `json:"url"`
	Title       string  `json:"title,omitempty"`
	Kind        string  `json:"kind"`
	Quality     string  `json:"quality"`
	Status      string  `json:"status"`
	Progress    float64 `json:"progress"`
	Error       string  `json:"error,omitempty"`
	CreatedAt   string  `json:"created_at"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

func toJobResponse(job *download.Job) jobResponse {
	resp := jobResponse{
		JobID:     job.ID,
		URL:       job.URL,
		Title:     job.Title,
		Kind:      string(job.Kind),
		Quality:   job.Quality,
		Status:    job.Status,
		Progress:  job.Progress,
		Error:     job.Error,
		CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339),
	}
	if job.CompletedAt != nil {
		completedAt := job.CompletedAt.UTC().Format(time.RFC3339)
		resp.CompletedAt = &completedAt
	}
	return resp
}

// requestUserID returns the authenticated user's ID, or "" for guests.
func requestUserID(ctx context.Context) string {
	if userCtx := auth.GetUserFromContext(ctx); userCtx != nil {
		return userCtx.UserID.String()
	}
	return ""
}

// loadOwnedJob fetches a job and enforces owner scoping. Jobs belonging to
// another user surface as not found.
func (h *MediaHandlers) loadOwnedJob(ctx context.Context, jobID string) (*download.Job, error) {
	if jobID == "" {
		return nil, apperrors.ValidationError("job_id is required")
	}

	job, err := h.store.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, download.ErrJobNotFound) {
			return nil, apperrors.JobNotFound()
		}
		return nil, apperrors.DatabaseError("failed to load download job").WithCause(err)
	}

	if job.UserID != "" && job.UserID != requestUserID(ctx) {
		return nil, apperrors.JobNotFound()
	}

	return job, nil
}

// CreateDownload handles POST /api/v1/media/download.
// The job is accepted and runs in the background; 202 carries its ID.
func (h *MediaHandlers) CreateDownload(w http.ResponseWriter, r *http.Request) error {
	var req mediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	kind, quality, err := h.selection(&req)
	if err != nil {
		return err
	}

	job, err := h.orchestrator.Submit(r.Context(), &download.Request{
		URL:     req.URL,
		Quality: quality,
		Kind:    kind,
		UserID:  requestUserID(r.Context()),
	})
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusAccepted, toJobResponse(job))
	return nil
}

// GetJob handles GET /api/v1/media/download/{job_id}.
func (h *MediaHandlers) GetJob(w http.ResponseWriter, r *http.Request) error {
	job, err := h.loadOwnedJob(r.Context(), r.PathValue("job_id"))
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, toJobResponse(job))
	return nil
}

// ListDownloads handles GET /api/v1/media/downloads.
// Guests see only guest jobs; authenticated users see their own.
func (h *MediaHandlers) ListDownloads(w http.ResponseWriter, r *http.Request) error {
	jobs, err := h.store.ListByUser(r.Context(), requestUserID(r.Context()))
	if err != nil {
		return apperrors.DatabaseError("failed to list downloads").WithCause(err)
	}

	responses := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		responses = append(responses, toJobResponse(job))
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, map[string]interface{}{
		"downloads": responses,
	})
	return nil
}

// DeleteJob handles DELETE /api/v1/media/download/{job_id}.
// The job record, the local file and any archive copy all go.
func (h *MediaHandlers) DeleteJob(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	job, err := h.loadOwnedJob(ctx, r.PathValue("job_id"))
	if err != nil {
		return err
	}

	if !job.Terminal() {
		return apperrors.Conflict("download is still running")
	}

	if job.FilePath != "" {
		if err := os.Remove(job.FilePath); err != nil && !os.IsNotExist(err) {
			h.log.Warn(ctx, "failed to remove downloaded file", map[string]interface{}{
				"job_id": job.ID,
				"path":   job.FilePath,
				"error":  err.Error(),
			})
		}
	}

	if job.ArchiveKey != "" && h.archive != nil {
		if err := h.archive.Delete(ctx, job.ArchiveKey); err != nil {
			h.log.Warn(ctx, "failed to remove archived file", map[string]interface{}{
				"job_id": job.ID,
				"key":    job.ArchiveKey,
				"error":  err.Error(),
			})
		}
	}

	if err := h.store.Delete(ctx, job.ID); err != nil {
		if errors.Is(err, download.ErrJobNotFound) {
			return apperrors.JobNotFound()
		}
		return apperrors.DatabaseError("failed to delete download job").WithCause(err)
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// playbackTokenResponse carries the issued token and where to redeem it.
type playbackTokenResponse struct {
	Token     string `json:"token"`
	ProxyPath string `json:"proxy_path"`
	ExpiresIn int    `json:"expires_in"`
}

// IssuePlaybackToken handles POST /api/v1/media/playback-token.
func (h *MediaHandlers) IssuePlaybackToken(w http.ResponseWriter, r *http.Request) error {
	var req mediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	kind, quality, err := h.selection(&req)
	if err != nil {
		return err
	}

	tok, err := h.tokens.Issue(r.Context(), token.Descriptor{
		URL:     req.URL,
		Quality: quality.Label(),
		Kind:    kind,
	})
	if err != nil {
		return apperrors.InternalError("failed to issue playback token").WithCause(err)
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusCreated, playbackTokenResponse{
		Token:     tok,
		ProxyPath: "/api/v1/media/stream/" + tok,
		ExpiresIn: int(h.tokenTTL.Seconds()),
	})
	return nil
}

// formatsRequest is the request body for format discovery.
type formatsRequest struct {
	URL string `json:"url"`
}

// Formats handles POST /api/v1/media/formats.
// Responses are cached per URL since upstream metadata rarely changes within
// the cache window.
func (h *MediaHandlers) Formats(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var req formatsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}
	if req.URL == "" {
		return apperrors.ValidationError("url is required")
	}
	if result := h.sources.Validate(req.URL); !result.Valid {
		return apperrors.UnsupportedSource(req.URL)
	}

	cacheKey := "formats:" + req.URL
	if h.formats != nil {
		if cached, ok := h.formats.Get(ctx, cacheKey); ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(cached))
			return nil
		}
	}

	list, err := h.resolver.Formats(ctx, req.URL)
	if err != nil {
		return resolverError(err)
	}

	if h.formats != nil {
		if data, err := json.Marshal(list); err == nil {
			h.formats.Set(ctx, cacheKey, string(data), formatsCacheTTL)
		}
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(ctx), http.StatusOK, list)
	return nil
}

// resolverError maps resolver sentinel errors onto the API error taxonomy.
func resolverError(err error) error {
	switch {
	case errors.Is(err, resolver.ErrInvalidURL), errors.Is(err, resolver.ErrURLNotSupported):
		return apperrors.UnsupportedSource(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.ExternalTimeout("media resolver")
	default:
		return apperrors.ResolveError("failed to resolve media information").WithCause(err)
	}
}
