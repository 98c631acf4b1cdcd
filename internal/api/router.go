package api

import (
	"net/http"

	"github.com/eagleeye/backend/internal/auth"
	apperrors "github.com/eagleeye/backend/internal/errors"
	"github.com/eagleeye/backend/internal/health"
	"github.com/eagleeye/backend/internal/metrics"
	"github.com/eagleeye/backend/internal/notify"
	"github.com/eagleeye/backend/internal/stream"
	"github.com/eagleeye/backend/internal/validators"
)

// RouterConfig carries everything the router mounts.
type RouterConfig struct {
	AuthService   *auth.Service
	AuthHandlers  *auth.Handlers
	Media         *MediaHandlers
	StreamProxy   *stream.Proxy
	FileHandler   *stream.FileHandler
	Validators    *validators.Handlers
	Notify        *notify.Handler
	HealthHandler *health.Handler
	Metrics       *metrics.Metrics
}

// NewRouter builds the HTTP route table.
func NewRouter(cfg *RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()

	// withAuth requires a valid access token.
	withAuth := func(next http.HandlerFunc) http.Handler {
		return auth.Middleware(cfg.AuthService)(next)
	}

	// withOptionalAuth attaches user context when a token is present but
	// lets anonymous requests through.
	withOptionalAuth := func(next http.HandlerFunc) http.Handler {
		return auth.OptionalMiddleware(cfg.AuthService)(next)
	}

	// Health and metrics
	mux.HandleFunc("GET /health", cfg.HealthHandler.HealthHandler)
	mux.HandleFunc("GET /health/live", cfg.HealthHandler.LivenessHandler)
	mux.HandleFunc("GET /health/ready", cfg.HealthHandler.ReadinessHandler)
	mux.HandleFunc("GET /metrics", cfg.Metrics.Handler())

	// Auth
	mux.HandleFunc("POST /api/v1/auth/register", cfg.AuthHandlers.Register)
	mux.HandleFunc("POST /api/v1/auth/login", cfg.AuthHandlers.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", cfg.AuthHandlers.Refresh)
	mux.Handle("POST /api/v1/auth/logout", withAuth(cfg.AuthHandlers.Logout))

	// Source validation
	mux.HandleFunc("POST /api/v1/validate/url", cfg.Validators.ValidateURL)
	mux.HandleFunc("GET /api/v1/validate/url", cfg.Validators.ValidateURLQuery)
	mux.HandleFunc("GET /api/v1/validate/sources", cfg.Validators.GetSupportedSources)

	// Media downloads and playback
	mux.Handle("POST /api/v1/media/download", withOptionalAuth(apperrors.HandleFunc(cfg.Media.CreateDownload)))
	mux.Handle("GET /api/v1/media/downloads", withOptionalAuth(apperrors.HandleFunc(cfg.Media.ListDownloads)))
	mux.Handle("GET /api/v1/media/download/{job_id}", withOptionalAuth(apperrors.HandleFunc(cfg.Media.GetJob)))
	mux.Handle("DELETE /api/v1/media/download/{job_id}", withOptionalAuth(apperrors.HandleFunc(cfg.Media.DeleteJob)))
	mux.Handle("GET /api/v1/media/download/{job_id}/file", withOptionalAuth(cfg.FileHandler.ServeFile))
	mux.Handle("POST /api/v1/media/playback-token", withOptionalAuth(apperrors.HandleFunc(cfg.Media.IssuePlaybackToken)))
	mux.Handle("POST /api/v1/media/formats", withOptionalAuth(apperrors.HandleFunc(cfg.Media.Formats)))
	mux.HandleFunc("GET /api/v1/media/stream/{token}", cfg.StreamProxy.Stream)

	// WebSocket notifications
	mux.HandleFunc("GET /api/v1/ws", cfg.Notify.ServeWS)

	return mux
}
