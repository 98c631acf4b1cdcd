// Package stream serves media bytes to clients, either relayed live from an
// upstream source or from a finished download.
package stream

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	apperrors "github.com/eagleeye/backend/internal/errors"
	"github.com/eagleeye/backend/internal/logger"
	"github.com/eagleeye/backend/internal/media"
	"github.com/eagleeye/backend/internal/resolver"
	"github.com/eagleeye/backend/internal/token"
)

// copyBufferSize is the chunk size used when relaying upstream bytes.
const copyBufferSize = 8 * 1024

// Proxy relays media from an upstream source to the client, keyed by a
// previously issued playback token.
type Proxy struct {
	tokens   token.Cache
	resolver resolver.Resolver
	log      *logger.Logger
}

// NewProxy creates a playback proxy.
func NewProxy(tokens token.Cache, r resolver.Resolver, log *logger.Logger) *Proxy {
	if log == nil {
		log = logger.Default().WithComponent("stream")
	}
	return &Proxy{tokens: tokens, resolver: r, log: log}
}

// Stream handles GET /api/v1/media/stream/{token}.
//
// The token is resolved first; an unknown or expired token is rejected
// without ever contacting the upstream source. Once the response body has
// started, an upstream failure aborts the connection rather than sending a
// misleading 200 with truncated data.
func (p *Proxy) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := apperrors.GetRequestID(ctx)

	tok := r.PathValue("token")
	if tok == "" {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("token is required"))
		return
	}

	desc, err := p.tokens.Resolve(ctx, tok)
	if err != nil {
		if errors.Is(err, token.ErrTokenNotFound) {
			apperrors.WriteError(w, requestID, apperrors.TokenNotFound())
			return
		}
		p.log.Error(ctx, "failed to resolve playback token", err)
		apperrors.WriteError(w, requestID, apperrors.InternalError("failed to resolve playback token"))
		return
	}

	quality, err := media.ParseQuality(desc.Quality)
	if err != nil {
		// Descriptors are validated at issue time; a bad one here means the
		// cache contents were tampered with or corrupted.
		apperrors.WriteError(w, requestID, apperrors.InternalError("corrupt playback token"))
		return
	}

	sel := resolver.Selection{Quality: quality, Kind: desc.Kind}
	src, err := p.resolver.Resolve(ctx, desc.URL, sel)
	if err != nil {
		p.log.Error(ctx, "failed to resolve upstream source", err, map[string]interface{}{
			"url": desc.URL,
		})
		apperrors.WriteError(w, requestID, apperrors.StreamError("failed to resolve media source"))
		return
	}
	defer src.Body.Close()

	filename := media.SafeFilename(src.Title, desc.Kind)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Type", streamContentType(src.ContentType, desc.Kind))
	if src.Length > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(src.Length, 10))
	}
	w.WriteHeader(http.StatusOK)

	buf := make([]byte, copyBufferSize)
	if _, err := io.CopyBuffer(w, src.Body, buf); err != nil {
		// Headers are already sent. The transfer stays truncated so the
		// client can tell it did not get the whole file.
		p.log.Warn(ctx, "stream aborted", map[string]interface{}{
			"url":   desc.URL,
			"error": err.Error(),
		})
		return
	}
}

// streamContentType prefers the upstream content type and falls back to the
// kind's container format.
func streamContentType(upstream string, kind media.Kind) string {
	if upstream != "" && upstream != "application/octet-stream" {
		return upstream
	}
	if kind == media.KindAudio {
		return "audio/mpeg"
	}
	return "video/mp4"
}
