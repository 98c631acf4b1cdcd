package stream

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/eagleeye/backend/internal/auth"
	"github.com/eagleeye/backend/internal/download"
	apperrors "github.com/eagleeye/backend/internal/errors"
	"github.com/eagleeye/backend/internal/logger"
	"github.com/eagleeye/backend/internal/media"
	"github.com/eagleeye/backend/internal/storage"
)

// FileHandler serves the bytes of a completed download, preferring the
// archive copy and falling back to the local file.
type FileHandler struct {
	store   download.Store
	archive *storage.Client
	log     *logger.Logger
}

// NewFileHandler creates a file handler. archive may be nil when no object
// storage is configured; local files are served either way.
func NewFileHandler(store download.Store, archive *storage.Client, log *logger.Logger) *FileHandler {
	if log == nil {
		log = logger.Default().WithComponent("stream")
	}
	return &FileHandler{store: store, archive: archive, log: log}
}

// rangeSpec represents a parsed HTTP Range header.
type rangeSpec struct {
	start int64
	end   int64
}

var rangePattern = regexp.MustCompile(`^(\d*)-(\d*)$`)

// parseRange parses an HTTP Range header value.
// Supports formats: "bytes=0-499", "bytes=500-", "bytes=-500"
func parseRange(rangeHeader string, totalSize int64) (*rangeSpec, error) {
	if rangeHeader == "" {
		return nil, nil
	}

	if !strings.HasPrefix(rangeHeader, "bytes=") {
		return nil, errors.New("invalid range unit")
	}

	spec := strings.TrimPrefix(rangeHeader, "bytes=")

	// Multiple ranges are not supported; serve the first one.
	if strings.Contains(spec, ",") {
		spec = strings.Split(spec, ",")[0]
	}

	matches := rangePattern.FindStringSubmatch(strings.TrimSpace(spec))
	if matches == nil {
		return nil, errors.New("invalid range format")
	}

	startStr, endStr := matches[1], matches[2]
	rs := &rangeSpec{}

	switch {
	case startStr == "" && endStr == "":
		return nil, errors.New("invalid range: both start and end are empty")

	case startStr == "":
		// Suffix range: -500 means last 500 bytes
		suffix, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid suffix length: %w", err)
		}
		rs.start = totalSize - suffix
		if rs.start < 0 {
			rs.start = 0
		}
		rs.end = totalSize - 1

	case endStr == "":
		// Open-ended range: 500- means from byte 500 to end
		start, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid start position: %w", err)
		}
		rs.start = start
		rs.end = totalSize - 1

	default:
		start, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid start position: %w", err)
		}
		end, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid end position: %w", err)
		}
		rs.start = start
		rs.end = end
	}

	if rs.start < 0 || rs.start >= totalSize {
		return nil, errors.New("range start out of bounds")
	}
	if rs.end >= totalSize {
		rs.end = totalSize - 1
	}
	if rs.start > rs.end {
		return nil, errors.New("invalid range: start > end")
	}

	return rs, nil
}

// ServeFile handles GET /api/v1/media/download/{job_id}/file.
// Range requests are supported so clients can seek.
func (h *FileHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := apperrors.GetRequestID(ctx)

	jobID := r.PathValue("job_id")
	if jobID == "" {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("job_id is required"))
		return
	}

	job, err := h.store.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, download.ErrJobNotFound) {
			apperrors.WriteError(w, requestID, apperrors.JobNotFound())
			return
		}
		h.log.Error(ctx, "failed to load download job", err)
		apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to load download job"))
		return
	}

	// Jobs created by a user are only visible to that user. Not-found keeps
	// job IDs unguessable.
	if job.UserID != "" {
		userCtx := auth.GetUserFromContext(ctx)
		if userCtx == nil || userCtx.UserID.String() != job.UserID {
			apperrors.WriteError(w, requestID, apperrors.JobNotFound())
			return
		}
	}

	if job.Status != download.StatusCompleted {
		apperrors.WriteError(w, requestID, apperrors.Conflict("download is not complete"))
		return
	}

	if job.ArchiveKey != "" && h.archive != nil {
		h.serveArchived(w, r, job)
		return
	}

	h.serveLocal(w, r, job, requestID)
}

func (h *FileHandler) serveLocal(w http.ResponseWriter, r *http.Request, job *download.Job, requestID string) {
	f, err := os.Open(job.FilePath)
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.FileNotFound())
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.FileNotFound())
		return
	}

	filename := media.SafeFilename(job.Title, job.Kind)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeContent(w, r, filename, info.ModTime(), f)
}

func (h *FileHandler) serveArchived(w http.ResponseWriter, r *http.Request, job *download.Job) {
	ctx := r.Context()
	requestID := apperrors.GetRequestID(ctx)
	key := job.ArchiveKey

	objInfo, err := h.archive.StatObject(ctx, key)
	if err != nil {
		h.log.Error(ctx, "failed to stat archived file", err, map[string]interface{}{
			"key": key,
		})
		apperrors.WriteError(w, requestID, apperrors.FileNotFound())
		return
	}

	totalSize := objInfo.Size
	rs, err := parseRange(r.Header.Get("Range"), totalSize)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", totalSize))
		apperrors.WriteError(w, requestID,
			apperrors.New("INVALID_RANGE", "invalid range", apperrors.CategoryClient, http.StatusRequestedRangeNotSatisfiable))
		return
	}

	filename := media.SafeFilename(job.Title, job.Kind)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Type", streamContentType(objInfo.ContentType, job.Kind))
	w.Header().Set("Accept-Ranges", "bytes")

	if rs != nil {
		contentLength := rs.end - rs.start + 1
		w.Header().Set("Content-Length", strconv.FormatInt(contentLength, 10))
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rs.start, rs.end, totalSize))
		w.WriteHeader(http.StatusPartialContent)

		reader, err := h.archive.GetObjectRange(ctx, key, rs.start, rs.end)
		if err != nil {
			h.log.Error(ctx, "failed to read archived range", err, map[string]interface{}{
				"key": key,
			})
			return // Headers already sent
		}
		defer reader.Close()

		if _, err := io.Copy(w, reader); err != nil {
			h.log.Warn(ctx, "archived range stream aborted", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(totalSize, 10))
	w.WriteHeader(http.StatusOK)

	reader, _, err := h.archive.GetObject(ctx, key)
	if err != nil {
		h.log.Error(ctx, "failed to read archived file", err, map[string]interface{}{
			"key": key,
		})
		return // Headers already sent
	}
	defer reader.Close()

	if _, err := io.Copy(w, reader); err != nil {
		h.log.Warn(ctx, "archived stream aborted", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}
