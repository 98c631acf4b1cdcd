package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/eagleeye/backend/internal/download"
	apperrors "github.com/eagleeye/backend/internal/errors"
	"github.com/eagleeye/backend/internal/media"
	"github.com/eagleeye/backend/internal/notify"
	"github.com/eagleeye/backend/internal/resolver"
	"github.com/eagleeye/backend/internal/token"
	"github.com/eagleeye/backend/internal/validators"
)

type stubResolver struct {
	formats *resolver.FormatList
	err     error
}

func (s *stubResolver) Resolve(ctx context.Context, url string, sel resolver.Selection) (*resolver.Source, error) {
	return nil, resolver.ErrResolveFailed
}

func (s *stubResolver) Formats(ctx context.Context, url string) (*resolver.FormatList, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.formats, nil
}

func (s *stubResolver) Fetch(ctx context.Context, url string, sel resolver.Selection, destDir string, progress resolver.ProgressFunc) (*resolver.FetchResult, error) {
	path := filepath.Join(destDir, "media.bin")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		return nil, err
	}
	return &resolver.FetchResult{FilePath: path, Title: "Stub Title"}, nil
}

type stubArchive struct {
	deleted []string
}

func (s *stubArchive) Delete(ctx context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	return nil
}

type mediaFixture struct {
	store    *download.MemoryStore
	tokens   *token.MemoryCache
	archive  *stubArchive
	handlers *MediaHandlers
	mux      *http.ServeMux
}

func newMediaFixture(t *testing.T, res resolver.Resolver) *mediaFixture {
	t.Helper()

	store := download.NewMemoryStore()
	tokens := token.NewMemoryCache(&token.MemoryCacheConfig{TTL: time.Minute})
	archive := &stubArchive{}

	orch := download.NewOrchestrator(&download.Config{
		Store:       store,
		Resolver:    res,
		Notifier:    notify.Discard{},
		DownloadDir: t.TempDir(),
	})
	orch.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		orch.Stop(ctx)
	})

	handlers := NewMediaHandlers(&MediaConfig{
		Orchestrator: orch,
		Store:        store,
		Resolver:     res,
		Tokens:       tokens,
		Sources:      validators.DefaultRegistry(),
		Archive:      archive,
		TokenTTL:     time.Minute,
	})

	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/media/download", apperrors.HandleFunc(handlers.CreateDownload))
	mux.Handle("GET /api/v1/media/downloads", apperrors.HandleFunc(handlers.ListDownloads))
	mux.Handle("GET /api/v1/media/download/{job_id}", apperrors.HandleFunc(handlers.GetJob))
	mux.Handle("DELETE /api/v1/media/download/{job_id}", apperrors.HandleFunc(handlers.DeleteJob))
	mux.Handle("POST /api/v1/media/playback-token", apperrors.HandleFunc(handlers.IssuePlaybackToken))
	mux.Handle("POST /api/v1/media/formats", apperrors.HandleFunc(handlers.Formats))

	return &mediaFixture{
		store:    store,
		tokens:   tokens,
		archive:  archive,
		handlers: handlers,
		mux:      mux,
	}
}

func (f *mediaFixture) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Error.Code
}

func TestCreateDownloadAccepted(t *testing.T) {
	f := newMediaFixture(t, &stubResolver{})

	rec := f.do(http.MethodPost, "/api/v1/media/download", map[string]string{
		"url":     "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"quality": "720p",
	})

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp jobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.JobID == "" {
		t.Error("expected non-empty job_id")
	}
	if resp.Status != download.StatusPending {
		t.Errorf("expected status %q, got %q", download.StatusPending, resp.Status)
	}
	if resp.Quality != "720p" {
		t.Errorf("expected quality 720p, got %q", resp.Quality)
	}

	if _, err := f.store.Get(context.Background(), resp.JobID); err != nil {
		t.Errorf("submitted job not found in store: %v", err)
	}
}

func TestCreateDownloadInvalidQuality(t *testing.T) {
	f := newMediaFixture(t, &stubResolver{})

	rec := f.do(http.MethodPost, "/api/v1/media/download", map[string]string{
		"url":     "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"quality": "potato",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "INVALID_QUALITY" {
		t.Errorf("expected INVALID_QUALITY, got %q", code)
	}
}

func TestCreateDownloadUnsupportedSource(t *testing.T) {
	f := newMediaFixture(t, &stubResolver{})

	rec := f.do(http.MethodPost, "/api/v1/media/download", map[string]string{
		"url": "https://example.com/page.html",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "UNSUPPORTED_SOURCE" {
		t.Errorf("expected UNSUPPORTED_SOURCE, got %q", code)
	}
}

func TestGetJobOwnedByOtherUserIsNotFound(t *testing.T) {
	f := newMediaFixture(t, &stubResolver{})

	owner := uuid.New().String()
	job := &download.Job{
		ID:        uuid.New().String(),
		UserID:    owner,
		URL:       "https://www.youtube.com/watch?v=abc",
		Kind:      media.KindVideo,
		Quality:   "best",
		Status:    download.StatusCompleted,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := f.store.Create(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	// Anonymous request has no user context and must not see the job.
	rec := f.do(http.MethodGet, "/api/v1/media/download/"+job.ID, nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "JOB_NOT_FOUND" {
		t.Errorf("expected JOB_NOT_FOUND, got %q", code)
	}
}

func TestGetGuestJobIsVisible(t *testing.T) {
	f := newMediaFixture(t, &stubResolver{})

	job := &download.Job{
		ID:        uuid.New().String(),
		URL:       "https://www.youtube.com/watch?v=abc",
		Kind:      media.KindAudio,
		Quality:   "best",
		Status:    download.StatusDownloading,
		Progress:  0.4,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := f.store.Create(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	rec := f.do(http.MethodGet, "/api/v1/media/download/"+job.ID, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp jobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Progress != 0.4 {
		t.Errorf("expected progress 0.4, got %v", resp.Progress)
	}
}

func TestDeleteJobRemovesFileAndArchive(t *testing.T) {
	f := newMediaFixture(t, &stubResolver{})

	dir := t.TempDir()
	filePath := filepath.Join(dir, "video.mp4")
	if err := os.WriteFile(filePath, []byte("bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	job := &download.Job{
		ID:          uuid.New().String(),
		URL:         "https://www.youtube.com/watch?v=abc",
		Kind:        media.KindVideo,
		Quality:     "best",
		Status:      download.StatusCompleted,
		Progress:    1,
		FilePath:    filePath,
		ArchiveKey:  "downloads/abc/video.mp4",
		CreatedAt:   now,
		UpdatedAt:   now,
		CompletedAt: &now,
	}
	if err := f.store.Create(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	rec := f.do(http.MethodDelete, "/api/v1/media/download/"+job.ID, nil)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if _, err := os.Stat(filePath); !os.IsNotExist(err) {
		t.Error("expected local file to be removed")
	}
	if len(f.archive.deleted) != 1 || f.archive.deleted[0] != job.ArchiveKey {
		t.Errorf("expected archive delete for %q, got %v", job.ArchiveKey, f.archive.deleted)
	}
	if _, err := f.store.Get(context.Background(), job.ID); err != download.ErrJobNotFound {
		t.Errorf("expected job gone from store, got err=%v", err)
	}
}

func TestDeleteRunningJobConflicts(t *testing.T) {
	f := newMediaFixture(t, &stubResolver{})

	job := &download.Job{
		ID:        uuid.New().String(),
		URL:       "https://www.youtube.com/watch?v=abc",
		Kind:      media.KindVideo,
		Quality:   "best",
		Status:    download.StatusDownloading,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := f.store.Create(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	rec := f.do(http.MethodDelete, "/api/v1/media/download/"+job.ID, nil)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestIssuePlaybackToken(t *testing.T) {
	f := newMediaFixture(t, &stubResolver{})

	rec := f.do(http.MethodPost, "/api/v1/media/playback-token", map[string]string{
		"url":  "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"kind": "audio",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp playbackTokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Token == "" {
		t.Fatal("expected non-empty token")
	}
	if want := "/api/v1/media/stream/" + resp.Token; resp.ProxyPath != want {
		t.Errorf("expected proxy path %q, got %q", want, resp.ProxyPath)
	}
	if resp.ExpiresIn != 60 {
		t.Errorf("expected expires_in 60, got %d", resp.ExpiresIn)
	}

	desc, err := f.tokens.Resolve(context.Background(), resp.Token)
	if err != nil {
		t.Fatalf("issued token could not be resolved: %v", err)
	}
	if desc.Kind != media.KindAudio {
		t.Errorf("expected audio descriptor, got %q", desc.Kind)
	}
	if desc.URL != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("unexpected descriptor url %q", desc.URL)
	}
}

func TestFormatsReturnsResolverListing(t *testing.T) {
	res := &stubResolver{
		formats: &resolver.FormatList{
			Title: "A Video",
			Video: []resolver.VideoFormat{{FormatID: "22", Quality: "720p", Height: 720, Ext: "mp4", HasAudio: true}},
			Audio: []resolver.AudioFormat{{FormatID: "140", Quality: "128kbps", Bitrate: 128, Ext: "m4a"}},
		},
	}
	f := newMediaFixture(t, res)

	rec := f.do(http.MethodPost, "/api/v1/media/formats", map[string]string{
		"url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var list resolver.FormatList
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Title != "A Video" {
		t.Errorf("expected title A Video, got %q", list.Title)
	}
	if len(list.Video) != 1 || list.Video[0].Height != 720 {
		t.Errorf("unexpected video formats: %+v", list.Video)
	}
}

func TestFormatsResolverFailureIsBadGateway(t *testing.T) {
	f := newMediaFixture(t, &stubResolver{err: resolver.ErrResolveFailed})

	rec := f.do(http.MethodPost, "/api/v1/media/formats", map[string]string{
		"url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	})

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestListDownloadsScopedToGuest(t *testing.T) {
	f := newMediaFixture(t, &stubResolver{})

	guestJob := &download.Job{
		ID:        uuid.New().String(),
		URL:       "https://www.youtube.com/watch?v=guest",
		Kind:      media.KindVideo,
		Quality:   "best",
		Status:    download.StatusCompleted,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	ownedJob := &download.Job{
		ID:        uuid.New().String(),
		UserID:    uuid.New().String(),
		URL:       "https://www.youtube.com/watch?v=owned",
		Kind:      media.KindVideo,
		Quality:   "best",
		Status:    download.StatusCompleted,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	for _, job := range []*download.Job{guestJob, ownedJob} {
		if err := f.store.Create(context.Background(), job); err != nil {
			t.Fatal(err)
		}
	}

	rec := f.do(http.MethodGet, "/api/v1/media/downloads", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Downloads []jobResponse `json:"downloads"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Downloads) != 1 {
		t.Fatalf("expected 1 guest download, got %d", len(resp.Downloads))
	}
	if resp.Downloads[0].JobID != guestJob.ID {
		t.Errorf("expected guest job %s, got %s", guestJob.ID, resp.Downloads[0].JobID)
	}
}
