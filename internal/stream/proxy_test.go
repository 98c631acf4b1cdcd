package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/eagleeye/backend/internal/media"
	"github.com/eagleeye/backend/internal/resolver"
	"github.com/eagleeye/backend/internal/token"
)

type stubResolver struct {
	src      *resolver.Source
	err      error
	resolved int
}

func (s *stubResolver) Resolve(ctx context.Context, url string, sel resolver.Selection) (*resolver.Source, error) {
	s.resolved++
	if s.err != nil {
		return nil, s.err
	}
	return s.src, nil
}

func (s *stubResolver) Formats(ctx context.Context, url string) (*resolver.FormatList, error) {
	return nil, errors.New("not implemented")
}

func (s *stubResolver) Fetch(ctx context.Context, url string, sel resolver.Selection, destDir string, progress resolver.ProgressFunc) (*resolver.FetchResult, error) {
	return nil, errors.New("not implemented")
}

func issueToken(t *testing.T, cache token.Cache, kind media.Kind) string {
	t.Helper()
	tok, err := cache.Issue(context.Background(), token.Descriptor{
		URL:     "https://example.com/watch?v=abc",
		Quality: "best",
		Kind:    kind,
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok
}

func streamRequest(proxy *Proxy, tok string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /stream/{token}", proxy.Stream)

	req := httptest.NewRequest(http.MethodGet, "/stream/"+tok, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestStreamRelaysUpstreamBytes(t *testing.T) {
	cache := token.NewMemoryCache(nil)
	r := &stubResolver{src: &resolver.Source{
		Title:       "Test Video",
		ContentType: "video/mp4",
		Length:      11,
		Body:        io.NopCloser(strings.NewReader("hello bytes")),
	}}
	proxy := NewProxy(cache, r, nil)

	tok := issueToken(t, cache, media.KindVideo)
	rec := streamRequest(proxy, tok)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "hello bytes" {
		t.Errorf("body = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="Test Video.mp4"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "video/mp4" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Content-Length"); got != "11" {
		t.Errorf("Content-Length = %q", got)
	}
}

func TestStreamAudioGetsMP3Filename(t *testing.T) {
	cache := token.NewMemoryCache(nil)
	r := &stubResolver{src: &resolver.Source{
		Title: "Test Song",
		Body:  io.NopCloser(strings.NewReader("audio")),
	}}
	proxy := NewProxy(cache, r, nil)

	tok := issueToken(t, cache, media.KindAudio)
	rec := streamRequest(proxy, tok)

	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="Test Song.mp3"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "audio/mpeg" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestStreamUnknownTokenNeverContactsUpstream(t *testing.T) {
	cache := token.NewMemoryCache(nil)
	r := &stubResolver{}
	proxy := NewProxy(cache, r, nil)

	rec := streamRequest(proxy, "no-such-token")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if r.resolved != 0 {
		t.Errorf("resolver called %d times for unknown token", r.resolved)
	}
}

func TestStreamResolverFailureIsBadGateway(t *testing.T) {
	cache := token.NewMemoryCache(nil)
	r := &stubResolver{err: resolver.ErrUnavailable}
	proxy := NewProxy(cache, r, nil)

	tok := issueToken(t, cache, media.KindVideo)
	rec := streamRequest(proxy, tok)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		header    string
		total     int64
		wantStart int64
		wantEnd   int64
		wantNil   bool
		wantErr   bool
	}{
		{header: "", total: 1000, wantNil: true},
		{header: "bytes=0-499", total: 1000, wantStart: 0, wantEnd: 499},
		{header: "bytes=500-", total: 1000, wantStart: 500, wantEnd: 999},
		{header: "bytes=-200", total: 1000, wantStart: 800, wantEnd: 999},
		{header: "bytes=0-4999", total: 1000, wantStart: 0, wantEnd: 999},
		{header: "bytes=0-99,200-299", total: 1000, wantStart: 0, wantEnd: 99},
		{header: "items=0-499", total: 1000, wantErr: true},
		{header: "bytes=-", total: 1000, wantErr: true},
		{header: "bytes=1000-", total: 1000, wantErr: true},
		{header: "bytes=500-100", total: 1000, wantErr: true},
	}

	for _, tt := range tests {
		rs, err := parseRange(tt.header, tt.total)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseRange(%q) expected error", tt.header)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseRange(%q) error: %v", tt.header, err)
			continue
		}
		if tt.wantNil {
			if rs != nil {
				t.Errorf("parseRange(%q) = %+v, want nil", tt.header, rs)
			}
			continue
		}
		if rs.start != tt.wantStart || rs.end != tt.wantEnd {
			t.Errorf("parseRange(%q) = %d-%d, want %d-%d", tt.header, rs.start, rs.end, tt.wantStart, tt.wantEnd)
		}
	}
}
