package resolver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eagleeye/backend/internal/media"
)

// YTDLPConfig holds configuration for the yt-dlp resolver
type YTDLPConfig struct {
	// Path is the yt-dlp binary (default "yt-dlp")
	Path string
	// HTTPClient fetches resolved direct URLs for streaming
	HTTPClient *http.Client
}

// YTDLP resolves media URLs by shelling out to yt-dlp.
type YTDLP struct {
	path   string
	client *http.Client
}

// NewYTDLP creates a yt-dlp backed resolver, verifying the binary exists.
func NewYTDLP(cfg *YTDLPConfig) (*YTDLP, error) {
	if cfg == nil {
		cfg = &YTDLPConfig{}
	}

	path := cfg.Path
	if path == "" {
		path = "yt-dlp"
	}

	if _, err := exec.LookPath(path); err != nil {
		return nil, ErrBinaryNotFound
	}

	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	return &YTDLP{path: path, client: client}, nil
}

// BinaryPath returns the configured yt-dlp binary path. Used by health checks.
func (y *YTDLP) BinaryPath() string {
	return y.path
}

// Check reports whether the yt-dlp binary is still reachable.
func (y *YTDLP) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := exec.LookPath(y.path); err != nil {
		return ErrBinaryNotFound
	}
	return nil
}

// ytdlpInfo is the subset of yt-dlp --dump-json output we consume
type ytdlpInfo struct {
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	URL      string       `json:"url"`
	Ext      string       `json:"ext"`
	Duration float64      `json:"duration"`
	Formats  []ytdlpFmt   `json:"formats"`
	Thumbs   []ytdlpThumb `json:"thumbnails"`
}

type ytdlpFmt struct {
	FormatID string  `json:"format_id"`
	Ext      string  `json:"ext"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
	Filesize int64   `json:"filesize"`
	Abr      float64 `json:"abr"`
	Vcodec   string  `json:"vcodec"`
	Acodec   string  `json:"acodec"`
}

type ytdlpThumb struct {
	URL string `json:"url"`
}

// Resolve returns a live byte source for the URL. The direct media URL is
// obtained from yt-dlp, then opened over HTTP; streaming starts only once the
// upstream answers 200.
func (y *YTDLP) Resolve(ctx context.Context, sourceURL string, sel Selection) (*Source, error) {
	if err := validateURL(sourceURL); err != nil {
		return nil, err
	}

	info, err := y.dump(ctx, sourceURL, streamSelector(sel))
	if err != nil {
		return nil, err
	}

	if info.URL == "" {
		return nil, &Error{URL: sourceURL, Message: "no direct stream url", Err: ErrResolveFailed}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, info.URL, nil)
	if err != nil {
		return nil, &Error{URL: sourceURL, Message: "invalid direct url", Err: err}
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, &Error{URL: sourceURL, Message: "failed to open upstream source", Err: ErrNetwork}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return nil, &Error{
			URL:     sourceURL,
			Message: fmt.Sprintf("upstream returned status %d", resp.StatusCode),
			Err:     ErrResolveFailed,
		}
	}

	return &Source{
		Title:       info.Title,
		ContentType: resp.Header.Get("Content-Type"),
		Length:      resp.ContentLength,
		Body:        resp.Body,
	}, nil
}

// Formats lists the available quality variants for the URL.
func (y *YTDLP) Formats(ctx context.Context, sourceURL string) (*FormatList, error) {
	if err := validateURL(sourceURL); err != nil {
		return nil, err
	}

	info, err := y.dump(ctx, sourceURL, "")
	if err != nil {
		return nil, err
	}

	return shapeFormats(info), nil
}

// Fetch downloads the URL to destDir with progress reporting.
func (y *YTDLP) Fetch(ctx context.Context, sourceURL string, sel Selection, destDir string, progress ProgressFunc) (*FetchResult, error) {
	if err := validateURL(sourceURL); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	// Metadata first: title for the job record and the id that names the
	// output file.
	info, err := y.dump(ctx, sourceURL, "")
	if err != nil {
		return nil, err
	}

	outputTemplate := filepath.Join(destDir, "%(id)s.%(ext)s")

	args := []string{
		"-f", fetchSelector(sel),
		"--output", outputTemplate,
		"--newline",
		"--progress",
		"--no-warnings",
	}
	if sel.Kind == media.KindAudio {
		args = append(args, "--extract-audio", "--audio-format", "mp3")
	} else {
		args = append(args, "--merge-output-format", "mp4")
	}
	args = append(args, sourceURL)

	cmd := exec.CommandContext(ctx, y.path, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &Error{URL: sourceURL, Message: "failed to create stdout pipe", Err: err}
	}

	var stderrOutput strings.Builder
	cmd.Stderr = &stderrOutput

	if err := cmd.Start(); err != nil {
		return nil, categorizeError(sourceURL, err, "")
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if progress == nil {
			continue
		}
		if fraction, ok := parseProgressLine(scanner.Text()); ok {
			progress(fraction)
		}
	}

	if err := cmd.Wait(); err != nil {
		return nil, categorizeError(sourceURL, err, stderrOutput.String())
	}

	outputPath := filepath.Join(destDir, info.ID+sel.Kind.Extension())
	if _, err := os.Stat(outputPath); os.IsNotExist(err) {
		return nil, &Error{URL: sourceURL, Message: "output file not found", Err: ErrResolveFailed}
	}

	return &FetchResult{FilePath: outputPath, Title: info.Title}, nil
}

// dump runs yt-dlp --dump-json, optionally with a format selector.
func (y *YTDLP) dump(ctx context.Context, sourceURL, selector string) (*ytdlpInfo, error) {
	args := []string{"--dump-json", "--no-download", "--no-warnings"}
	if selector != "" {
		args = append(args, "-f", selector)
	}
	args = append(args, sourceURL)

	cmd := exec.CommandContext(ctx, y.path, args...)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, categorizeError(sourceURL, err, string(exitErr.Stderr))
		}
		return nil, categorizeError(sourceURL, err, "")
	}

	var info ytdlpInfo
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, &Error{URL: sourceURL, Message: "failed to parse metadata", Err: err}
	}

	return &info, nil
}

// streamSelector builds the yt-dlp format selector for live streaming. Video
// selections use progressive formats only; a merge cannot be streamed.
func streamSelector(sel Selection) string {
	if sel.Kind == media.KindAudio {
		return "bestaudio"
	}
	if sel.Quality.Height > 0 {
		return fmt.Sprintf("best[height<=%d]", sel.Quality.Height)
	}
	return "best"
}

// fetchSelector builds the yt-dlp format selector for fetch-to-disk.
func fetchSelector(sel Selection) string {
	if sel.Kind == media.KindAudio {
		return "bestaudio/best"
	}
	if sel.Quality.Height > 0 {
		return fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best", sel.Quality.Height)
	}
	return "bestvideo+bestaudio/best"
}

// parseProgressLine extracts a progress fraction from a yt-dlp --newline
// output line, e.g. "[download]  45.2% of 5.00MiB at 1.00MiB/s ETA 00:03".
func parseProgressLine(line string) (float64, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "[download]") {
		return 0, false
	}

	parts := strings.Fields(line)
	if len(parts) < 2 || !strings.HasSuffix(parts[1], "%") {
		return 0, false
	}

	var percent float64
	if _, err := fmt.Sscanf(strings.TrimSuffix(parts[1], "%"), "%f", &percent); err != nil {
		return 0, false
	}

	return percent / 100, true
}

// shapeFormats turns raw yt-dlp formats into deduplicated, sorted variant
// lists, labeled the way the client displays them.
func shapeFormats(info *ytdlpInfo) *FormatList {
	list := &FormatList{Title: info.Title}

	seenHeights := make(map[int]bool)
	seenBitrates := make(map[int]bool)

	for _, f := range info.Formats {
		switch {
		case f.Vcodec != "none" && f.Height > 0:
			if seenHeights[f.Height] {
				continue
			}
			seenHeights[f.Height] = true
			list.Video = append(list.Video, VideoFormat{
				FormatID: f.FormatID,
				Quality:  videoQualityLabel(f.Height),
				Height:   f.Height,
				Ext:      f.Ext,
				Filesize: f.Filesize,
				FPS:      f.FPS,
				HasAudio: f.Acodec != "none",
			})

		case f.Acodec != "none" && f.Vcodec == "none" && f.Abr > 0:
			abr := int(f.Abr)
			if seenBitrates[abr] {
				continue
			}
			seenBitrates[abr] = true
			list.Audio = append(list.Audio, AudioFormat{
				FormatID: f.FormatID,
				Quality:  audioQualityLabel(abr),
				Bitrate:  abr,
				Ext:      f.Ext,
				Filesize: f.Filesize,
			})
		}
	}

	sort.Slice(list.Video, func(i, j int) bool { return list.Video[i].Height > list.Video[j].Height })
	sort.Slice(list.Audio, func(i, j int) bool { return list.Audio[i].Bitrate > list.Audio[j].Bitrate })

	return list
}

func videoQualityLabel(height int) string {
	switch {
	case height >= 4320:
		return fmt.Sprintf("%dp (8K)", height)
	case height >= 2160:
		return fmt.Sprintf("%dp (4K)", height)
	case height >= 1440:
		return fmt.Sprintf("%dp (2K)", height)
	case height >= 1080:
		return fmt.Sprintf("%dp (Full HD)", height)
	case height >= 720:
		return fmt.Sprintf("%dp (HD)", height)
	default:
		return fmt.Sprintf("%dp", height)
	}
}

func audioQualityLabel(abr int) string {
	switch {
	case abr >= 320:
		return fmt.Sprintf("%dkbps (High)", abr)
	case abr >= 192:
		return fmt.Sprintf("%dkbps (Medium)", abr)
	case abr >= 128:
		return fmt.Sprintf("%dkbps (Standard)", abr)
	default:
		return fmt.Sprintf("%dkbps (Low)", abr)
	}
}

// validateURL checks the URL is well formed with an http(s) scheme.
func validateURL(sourceURL string) error {
	parsed, err := url.Parse(sourceURL)
	if err != nil {
		return &Error{URL: sourceURL, Message: "invalid url", Err: ErrInvalidURL}
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &Error{URL: sourceURL, Message: "invalid url scheme", Err: ErrInvalidURL}
	}

	if parsed.Host == "" {
		return &Error{URL: sourceURL, Message: "missing host", Err: ErrInvalidURL}
	}

	return nil
}

// categorizeError converts yt-dlp failures into specific error types
func categorizeError(sourceURL string, err error, stderr string) error {
	stderrLower := strings.ToLower(stderr)

	switch {
	case strings.Contains(stderrLower, "video unavailable") ||
		strings.Contains(stderrLower, "this video is unavailable"):
		return &Error{URL: sourceURL, Message: "media unavailable", Err: ErrUnavailable}

	case strings.Contains(stderrLower, "private video") ||
		strings.Contains(stderrLower, "is private"):
		return &Error{URL: sourceURL, Message: "media is private", Err: ErrPrivate}

	case strings.Contains(stderrLower, "age-restricted") ||
		strings.Contains(stderrLower, "sign in to confirm your age"):
		return &Error{URL: sourceURL, Message: "content is age-restricted", Err: ErrAgeRestricted}

	case strings.Contains(stderrLower, "unable to download") ||
		strings.Contains(stderrLower, "connection") ||
		strings.Contains(stderrLower, "network"):
		return &Error{URL: sourceURL, Message: "network error", Err: ErrNetwork}

	case strings.Contains(stderrLower, "unsupported url") ||
		strings.Contains(stderrLower, "no suitable extractor"):
		return &Error{URL: sourceURL, Message: "url not supported", Err: ErrURLNotSupported}

	default:
		return &Error{URL: sourceURL, Message: "resolve failed", Err: fmt.Errorf("%w: %s", ErrResolveFailed, err)}
	}
}
