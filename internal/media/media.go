package media

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Kind is the closed set of download/stream types a client can request.
type Kind string

const (
	KindVideo      Kind = "video"
	KindAudio      Kind = "audio"
	KindVideoAudio Kind = "video+audio"
)

// ParseKind parses a media kind, rejecting anything outside the closed set.
// An empty string defaults to video, matching the original client behavior.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "video":
		return KindVideo, nil
	case "audio":
		return KindAudio, nil
	case "video+audio", "videoaudio", "video_audio":
		return KindVideoAudio, nil
	default:
		return "", fmt.Errorf("unknown media kind %q", s)
	}
}

// Extension returns the output file extension for the kind.
func (k Kind) Extension() string {
	if k == KindAudio {
		return ".mp3"
	}
	return ".mp4"
}

// Quality is a parsed quality selector. Best is the default when the client
// does not care; otherwise Height carries the requested video resolution cap
// or Bitrate the requested audio bitrate in kbps.
type Quality struct {
	Best    bool
	Height  int
	Bitrate int
}

// Label renders the quality back into its wire form.
func (q Quality) Label() string {
	switch {
	case q.Best:
		return "best"
	case q.Height > 0:
		return fmt.Sprintf("%dp", q.Height)
	case q.Bitrate > 0:
		return fmt.Sprintf("%dkbps", q.Bitrate)
	default:
		return "best"
	}
}

// ParseQuality parses quality selectors of the forms "best", "<height>p" and
// "<bitrate>kbps". Malformed selectors are rejected rather than silently
// defaulted.
func ParseQuality(s string) (Quality, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	switch {
	case s == "" || s == "best":
		return Quality{Best: true}, nil

	case strings.HasSuffix(s, "kbps"):
		n, err := strconv.Atoi(strings.TrimSuffix(s, "kbps"))
		if err != nil || n <= 0 {
			return Quality{}, fmt.Errorf("malformed audio quality %q", s)
		}
		return Quality{Bitrate: n}, nil

	case strings.HasSuffix(s, "p"):
		n, err := strconv.Atoi(strings.TrimSuffix(s, "p"))
		if err != nil || n <= 0 {
			return Quality{}, fmt.Errorf("malformed video quality %q", s)
		}
		return Quality{Height: n}, nil

	default:
		return Quality{}, fmt.Errorf("malformed quality %q", s)
	}
}

const maxFilenameLen = 200

// invalid filename characters on the usual filesystems
const invalidFilenameChars = `<>:"/\|?*`

// SafeFilename derives a filesystem-safe attachment filename from a media
// title and kind. Unicode titles are NFKD-normalized with combining marks
// stripped so the result survives Content-Disposition quoting.
func SafeFilename(title string, kind Kind) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(t, title)
	if err == nil {
		title = normalized
	}

	var b strings.Builder
	for _, r := range title {
		switch {
		case strings.ContainsRune(invalidFilenameChars, r):
			b.WriteRune('_')
		case r < 0x20 || r == 0x7f:
			// skip control characters
		default:
			b.WriteRune(r)
		}
	}

	name := strings.Trim(b.String(), " .")
	if name == "" {
		name = "download"
	}
	if len(name) > maxFilenameLen {
		name = strings.TrimRight(name[:maxFilenameLen], " .")
	}

	return name + kind.Extension()
}
