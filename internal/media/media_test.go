package media

import (
	"strings"
	"testing"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		input   string
		want    Kind
		wantErr bool
	}{
		{"video", KindVideo, false},
		{"audio", KindAudio, false},
		{"video+audio", KindVideoAudio, false},
		{"VIDEO", KindVideo, false},
		{"", KindVideo, false},
		{"movie", "", true},
		{"audio+video", "", true},
	}

	for _, tt := range tests {
		got, err := ParseKind(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKind(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseKind(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestKind_Extension(t *testing.T) {
	if got := KindAudio.Extension(); got != ".mp3" {
		t.Errorf("audio extension = %s, want .mp3", got)
	}
	if got := KindVideo.Extension(); got != ".mp4" {
		t.Errorf("video extension = %s, want .mp4", got)
	}
	if got := KindVideoAudio.Extension(); got != ".mp4" {
		t.Errorf("video+audio extension = %s, want .mp4", got)
	}
}

func TestParseQuality(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"best", "best", false},
		{"", "best", false},
		{"720p", "720p", false},
		{"1080P", "1080p", false},
		{"128kbps", "128kbps", false},
		{"4k", "", true},
		{"-720p", "", true},
		{"0p", "", true},
		{"p", "", true},
		{"kbps", "", true},
		{"seven20p", "", true},
	}

	for _, tt := range tests {
		got, err := ParseQuality(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseQuality(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if err == nil && got.Label() != tt.want {
			t.Errorf("ParseQuality(%q).Label() = %s, want %s", tt.input, got.Label(), tt.want)
		}
	}
}

func TestSafeFilename(t *testing.T) {
	tests := []struct {
		title string
		kind  Kind
		want  string
	}{
		{"My Video", KindVideo, "My Video.mp4"},
		{"My Song", KindAudio, "My Song.mp3"},
		{`a<b>c:d"e/f\g|h?i*j`, KindVideo, "a_b_c_d_e_f_g_h_i_j.mp4"},
		{"  .trimmed. ", KindVideo, "trimmed.mp4"},
		{"", KindAudio, "download.mp3"},
		{"Björk - Jóga", KindAudio, "Bjork - Joga.mp3"},
	}

	for _, tt := range tests {
		if got := SafeFilename(tt.title, tt.kind); got != tt.want {
			t.Errorf("SafeFilename(%q, %v) = %q, want %q", tt.title, tt.kind, got, tt.want)
		}
	}
}

func TestSafeFilename_LongTitle(t *testing.T) {
	long := strings.Repeat("a", 500)
	got := SafeFilename(long, KindVideo)
	if len(got) > maxFilenameLen+len(".mp4") {
		t.Errorf("filename too long: %d chars", len(got))
	}
	if !strings.HasSuffix(got, ".mp4") {
		t.Errorf("expected .mp4 suffix, got %q", got)
	}
}
