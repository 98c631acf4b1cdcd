package validators

import "testing"

func TestDirectValidatorCanHandle(t *testing.T) {
	v := NewDirectValidator()

	tests := []struct {
		url  string
		want bool
	}{
		{"https://cdn.example.com/media/clip.mp4", true},
		{"http://example.com/song.mp3", true},
		{"https://example.com/track.FLAC", true},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", false},
		{"https://example.com/page.html", false},
		{"ftp://example.com/clip.mp4", false},
		{"not a url", false},
	}

	for _, tt := range tests {
		if got := v.CanHandle(tt.url); got != tt.want {
			t.Errorf("CanHandle(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestDirectValidatorValidate(t *testing.T) {
	v := NewDirectValidator()

	result := v.Validate("https://cdn.example.com/media/clip.mp4")
	if !result.Valid {
		t.Fatalf("Validate() invalid: %s", result.Error)
	}
	if result.SourceType != SourceDirect {
		t.Errorf("SourceType = %q", result.SourceType)
	}
	if result.MediaID != "clip.mp4" {
		t.Errorf("MediaID = %q", result.MediaID)
	}
	if result.MediaType != "video" {
		t.Errorf("MediaType = %q", result.MediaType)
	}

	result = v.Validate("https://example.com/nope.txt")
	if result.Valid {
		t.Error("Validate() accepted non-media URL")
	}
}
