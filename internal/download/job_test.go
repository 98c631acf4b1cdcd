package download

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from string
		to   string
		want bool
	}{
		{StatusPending, StatusDownloading, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusCompleted, false},
		{StatusDownloading, StatusCompleted, true},
		{StatusDownloading, StatusFailed, true},
		{StatusDownloading, StatusPending, false},
		{StatusCompleted, StatusFailed, false},
		{StatusCompleted, StatusDownloading, false},
		{StatusFailed, StatusDownloading, false},
		{StatusFailed, StatusCompleted, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestJobTerminal(t *testing.T) {
	for status, want := range map[string]bool{
		StatusPending:     false,
		StatusDownloading: false,
		StatusCompleted:   true,
		StatusFailed:      true,
	} {
		j := &Job{Status: status}
		if got := j.Terminal(); got != want {
			t.Errorf("Terminal() with status %q = %v, want %v", status, got, want)
		}
	}
}
