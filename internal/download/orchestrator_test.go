package download

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eagleeye/backend/internal/media"
	"github.com/eagleeye/backend/internal/notify"
	"github.com/eagleeye/backend/internal/resolver"
)

// fakeResolver feeds scripted progress samples and then succeeds or fails.
type fakeResolver struct {
	samples []float64
	result  *resolver.FetchResult
	err     error
}

func (f *fakeResolver) Resolve(ctx context.Context, url string, sel resolver.Selection) (*resolver.Source, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeResolver) Formats(ctx context.Context, url string) (*resolver.FormatList, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeResolver) Fetch(ctx context.Context, url string, sel resolver.Selection, destDir string, progress resolver.ProgressFunc) (*resolver.FetchResult, error) {
	for _, s := range f.samples {
		progress(s)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// recordingNotifier captures every published event.
type recordingNotifier struct {
	mu     sync.Mutex
	events []*notify.Event
}

func (n *recordingNotifier) Publish(ctx context.Context, ev *notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	cp := *ev
	n.events = append(n.events, &cp)
}

func (n *recordingNotifier) snapshot() []*notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*notify.Event(nil), n.events...)
}

func newTestOrchestrator(t *testing.T, r resolver.Resolver, n notify.Notifier) (*Orchestrator, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	o := NewOrchestrator(&Config{
		Store:       store,
		Resolver:    r,
		Notifier:    n,
		DownloadDir: t.TempDir(),
	})
	o.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.Stop(ctx)
	})
	return o, store
}

func waitForTerminal(t *testing.T, store Store, id string) *Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		job, err := store.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if job.Terminal() {
			return job
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s never reached a terminal status (status=%s)", id, job.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSubmitRunsJobToCompletion(t *testing.T) {
	r := &fakeResolver{
		samples: []float64{0.1, 0.05, 0.5, 1.0},
		result:  &resolver.FetchResult{FilePath: "/tmp/abc.mp4", Title: "Test Video"},
	}
	rec := &recordingNotifier{}
	o, store := newTestOrchestrator(t, r, rec)

	job, err := o.Submit(context.Background(), &Request{
		URL:     "https://example.com/watch?v=abc",
		Quality: media.Quality{Height: 720},
		Kind:    media.KindVideo,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != StatusPending {
		t.Errorf("initial Status = %q, want %q", job.Status, StatusPending)
	}
	if job.Quality != "720p" {
		t.Errorf("Quality = %q, want %q", job.Quality, "720p")
	}

	final := waitForTerminal(t, store, job.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("Status = %q, want %q (error: %s)", final.Status, StatusCompleted, final.Error)
	}
	if final.Progress != 1 {
		t.Errorf("Progress = %v, want 1", final.Progress)
	}
	if final.Title != "Test Video" {
		t.Errorf("Title = %q, want %q", final.Title, "Test Video")
	}
	if final.FilePath != "/tmp/abc.mp4" {
		t.Errorf("FilePath = %q", final.FilePath)
	}
	if final.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
}

func TestProgressNeverDecreases(t *testing.T) {
	r := &fakeResolver{
		samples: []float64{0.1, 0.05, 0.5, -0.2, 1.4, 1.0},
		result:  &resolver.FetchResult{FilePath: "/tmp/abc.mp4", Title: "Test"},
	}
	rec := &recordingNotifier{}
	o, store := newTestOrchestrator(t, r, rec)

	job, err := o.Submit(context.Background(), &Request{
		URL:  "https://example.com/watch?v=abc",
		Kind: media.KindVideo,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForTerminal(t, store, job.ID)

	prev := 0.0
	for _, ev := range rec.snapshot() {
		if ev.Progress < prev {
			t.Errorf("progress regressed: %v after %v", ev.Progress, prev)
		}
		if ev.Progress < 0 || ev.Progress > 1 {
			t.Errorf("progress %v outside [0, 1]", ev.Progress)
		}
		prev = ev.Progress
	}
}

func TestFailedFetchMarksJobFailed(t *testing.T) {
	r := &fakeResolver{
		samples: []float64{0.2},
		err:     resolver.ErrUnavailable,
	}
	rec := &recordingNotifier{}
	o, store := newTestOrchestrator(t, r, rec)

	job, err := o.Submit(context.Background(), &Request{
		URL:  "https://example.com/watch?v=gone",
		Kind: media.KindVideo,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	final := waitForTerminal(t, store, job.ID)
	if final.Status != StatusFailed {
		t.Fatalf("Status = %q, want %q", final.Status, StatusFailed)
	}
	if final.Error != "media is unavailable" {
		t.Errorf("Error = %q", final.Error)
	}

	events := rec.snapshot()
	if len(events) == 0 {
		t.Fatal("no events published")
	}
	last := events[len(events)-1]
	if last.Type != notify.TypeFailed {
		t.Errorf("last event type = %q, want %q", last.Type, notify.TypeFailed)
	}
	if last.Error == "" {
		t.Error("failed event carries no error message")
	}
}

func TestSubmitEmptyURLCreatesNoJob(t *testing.T) {
	r := &fakeResolver{}
	o, store := newTestOrchestrator(t, r, &recordingNotifier{})

	_, err := o.Submit(context.Background(), &Request{URL: ""})
	if err == nil {
		t.Fatal("expected error for empty URL")
	}

	jobs, err := store.ListByUser(context.Background(), "")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("store has %d jobs, want 0", len(jobs))
	}
}

func TestSubmitAfterStopRejected(t *testing.T) {
	r := &fakeResolver{result: &resolver.FetchResult{}}
	store := NewMemoryStore()
	o := NewOrchestrator(&Config{
		Store:       store,
		Resolver:    r,
		DownloadDir: t.TempDir(),
	})
	o.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := o.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if _, err := o.Submit(context.Background(), &Request{URL: "https://example.com/x"}); err == nil {
		t.Error("expected Submit to fail after Stop")
	}
}
