package download

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/eagleeye/backend/internal/errors"
	"github.com/eagleeye/backend/internal/logger"
	"github.com/eagleeye/backend/internal/media"
	"github.com/eagleeye/backend/internal/metrics"
	"github.com/eagleeye/backend/internal/notify"
	"github.com/eagleeye/backend/internal/resolver"
)

const (
	DefaultMaxConcurrent = 3
	DefaultJobTimeout    = 30 * time.Minute
)

// Archiver copies a finished download into long-term storage and returns
// the archive key. Optional.
type Archiver interface {
	Archive(ctx context.Context, job *Job) (string, error)
}

// Request describes a new download to start.
type Request struct {
	URL     string
	Quality media.Quality
	Kind    media.Kind
	UserID  string
}

// Orchestrator runs download jobs. Each accepted job gets its own goroutine
// that owns every write to that job's record, so state updates never race.
type Orchestrator struct {
	store    Store
	resolver resolver.Resolver
	notifier notify.Notifier
	archiver Archiver
	dir      string

	maxConcurrent int
	jobTimeout    time.Duration
	sem           chan struct{}

	wg       sync.WaitGroup
	stopChan chan struct{}
	mu       sync.RWMutex
	running  bool
	active   atomic.Int64

	log *logger.Logger
}

// Config holds orchestrator configuration.
type Config struct {
	Store         Store
	Resolver      resolver.Resolver
	Notifier      notify.Notifier
	Archiver      Archiver
	DownloadDir   string
	MaxConcurrent int
	JobTimeout    time.Duration
	Logger        *logger.Logger
}

// NewOrchestrator creates an orchestrator. Store, Resolver and DownloadDir
// are required; a nil Notifier drops events.
func NewOrchestrator(cfg *Config) *Orchestrator {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}

	jobTimeout := cfg.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = DefaultJobTimeout
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.Discard{}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Default().WithComponent("download")
	}

	return &Orchestrator{
		store:         cfg.Store,
		resolver:      cfg.Resolver,
		notifier:      notifier,
		archiver:      cfg.Archiver,
		dir:           cfg.DownloadDir,
		maxConcurrent: maxConcurrent,
		jobTimeout:    jobTimeout,
		sem:           make(chan struct{}, maxConcurrent),
		stopChan:      make(chan struct{}),
		log:           log,
	}
}

// Start begins accepting jobs.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return
	}
	o.running = true
	o.stopChan = make(chan struct{})
	o.log.Info(context.Background(), "orchestrator started", map[string]interface{}{
		"max_concurrent": o.maxConcurrent,
	})
}

// Stop refuses new jobs, aborts in-flight fetches and waits for their
// goroutines to wind down, up to ctx's deadline. Aborted jobs end up failed.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return nil
	}
	o.running = false
	close(o.stopChan)
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.log.Info(ctx, "orchestrator stopped")
		return nil
	case <-ctx.Done():
		o.log.Warn(ctx, "orchestrator shutdown timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the orchestrator accepts jobs.
func (o *Orchestrator) IsRunning() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.running
}

// Submit validates the request, persists a pending job and starts its
// download in the background. Invalid requests create no job.
func (o *Orchestrator) Submit(ctx context.Context, req *Request) (*Job, error) {
	if req.URL == "" {
		return nil, apperrors.ValidationError("url is required")
	}

	o.mu.RLock()
	running := o.running
	o.mu.RUnlock()
	if !running {
		return nil, apperrors.InternalError("downloads are not accepting jobs")
	}

	now := time.Now()
	job := &Job{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		URL:       req.URL,
		Kind:      req.Kind,
		Quality:   req.Quality.Label(),
		Status:    StatusPending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := o.store.Create(ctx, job); err != nil {
		return nil, apperrors.DatabaseError("failed to create download job").WithCause(err)
	}

	o.wg.Add(1)
	go o.run(job, req.Quality)

	cp := *job
	return &cp, nil
}

// progressUpdate flows from the fetch callback to the job's writer loop.
type progressUpdate struct {
	fraction float64
}

// run owns the job from pending to a terminal status.
func (o *Orchestrator) run(job *Job, quality media.Quality) {
	defer o.wg.Done()

	o.sem <- struct{}{}
	metrics.Default().SetActiveDownloads(o.active.Add(1))
	defer func() {
		metrics.Default().SetActiveDownloads(o.active.Add(-1))
		<-o.sem
	}()

	ctx, cancel := context.WithTimeout(context.Background(), o.jobTimeout)
	defer cancel()

	o.mu.RLock()
	stopChan := o.stopChan
	o.mu.RUnlock()

	// Stop cancels in-flight fetches.
	go func() {
		select {
		case <-stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	o.transition(ctx, job, StatusDownloading)

	updates := make(chan progressUpdate, 16)
	var loopWG sync.WaitGroup
	loopWG.Add(1)
	go func() {
		defer loopWG.Done()
		for u := range updates {
			o.applyProgress(ctx, job, u.fraction)
		}
	}()

	sel := resolver.Selection{Quality: quality, Kind: job.Kind}
	res, err := o.resolver.Fetch(ctx, job.URL, sel, o.dir, func(fraction float64) {
		select {
		case updates <- progressUpdate{fraction: fraction}:
		default:
			// Writer loop is behind; drop the sample, a later one supersedes it.
		}
	})

	close(updates)
	loopWG.Wait()

	if err != nil {
		o.fail(ctx, job, err)
		return
	}

	job.Title = res.Title
	job.FilePath = res.FilePath

	if o.archiver != nil {
		key, archiveErr := o.archiver.Archive(ctx, job)
		if archiveErr != nil {
			o.log.Error(ctx, "failed to archive download", archiveErr, map[string]interface{}{
				"job_id": job.ID,
			})
		} else {
			job.ArchiveKey = key
		}
	}

	o.complete(ctx, job)
}

// applyProgress clamps the sample to [0, 1], keeps the running maximum and
// publishes the new value. Out of order or regressing samples are absorbed.
func (o *Orchestrator) applyProgress(ctx context.Context, job *Job, fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	if fraction <= job.Progress {
		return
	}

	job.Progress = fraction
	if err := o.store.Update(ctx, job); err != nil {
		o.log.Error(ctx, "failed to update job progress", err, map[string]interface{}{
			"job_id": job.ID,
		})
	}

	o.notifier.Publish(ctx, &notify.Event{
		Type:     notify.TypeProgress,
		JobID:    job.ID,
		UserID:   job.UserID,
		Status:   job.Status,
		Progress: job.Progress,
		Title:    job.Title,
	})
}

func (o *Orchestrator) transition(ctx context.Context, job *Job, status string) {
	if !CanTransition(job.Status, status) {
		o.log.Warn(ctx, "ignoring invalid status transition", map[string]interface{}{
			"job_id": job.ID,
			"from":   job.Status,
			"to":     status,
		})
		return
	}
	job.Status = status
	if err := o.store.Update(ctx, job); err != nil {
		o.log.Error(ctx, "failed to update job status", err, map[string]interface{}{
			"job_id": job.ID,
		})
	}
}

func (o *Orchestrator) complete(ctx context.Context, job *Job) {
	job.Progress = 1
	now := time.Now()
	job.CompletedAt = &now
	o.transition(ctx, job, StatusCompleted)

	o.log.Info(ctx, "download completed", map[string]interface{}{
		"job_id": job.ID,
		"title":  job.Title,
	})

	o.notifier.Publish(ctx, &notify.Event{
		Type:     notify.TypeCompleted,
		JobID:    job.ID,
		UserID:   job.UserID,
		Status:   job.Status,
		Progress: 1,
		Title:    job.Title,
	})
}

func (o *Orchestrator) fail(ctx context.Context, job *Job, cause error) {
	job.Error = failureMessage(cause)
	now := time.Now()
	job.CompletedAt = &now
	o.transition(ctx, job, StatusFailed)

	o.log.Error(ctx, "download failed", cause, map[string]interface{}{
		"job_id": job.ID,
		"url":    job.URL,
	})

	o.notifier.Publish(ctx, &notify.Event{
		Type:     notify.TypeFailed,
		JobID:    job.ID,
		UserID:   job.UserID,
		Status:   job.Status,
		Progress: job.Progress,
		Error:    job.Error,
	})
}

// failureMessage maps resolver errors to messages safe to store and show.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, resolver.ErrUnavailable):
		return "media is unavailable"
	case errors.Is(err, resolver.ErrPrivate):
		return "media is private"
	case errors.Is(err, resolver.ErrAgeRestricted):
		return "media is age restricted"
	case errors.Is(err, resolver.ErrURLNotSupported):
		return "url is not supported"
	case errors.Is(err, resolver.ErrNetwork):
		return "network error while downloading"
	case errors.Is(err, context.DeadlineExceeded):
		return "download timed out"
	case errors.Is(err, context.Canceled):
		return "download was cancelled"
	default:
		return "download failed"
	}
}
