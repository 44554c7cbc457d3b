// internal/processing/scheduler.go
package processing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"psychosocial-workers/internal/common/config"
	apperrors "psychosocial-workers/internal/common/errors"
	"psychosocial-workers/internal/common/logger"
	"psychosocial-workers/internal/common/metrics"
	"psychosocial-workers/internal/common/observability"
	"psychosocial-workers/internal/common/validation"
	"psychosocial-workers/internal/models"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var (
	ErrAlreadyRunning = errors.New("SCHEDULER_ALREADY_RUNNING")
	ErrNotRunning     = errors.New("SCHEDULER_NOT_RUNNING")
)

// Queue is the durable job store. ClaimJob must be an atomic
// pending → processing transition that succeeds for exactly one caller.
type Queue interface {
	// EnqueueJob returns the id of the new job, or of the live job already
	// queued for the same assessment with created=false.
	EnqueueJob(ctx context.Context, job *models.ProcessingJob) (string, bool, error)
	// FetchPending returns due pending jobs, priority first then oldest first.
	FetchPending(ctx context.Context, limit int) ([]models.ProcessingJob, error)
	ClaimJob(ctx context.Context, id string) (bool, error)
	CompleteJob(ctx context.Context, id string) error
	RetryJob(ctx context.Context, id string, retryCount int, nextRunAt time.Time, message string) error
	FailJob(ctx context.Context, id, message string) error
	GetJob(ctx context.Context, id string) (*models.ProcessingJob, error)
	// ReleaseStaleJobs returns processing jobs claimed before the cutoff to
	// pending, or to error once their retry budget is spent.
	ReleaseStaleJobs(ctx context.Context, claimedBefore time.Time) (int64, error)
}

// Handler processes one claimed job.
type Handler interface {
	HandleJob(ctx context.Context, job models.ProcessingJob) error
}

type Options struct {
	Concurrency  int
	BatchSize    int
	PollInterval time.Duration
	JobTimeout   time.Duration
	MaxRetries   int
	Backoff      []time.Duration
	RateLimit    rate.Limit
	Burst        int
}

func OptionsFromConfig(cfg config.SchedulerConfig) Options {
	return Options{
		Concurrency:  cfg.Concurrency,
		BatchSize:    cfg.BatchSize,
		PollInterval: config.GetDuration(cfg.PollInterval),
		JobTimeout:   config.GetDuration(cfg.JobTimeout),
		MaxRetries:   cfg.MaxRetries,
		Backoff:      cfg.Backoff(),
		RateLimit:    rate.Limit(cfg.RateLimitPerSecond),
		Burst:        cfg.Burst,
	}
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 3
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = 2 * time.Minute
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if len(o.Backoff) == 0 {
		o.Backoff = []time.Duration{time.Second, 5 * time.Second, 15 * time.Second}
	}
	if o.RateLimit <= 0 {
		o.RateLimit = rate.Inf
	}
	if o.Burst <= 0 {
		o.Burst = o.Concurrency
	}
	return o
}

// EnqueueRequest is validated against validation.EnqueueSchema.
type EnqueueRequest struct {
	AssessmentID string          `json:"assessmentResponseId"`
	CompanyID    string          `json:"companyId"`
	Priority     models.Priority `json:"priority"`
}

type EnqueueResult struct {
	JobID   string `json:"jobId"`
	Created bool   `json:"created"`
}

// Status is the operator view of the scheduler.
type Status struct {
	Running     bool  `json:"running"`
	Paused      bool  `json:"paused"`
	ActiveJobs  int   `json:"activeJobs"`
	Concurrency int   `json:"concurrency"`
	Completed   int64 `json:"completed"`
	Retried     int64 `json:"retried"`
	Failed      int64 `json:"failed"`
}

// Scheduler pulls pending jobs and runs them on a bounded pool. All
// cross-worker coordination goes through the queue's atomic claim, so several
// processes can run a scheduler against the same store.
type Scheduler struct {
	queue   Queue
	handler Handler
	opts    Options
	logger  logger.Logger
	obs     *observability.Observability
	limiter *rate.Limiter
	now     func() time.Time

	sem       chan struct{}
	slotFreed chan struct{}
	wg        sync.WaitGroup

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	paused    atomic.Bool
	completed atomic.Int64
	retried   atomic.Int64
	failed    atomic.Int64
}

func NewScheduler(queue Queue, handler Handler, opts Options, log logger.Logger, obs *observability.Observability) *Scheduler {
	opts = opts.withDefaults()
	return &Scheduler{
		queue:     queue,
		handler:   handler,
		opts:      opts,
		logger:    log.WithFields(map[string]interface{}{"component": "job-scheduler"}),
		obs:       obs,
		limiter:   rate.NewLimiter(opts.RateLimit, opts.Burst),
		now:       func() time.Time { return time.Now().UTC() },
		sem:       make(chan struct{}, opts.Concurrency),
		slotFreed: make(chan struct{}, 1),
	}
}

// Start launches the polling loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(loopCtx, s.done)

	s.logger.Info("scheduler started", map[string]interface{}{
		"concurrency":  s.opts.Concurrency,
		"batchSize":    s.opts.BatchSize,
		"pollInterval": s.opts.PollInterval.String(),
		"maxRetries":   s.opts.MaxRetries,
	})
	return nil
}

// Stop ends the loop and waits for in-flight jobs, or for ctx to expire.
// In-flight jobs are not cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.cancel()
	done := s.done
	s.running = false
	s.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		<-done
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		s.logger.Info("scheduler stopped", nil)
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out with jobs in flight", map[string]interface{}{
			"activeJobs": len(s.sem),
		})
		return ctx.Err()
	}
}

// Pause stops intake of new jobs. Queued jobs stay pending.
func (s *Scheduler) Pause() {
	if !s.paused.Swap(true) {
		s.logger.Info("scheduler paused", nil)
	}
}

func (s *Scheduler) Resume() {
	if s.paused.Swap(false) {
		s.logger.Info("scheduler resumed", nil)
	}
}

func (s *Scheduler) Paused() bool {
	return s.paused.Load()
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return Status{
		Running:     running,
		Paused:      s.paused.Load(),
		ActiveJobs:  len(s.sem),
		Concurrency: s.opts.Concurrency,
		Completed:   s.completed.Load(),
		Retried:     s.retried.Load(),
		Failed:      s.failed.Load(),
	}
}

// Enqueue queues an assessment for background processing. A live job for the
// same assessment is returned instead of a duplicate.
func (s *Scheduler) Enqueue(ctx context.Context, req EnqueueRequest) (*EnqueueResult, error) {
	if err := validation.Validate(validation.EnqueueSchema, req); err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	now := s.now()
	job := &models.ProcessingJob{
		ID:                   uuid.New().String(),
		AssessmentResponseID: req.AssessmentID,
		CompanyID:            req.CompanyID,
		Status:               models.JobPending,
		Priority:             priority,
		MaxRetries:           s.opts.MaxRetries,
		NextRunAt:            now,
		CreatedAt:            now,
	}

	id, created, err := s.queue.EnqueueJob(ctx, job)
	if err != nil {
		return nil, err
	}

	s.logger.Info("assessment enqueued", map[string]interface{}{
		"assessmentResponseId": req.AssessmentID,
		"jobId":                id,
		"priority":             priority,
		"created":              created,
	})
	return &EnqueueResult{JobID: id, Created: created}, nil
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		if ctx.Err() != nil {
			return
		}

		dispatched := 0
		if !s.paused.Load() {
			n, err := s.RunOnce(ctx)
			if err != nil && ctx.Err() == nil {
				s.logger.Error("dispatch failed", map[string]interface{}{"error": err})
			}
			dispatched = n
		}

		if dispatched > 0 && len(s.sem) < cap(s.sem) {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-s.slotFreed:
		case <-time.After(s.opts.PollInterval):
		}
	}
}

// RunOnce fetches up to the free capacity of due jobs and dispatches every
// job it manages to claim. It returns the number dispatched.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	free := cap(s.sem) - len(s.sem)
	if free <= 0 {
		return 0, nil
	}
	limit := s.opts.BatchSize
	if free < limit {
		limit = free
	}

	s.releaseStale(ctx)

	jobs, err := s.queue.FetchPending(ctx, limit)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, job := range jobs {
		if err := s.limiter.Wait(ctx); err != nil {
			return dispatched, err
		}

		claimed, err := s.queue.ClaimJob(ctx, job.ID)
		if err != nil {
			return dispatched, err
		}
		if !claimed {
			metrics.ClaimConflicts.Inc()
			s.logger.Debug("claim lost", map[string]interface{}{"jobId": job.ID})
			continue
		}

		s.sem <- struct{}{}
		s.wg.Add(1)
		go s.execute(context.WithoutCancel(ctx), job)
		dispatched++
	}
	return dispatched, nil
}

// releaseStale frees claims left behind by a worker that died mid-job. Twice
// the job timeout leaves room for a live worker to record its outcome.
func (s *Scheduler) releaseStale(ctx context.Context) {
	cutoff := s.now().Add(-2 * s.opts.JobTimeout)
	n, err := s.queue.ReleaseStaleJobs(ctx, cutoff)
	if err != nil {
		s.logger.Warn("stale claim release failed", map[string]interface{}{"error": err})
		return
	}
	if n > 0 {
		metrics.StaleClaimsReleased.Add(float64(n))
		s.logger.Warn("released stale claims", map[string]interface{}{
			"count":  n,
			"cutoff": cutoff.Format(time.RFC3339),
		})
	}
}

func (s *Scheduler) execute(ctx context.Context, job models.ProcessingJob) {
	defer func() {
		<-s.sem
		s.wg.Done()
		select {
		case s.slotFreed <- struct{}{}:
		default:
		}
	}()

	metrics.ProcessingJobsActive.Inc()
	defer metrics.ProcessingJobsActive.Dec()

	log := logger.ForJob(s.logger, job.ID, job.AssessmentResponseID)
	log.Info("processing job", map[string]interface{}{
		"priority":   job.Priority,
		"retryCount": job.RetryCount,
	})

	jobCtx, cancel := context.WithTimeout(ctx, s.opts.JobTimeout)
	defer cancel()
	jobCtx, span := s.obs.StartJobSpan(jobCtx, job.ID, job.AssessmentResponseID, job.RetryCount)

	start := time.Now()
	err := s.handler.HandleJob(jobCtx, job)
	elapsed := time.Since(start)
	metrics.ProcessingJobDuration.Observe(elapsed.Seconds())

	if err == nil {
		if cerr := s.queue.CompleteJob(ctx, job.ID); cerr != nil {
			log.Error("failed to mark job completed", map[string]interface{}{"error": cerr})
			observability.EndJobSpan(span, "unrecorded", cerr)
			return
		}
		observability.EndJobSpan(span, string(models.JobCompleted), nil)
		s.completed.Add(1)
		metrics.ProcessingJobsCompleted.Inc()
		s.obs.RecordJobProcessed(ctx, string(models.JobCompleted))
		s.obs.RecordJobDuration(ctx, elapsed, string(models.JobCompleted))
		log.Info("job completed", map[string]interface{}{"elapsedMs": elapsed.Milliseconds()})
		return
	}

	outcome := s.handleFailure(ctx, log, job, err, elapsed)
	observability.EndJobSpan(span, outcome, err)
}

// handleFailure retries retryable errors while budget remains and moves
// everything else to the terminal error state.
func (s *Scheduler) handleFailure(ctx context.Context, log logger.Logger, job models.ProcessingJob, jobErr error, elapsed time.Duration) string {
	maxRetries := job.MaxRetries
	if apperrors.IsRetryable(jobErr) && job.RetryCount < maxRetries {
		attempt := job.RetryCount + 1
		delay := BackoffDelay(s.opts.Backoff, attempt)
		if err := s.queue.RetryJob(ctx, job.ID, attempt, s.now().Add(delay), jobErr.Error()); err != nil {
			log.Error("failed to reschedule job", map[string]interface{}{"error": err})
			return "unrecorded"
		}
		s.retried.Add(1)
		metrics.ProcessingJobsRetried.Inc()
		s.obs.RecordJobProcessed(ctx, "retry")
		s.obs.RecordJobDuration(ctx, elapsed, "retry")
		log.Warn("job rescheduled", map[string]interface{}{
			"retryCount": attempt,
			"maxRetries": maxRetries,
			"delay":      delay.String(),
			"error":      jobErr,
		})
		return "retry"
	}

	if err := s.queue.FailJob(ctx, job.ID, jobErr.Error()); err != nil {
		log.Error("failed to mark job as error", map[string]interface{}{"error": err})
		return "unrecorded"
	}
	code := apperrors.CodeOf(jobErr)
	s.failed.Add(1)
	metrics.ProcessingJobsFailed.WithLabelValues(string(code)).Inc()
	s.obs.RecordJobProcessed(ctx, string(models.JobError))
	s.obs.RecordJobDuration(ctx, elapsed, string(models.JobError))
	log.Error("job failed", map[string]interface{}{
		"errorCode":  code,
		"retryCount": job.RetryCount,
		"error":      jobErr,
	})
	return string(models.JobError)
}

// BackoffDelay returns the delay before the given retry attempt (1-based).
// The last entry repeats once the table is exhausted.
func BackoffDelay(backoff []time.Duration, attempt int) time.Duration {
	if len(backoff) == 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(backoff) {
		return backoff[len(backoff)-1]
	}
	return backoff[attempt-1]
}
