package processing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "psychosocial-workers/internal/common/errors"
	"psychosocial-workers/internal/common/logger"
	"psychosocial-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Fakes
// ==========================

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memQueue mirrors the store's compare-and-swap claim with a mutex.
type memQueue struct {
	mu     sync.Mutex
	clock  *clock
	jobs   map[string]*models.ProcessingJob
	delays []time.Duration
}

func newMemQueue(c *clock) *memQueue {
	return &memQueue{clock: c, jobs: map[string]*models.ProcessingJob{}}
}

func (q *memQueue) EnqueueJob(ctx context.Context, job *models.ProcessingJob) (string, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, j := range q.jobs {
		if j.AssessmentResponseID == job.AssessmentResponseID && !j.Status.IsTerminal() {
			return j.ID, false, nil
		}
	}
	cp := *job
	q.jobs[job.ID] = &cp
	return job.ID, true, nil
}

func (q *memQueue) FetchPending(ctx context.Context, limit int) ([]models.ProcessingJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.clock.Now()
	var out []models.ProcessingJob
	for _, j := range q.jobs {
		if j.Status == models.JobPending && !j.NextRunAt.After(now) {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].Priority.Rank() != out[k].Priority.Rank() {
			return out[i].Priority.Rank() > out[k].Priority.Rank()
		}
		return out[i].CreatedAt.Before(out[k].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (q *memQueue) ClaimJob(ctx context.Context, id string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok || j.Status != models.JobPending {
		return false, nil
	}
	j.Status = models.JobProcessing
	now := q.clock.Now()
	j.StartedAt = &now
	return true, nil
}

func (q *memQueue) CompleteJob(ctx context.Context, id string) error {
	return q.transition(id, func(j *models.ProcessingJob) {
		j.Status = models.JobCompleted
		now := q.clock.Now()
		j.CompletedAt = &now
	})
}

func (q *memQueue) RetryJob(ctx context.Context, id string, retryCount int, nextRunAt time.Time, message string) error {
	q.mu.Lock()
	q.delays = append(q.delays, nextRunAt.Sub(q.clock.Now()))
	q.mu.Unlock()
	return q.transition(id, func(j *models.ProcessingJob) {
		j.Status = models.JobPending
		j.RetryCount = retryCount
		j.NextRunAt = nextRunAt
		j.ErrorMessage = message
	})
}

func (q *memQueue) FailJob(ctx context.Context, id, message string) error {
	return q.transition(id, func(j *models.ProcessingJob) {
		j.Status = models.JobError
		j.ErrorMessage = message
		now := q.clock.Now()
		j.CompletedAt = &now
	})
}

func (q *memQueue) GetJob(ctx context.Context, id string) (*models.ProcessingJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return nil, apperrors.NewJobNotFoundError(id)
	}
	cp := *j
	return &cp, nil
}

func (q *memQueue) ReleaseStaleJobs(ctx context.Context, claimedBefore time.Time) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int64
	for _, j := range q.jobs {
		if j.Status != models.JobProcessing || j.StartedAt == nil || !j.StartedAt.Before(claimedBefore) {
			continue
		}
		now := q.clock.Now()
		if j.RetryCount < j.MaxRetries {
			j.Status = models.JobPending
			j.RetryCount++
		} else {
			j.Status = models.JobError
			j.CompletedAt = &now
		}
		j.ErrorMessage = "claim expired before the job finished"
		j.NextRunAt = now
		j.StartedAt = nil
		n++
	}
	return n, nil
}

func (q *memQueue) transition(id string, fn func(*models.ProcessingJob)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return apperrors.NewJobNotFoundError(id)
	}
	if j.Status != models.JobProcessing {
		return errors.New("job is not processing")
	}
	fn(j)
	return nil
}

type handlerFunc func(ctx context.Context, job models.ProcessingJob) error

func (f handlerFunc) HandleJob(ctx context.Context, job models.ProcessingJob) error {
	return f(ctx, job)
}

// ==========================
// Test Helper Functions
// ==========================

func testOptions() Options {
	return Options{
		Concurrency:  3,
		BatchSize:    10,
		PollInterval: 10 * time.Millisecond,
		JobTimeout:   time.Second,
		MaxRetries:   3,
		Backoff:      []time.Duration{time.Second, 5 * time.Second, 15 * time.Second},
	}
}

func newTestScheduler(t *testing.T, q Queue, h Handler, c *clock) *Scheduler {
	s := NewScheduler(q, h, testOptions(), logger.NewTestLogger(t), nil)
	s.now = c.Now
	return s
}

func runAndWait(t *testing.T, s *Scheduler) int {
	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	s.wg.Wait()
	return n
}

// ==========================
// Retry policy
// ==========================

func TestScheduler_TransientFailuresRetryThenComplete(t *testing.T) {
	c := &clock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	q := newMemQueue(c)

	var attempts int32
	h := handlerFunc(func(ctx context.Context, job models.ProcessingJob) error {
		if atomic.AddInt32(&attempts, 1) <= 2 {
			return apperrors.NewStoreError("insert risk_analyses", errors.New("connection reset"))
		}
		return nil
	})
	s := newTestScheduler(t, q, h, c)

	res, err := s.Enqueue(context.Background(), EnqueueRequest{AssessmentID: "a-1", CompanyID: "c-1"})
	require.NoError(t, err)

	assert.Equal(t, 1, runAndWait(t, s))
	job, _ := q.GetJob(context.Background(), res.JobID)
	assert.Equal(t, models.JobPending, job.Status)
	assert.Equal(t, 1, job.RetryCount)

	// not due yet
	assert.Equal(t, 0, runAndWait(t, s))

	c.Advance(time.Second)
	assert.Equal(t, 1, runAndWait(t, s))
	job, _ = q.GetJob(context.Background(), res.JobID)
	assert.Equal(t, models.JobPending, job.Status)
	assert.Equal(t, 2, job.RetryCount)

	c.Advance(5 * time.Second)
	assert.Equal(t, 1, runAndWait(t, s))
	job, _ = q.GetJob(context.Background(), res.JobID)
	assert.Equal(t, models.JobCompleted, job.Status)
	assert.NotNil(t, job.CompletedAt)

	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second}, q.delays)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))

	status := s.Status()
	assert.Equal(t, int64(1), status.Completed)
	assert.Equal(t, int64(2), status.Retried)
	assert.Equal(t, int64(0), status.Failed)
}

func TestScheduler_ExhaustedRetriesEndInError(t *testing.T) {
	c := &clock{now: time.Now().UTC()}
	q := newMemQueue(c)
	q.jobs["job-1"] = &models.ProcessingJob{
		ID:                   "job-1",
		AssessmentResponseID: "a-1",
		Status:               models.JobPending,
		Priority:             models.PriorityHigh,
		RetryCount:           3,
		MaxRetries:           3,
		NextRunAt:            c.Now(),
	}
	h := handlerFunc(func(ctx context.Context, job models.ProcessingJob) error {
		return apperrors.NewStoreError("select assessment_responses", errors.New("timeout"))
	})
	s := newTestScheduler(t, q, h, c)

	runAndWait(t, s)

	job, _ := q.GetJob(context.Background(), "job-1")
	assert.Equal(t, models.JobError, job.Status)
	assert.Equal(t, 3, job.RetryCount)
	assert.Contains(t, job.ErrorMessage, "STORE_FAILURE")
	assert.Empty(t, q.delays)
}

func TestScheduler_ZeroRetryBudgetFailsImmediately(t *testing.T) {
	c := &clock{now: time.Now().UTC()}
	q := newMemQueue(c)
	q.jobs["job-1"] = &models.ProcessingJob{
		ID:                   "job-1",
		AssessmentResponseID: "a-1",
		Status:               models.JobPending,
		Priority:             models.PriorityMedium,
		RetryCount:           0,
		MaxRetries:           0,
		NextRunAt:            c.Now(),
	}
	h := handlerFunc(func(ctx context.Context, job models.ProcessingJob) error {
		return apperrors.NewStoreError("insert risk_analyses", errors.New("connection reset"))
	})
	s := newTestScheduler(t, q, h, c)

	runAndWait(t, s)

	job, _ := q.GetJob(context.Background(), "job-1")
	assert.Equal(t, models.JobError, job.Status)
	assert.Equal(t, 0, job.RetryCount)
	assert.Empty(t, q.delays)
	assert.Equal(t, int64(0), s.Status().Retried)
}

func TestScheduler_NonRetryableErrorsFailFast(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"not found", apperrors.NewAssessmentNotFoundError("a-1")},
		{"validation", apperrors.NewValidationError("q1: must be <= 5")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &clock{now: time.Now().UTC()}
			q := newMemQueue(c)
			h := handlerFunc(func(ctx context.Context, job models.ProcessingJob) error { return tt.err })
			s := newTestScheduler(t, q, h, c)

			res, err := s.Enqueue(context.Background(), EnqueueRequest{AssessmentID: "a-1"})
			require.NoError(t, err)
			runAndWait(t, s)

			job, _ := q.GetJob(context.Background(), res.JobID)
			assert.Equal(t, models.JobError, job.Status)
			assert.Equal(t, 0, job.RetryCount)
			assert.Equal(t, int64(1), s.Status().Failed)
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	backoff := []time.Duration{time.Second, 5 * time.Second, 15 * time.Second}
	assert.Equal(t, time.Second, BackoffDelay(backoff, 0))
	assert.Equal(t, time.Second, BackoffDelay(backoff, 1))
	assert.Equal(t, 5*time.Second, BackoffDelay(backoff, 2))
	assert.Equal(t, 15*time.Second, BackoffDelay(backoff, 3))
	assert.Equal(t, 15*time.Second, BackoffDelay(backoff, 7))
	assert.Equal(t, time.Duration(0), BackoffDelay(nil, 1))
}

// ==========================
// Claiming and concurrency
// ==========================

func TestScheduler_ConcurrentClaimsRunJobOnce(t *testing.T) {
	c := &clock{now: time.Now().UTC()}
	q := newMemQueue(c)

	var runs int32
	h := handlerFunc(func(ctx context.Context, job models.ProcessingJob) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})

	first := newTestScheduler(t, q, h, c)
	second := newTestScheduler(t, q, h, c)

	_, err := first.Enqueue(context.Background(), EnqueueRequest{AssessmentID: "a-1"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var dispatched int32
	for _, s := range []*Scheduler{first, second} {
		wg.Add(1)
		go func(s *Scheduler) {
			defer wg.Done()
			n, err := s.RunOnce(context.Background())
			assert.NoError(t, err)
			atomic.AddInt32(&dispatched, int32(n))
		}(s)
	}
	wg.Wait()
	first.wg.Wait()
	second.wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&dispatched))
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

func TestScheduler_RespectsConcurrencyCeiling(t *testing.T) {
	c := &clock{now: time.Now().UTC()}
	q := newMemQueue(c)

	release := make(chan struct{})
	h := handlerFunc(func(ctx context.Context, job models.ProcessingJob) error {
		<-release
		return nil
	})
	s := newTestScheduler(t, q, h, c)

	for _, id := range []string{"a-1", "a-2", "a-3", "a-4", "a-5"} {
		_, err := s.Enqueue(context.Background(), EnqueueRequest{AssessmentID: id})
		require.NoError(t, err)
	}

	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, s.Status().ActiveJobs)

	n, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	close(release)
	s.wg.Wait()
	assert.Equal(t, 2, runAndWait(t, s))
}

func TestScheduler_ReleasesStaleClaims(t *testing.T) {
	c := &clock{now: time.Now().UTC()}
	q := newMemQueue(c)

	stale := c.Now().Add(-3 * time.Second)
	fresh := c.Now().Add(-500 * time.Millisecond)
	q.jobs["stale"] = &models.ProcessingJob{
		ID: "stale", AssessmentResponseID: "a-1", Status: models.JobProcessing,
		MaxRetries: 3, StartedAt: &stale, NextRunAt: stale,
	}
	q.jobs["spent"] = &models.ProcessingJob{
		ID: "spent", AssessmentResponseID: "a-2", Status: models.JobProcessing,
		RetryCount: 3, MaxRetries: 3, StartedAt: &stale, NextRunAt: stale,
	}
	q.jobs["fresh"] = &models.ProcessingJob{
		ID: "fresh", AssessmentResponseID: "a-3", Status: models.JobProcessing,
		MaxRetries: 3, StartedAt: &fresh, NextRunAt: fresh,
	}

	var ran []string
	var mu sync.Mutex
	h := handlerFunc(func(ctx context.Context, job models.ProcessingJob) error {
		mu.Lock()
		ran = append(ran, job.ID)
		mu.Unlock()
		return nil
	})
	s := newTestScheduler(t, q, h, c)

	assert.Equal(t, 1, runAndWait(t, s))
	assert.Equal(t, []string{"stale"}, ran)

	job, _ := q.GetJob(context.Background(), "stale")
	assert.Equal(t, models.JobCompleted, job.Status)
	assert.Equal(t, 1, job.RetryCount)

	job, _ = q.GetJob(context.Background(), "spent")
	assert.Equal(t, models.JobError, job.Status)
	assert.Contains(t, job.ErrorMessage, "claim expired")

	job, _ = q.GetJob(context.Background(), "fresh")
	assert.Equal(t, models.JobProcessing, job.Status)

	// the assessment can be queued again once its stuck job is released
	res, err := s.Enqueue(context.Background(), EnqueueRequest{AssessmentID: "a-2"})
	require.NoError(t, err)
	assert.True(t, res.Created)
}

// ==========================
// Enqueue
// ==========================

func TestScheduler_Enqueue(t *testing.T) {
	c := &clock{now: time.Now().UTC()}
	q := newMemQueue(c)
	s := newTestScheduler(t, q, handlerFunc(func(context.Context, models.ProcessingJob) error { return nil }), c)

	first, err := s.Enqueue(context.Background(), EnqueueRequest{AssessmentID: "a-1", Priority: models.PriorityCritical})
	require.NoError(t, err)
	assert.True(t, first.Created)

	again, err := s.Enqueue(context.Background(), EnqueueRequest{AssessmentID: "a-1"})
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, first.JobID, again.JobID)

	job, _ := q.GetJob(context.Background(), first.JobID)
	assert.Equal(t, models.PriorityCritical, job.Priority)
	assert.Equal(t, 3, job.MaxRetries)

	other, err := s.Enqueue(context.Background(), EnqueueRequest{AssessmentID: "a-2"})
	require.NoError(t, err)
	job, _ = q.GetJob(context.Background(), other.JobID)
	assert.Equal(t, models.PriorityMedium, job.Priority)

	_, err = s.Enqueue(context.Background(), EnqueueRequest{})
	assert.True(t, apperrors.IsValidation(err))

	_, err = s.Enqueue(context.Background(), EnqueueRequest{AssessmentID: "a-3", Priority: "urgent"})
	assert.True(t, apperrors.IsValidation(err))
}

// ==========================
// Lifecycle
// ==========================

func TestScheduler_StartPauseResumeStop(t *testing.T) {
	c := &clock{now: time.Now().UTC()}
	q := newMemQueue(c)

	var runs int32
	h := handlerFunc(func(ctx context.Context, job models.ProcessingJob) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})
	s := newTestScheduler(t, q, h, c)

	s.Pause()
	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)

	_, err := s.Enqueue(context.Background(), EnqueueRequest{AssessmentID: "a-1"})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&runs))
	assert.True(t, s.Status().Paused)

	s.Resume()
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.Status().Running)
	assert.ErrorIs(t, s.Stop(ctx), ErrNotRunning)
}
