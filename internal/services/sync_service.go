package services

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mfledger/internal/config"
	apperrors "mfledger/internal/errors"
	"mfledger/internal/infrastructure"
	"mfledger/internal/updater"
	"mfledger/pkg/contracts/domain"
)

// Runner executes update runs.
type Runner interface {
	Run(ctx context.Context, fundIDs []string, periods []domain.Period) ([]updater.Result, error)
}

// Broadcaster pushes messages to live clients.
type Broadcaster interface {
	Broadcast(ctx context.Context, msgType string, data any)
}

// Broadcast message types for sync jobs.
const (
	MessageSyncStarted   = "sync:started"
	MessageSyncCompleted = "sync:completed"
)

// SyncRequest selects what to sync. Empty Funds means every fund; Through = 0
// means every month published so far in Year.
type SyncRequest struct {
	Funds   []string `json:"funds" validate:"omitempty,unique,dive,required"`
	Year    int      `json:"year" validate:"omitempty,min=1990,max=2200"`
	Through int      `json:"through" validate:"omitempty,min=1,max=12"`
}

// JobStatus is the lifecycle state of a sync job.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// FundResult is the serialized outcome of one fund.
type FundResult struct {
	Fund      string          `json:"fund"`
	Added     []domain.Period `json:"added"`
	Skipped   []domain.Period `json:"skipped"`
	Failed    []domain.Period `json:"failed"`
	Cancelled bool            `json:"cancelled"`
	Error     string          `json:"error,omitempty"`
}

// SyncJob is one update run.
type SyncJob struct {
	ID         string          `json:"id"`
	Status     JobStatus       `json:"status"`
	Funds      []string        `json:"funds"`
	Periods    []domain.Period `json:"periods"`
	Results    []FundResult    `json:"results,omitempty"`
	Error      string          `json:"error,omitempty"`
	TraceID    string          `json:"trace_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// SyncService plans and runs update runs, synchronously or as background jobs.
type SyncService struct {
	funds       *config.FundRegistry
	runner      Runner
	broadcaster Broadcaster
	defaultYear int
	timeout     time.Duration
	now         func() time.Time
	logger      *slog.Logger

	mu     sync.Mutex
	jobs   map[string]*SyncJob
	cancel map[string]context.CancelFunc
	wg     sync.WaitGroup
}

// SyncOptions configures a SyncService.
type SyncOptions struct {
	Broadcaster Broadcaster
	// DefaultYear applies when a request has no year; 0 means the current year.
	DefaultYear int
	// Timeout bounds background jobs; 0 means no limit.
	Timeout time.Duration
	Now     func() time.Time
	Logger  *slog.Logger
}

// NewSyncService creates a SyncService.
func NewSyncService(funds *config.FundRegistry, runner Runner, opts SyncOptions) *SyncService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SyncService{
		funds:       funds,
		runner:      runner,
		broadcaster: opts.Broadcaster,
		defaultYear: opts.DefaultYear,
		timeout:     opts.Timeout,
		now:         opts.Now,
		logger:      infrastructure.WithComponent(opts.Logger, "sync_service"),
		jobs:        make(map[string]*SyncJob),
		cancel:      make(map[string]context.CancelFunc),
	}
}

// Plan resolves a request into fund ids and periods.
func (s *SyncService) Plan(req SyncRequest) ([]string, []domain.Period, error) {
	var funds []string
	if len(req.Funds) == 0 {
		funds = s.funds.IDs()
	} else {
		for _, key := range req.Funds {
			f, ok := s.funds.Find(key)
			if !ok {
				return nil, nil, apperrors.NewNotFoundError("fund " + key)
			}
			funds = append(funds, f.ID)
		}
	}

	year := req.Year
	if year == 0 {
		year = s.defaultYear
	}
	if year == 0 {
		year = s.now().Year()
	}

	var periods []domain.Period
	if req.Through > 0 {
		periods = updater.YearPeriods(year, time.Month(req.Through))
	} else {
		periods = updater.DefaultPeriods(year, s.now())
	}
	if len(periods) == 0 {
		return nil, nil, apperrors.NewAppValidationError("no published periods in the requested year")
	}
	return funds, periods, nil
}

// Run executes a request in the foreground.
func (s *SyncService) Run(ctx context.Context, req SyncRequest) (*SyncJob, error) {
	job, err := s.newJob(ctx, req)
	if err != nil {
		return nil, err
	}
	s.execute(infrastructure.WithTraceID(ctx, job.TraceID), job)
	return s.snapshot(job.ID), nil
}

// Start launches a request as a background job and returns immediately. The
// job outlives ctx; Shutdown cancels it.
func (s *SyncService) Start(ctx context.Context, req SyncRequest) (*SyncJob, error) {
	job, err := s.newJob(ctx, req)
	if err != nil {
		return nil, err
	}

	runCtx := infrastructure.WithTraceID(context.WithoutCancel(ctx), job.TraceID)
	var cancel context.CancelFunc
	if s.timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, s.timeout)
	} else {
		runCtx, cancel = context.WithCancel(runCtx)
	}

	s.mu.Lock()
	s.cancel[job.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.execute(runCtx, job)
		s.mu.Lock()
		delete(s.cancel, job.ID)
		s.mu.Unlock()
	}()
	return s.snapshot(job.ID), nil
}

// Job returns a copy of a job's current state.
func (s *SyncService) Job(id string) (*SyncJob, error) {
	if job := s.snapshot(id); job != nil {
		return job, nil
	}
	return nil, apperrors.NewNotFoundError("sync job " + id)
}

// Jobs returns every job, newest first.
func (s *SyncService) Jobs() []*SyncJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*SyncJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		c := *j
		out = append(out, &c)
	}
	sortJobs(out)
	return out
}

// Shutdown cancels running jobs and waits for them, or for ctx.
func (s *SyncService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, cancel := range s.cancel {
		cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SyncService) newJob(ctx context.Context, req SyncRequest) (*SyncJob, error) {
	funds, periods, err := s.Plan(req)
	if err != nil {
		return nil, err
	}
	traceID := infrastructure.GetTraceID(ctx)
	if traceID == "" {
		traceID = infrastructure.GenerateTraceID()
	}
	job := &SyncJob{
		ID:        uuid.New().String(),
		Status:    JobRunning,
		Funds:     funds,
		Periods:   periods,
		TraceID:   traceID,
		StartedAt: s.now(),
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return job, nil
}

func (s *SyncService) execute(ctx context.Context, job *SyncJob) {
	s.broadcast(ctx, MessageSyncStarted, s.snapshot(job.ID))
	s.logger.InfoContext(ctx, "Sync job started",
		slog.String("job_id", job.ID),
		slog.Any("funds", job.Funds),
		slog.Int("periods", len(job.Periods)))

	results, err := s.runner.Run(ctx, job.Funds, job.Periods)

	finished := s.now()
	s.mu.Lock()
	job.FinishedAt = &finished
	job.Results = make([]FundResult, 0, len(results))
	for _, r := range results {
		fr := FundResult{Fund: r.Fund, Added: r.Added, Skipped: r.Skipped, Failed: r.Failed, Cancelled: r.Cancelled}
		if r.Err != nil {
			fr.Error = r.Err.Error()
		}
		job.Results = append(job.Results, fr)
	}
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		job.Status = JobCancelled
		job.Error = err.Error()
	case err != nil:
		job.Status = JobFailed
		job.Error = err.Error()
	default:
		job.Status = JobCompleted
	}
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Sync job finished",
		slog.String("job_id", job.ID),
		slog.String("status", string(job.Status)))
	s.broadcast(ctx, MessageSyncCompleted, s.snapshot(job.ID))
}

func (s *SyncService) broadcast(ctx context.Context, msgType string, job *SyncJob) {
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(ctx, msgType, job)
	}
}

func (s *SyncService) snapshot(id string) *SyncJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil
	}
	c := *job
	return &c
}

func sortJobs(jobs []*SyncJob) {
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartedAt.After(jobs[j].StartedAt)
	})
}
