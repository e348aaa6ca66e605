package worker

import (
	"context"
	"sync"
	"time"

	"github.com/go-pkgz/pool"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mailpilot/core/port/out"
	"mailpilot/core/service/process"
	"mailpilot/pkg/apperr"
)

// Runner triggers one processing run. Implemented by the orchestrator.
type Runner interface {
	Run(ctx context.Context, req process.RunRequest) (*process.RunSummary, error)
}

// SchedulerConfig tunes the periodic processing loop.
type SchedulerConfig struct {
	Interval   time.Duration // time between sweeps
	RunTimeout time.Duration // per-user run budget
	MaxWorkers int           // concurrent user runs
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Minute
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 5 * time.Minute
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 4
	}
	return c
}

// Scheduler periodically enumerates users with connected credentials and runs
// processing for each on a bounded worker group. The per-user Redis run lock
// keeps a sweep from racing a manual trigger.
type Scheduler struct {
	runner Runner
	creds  out.CredentialRepository
	cfg    SchedulerConfig
	log    zerolog.Logger

	grp    *pool.WorkerGroup[uuid.UUID]
	ctx    context.Context
	cancel context.CancelFunc

	started bool
	mu      sync.Mutex
}

// NewScheduler creates the processing scheduler.
func NewScheduler(runner Runner, creds out.CredentialRepository, cfg SchedulerConfig, log zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner: runner,
		creds:  creds,
		cfg:    cfg.withDefaults(),
		log:    log.With().Str("component", "scheduler").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// runWorker adapts a scheduled user run to the pool worker interface.
type runWorker struct {
	s *Scheduler
}

func (w *runWorker) Do(ctx context.Context, userID uuid.UUID) error {
	w.s.runUser(ctx, userID)
	return nil
}

// Start launches the run pool and the sweep loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}

	s.grp = pool.New[uuid.UUID](s.cfg.MaxWorkers, &runWorker{s: s}).WithContinueOnError()
	if err := s.grp.Go(s.ctx); err != nil {
		s.log.Error().Err(err).Msg("failed to start run pool")
		return
	}
	s.started = true

	go s.loop()

	s.log.Info().
		Dur("interval", s.cfg.Interval).
		Int("max_workers", s.cfg.MaxWorkers).
		Msg("scheduler started")
}

// Stop halts the sweep loop and drains in-flight runs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	grp := s.grp
	s.mu.Unlock()

	s.cancel()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer closeCancel()
	if err := grp.Close(closeCtx); err != nil && closeCtx.Err() == nil {
		s.log.Warn().Err(err).Msg("error closing run pool")
	}

	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep enqueues one run per user with connected credentials.
func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	users, err := s.creds.ListActiveUserIDs(ctx)
	cancel()
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list users for sweep")
		return
	}
	if len(users) == 0 {
		return
	}

	s.log.Debug().Int("users", len(users)).Msg("sweep starting")

	s.mu.Lock()
	started := s.started
	grp := s.grp
	s.mu.Unlock()
	if !started {
		return
	}
	for _, userID := range users {
		grp.Submit(userID)
	}
}

func (s *Scheduler) runUser(ctx context.Context, userID uuid.UUID) {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	start := time.Now()
	summary, err := s.runner.Run(runCtx, process.RunRequest{UserID: userID})
	if err != nil {
		if apperr.IsCode(err, apperr.CodeRunInProgress) {
			s.log.Debug().Str("user_id", userID.String()).Msg("run already in progress, skipping")
			return
		}
		if apperr.IsCode(err, apperr.CodeNoUsableAccounts) {
			s.log.Debug().Str("user_id", userID.String()).Msg("no usable accounts, skipping")
			return
		}
		s.log.Error().Err(err).Str("user_id", userID.String()).Msg("scheduled run failed")
		return
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Int("drafts", summary.DraftsCreated).
		Int("auto_replies", summary.AutoRepliesSent).
		Int("errors", summary.Errors).
		Dur("took", time.Since(start)).
		Msg("scheduled run finished")
}
