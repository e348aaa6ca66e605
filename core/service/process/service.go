package process

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-pkgz/pool"
	"github.com/google/uuid"

	"mailpilot/core/domain"
	"mailpilot/core/port/out"
	"mailpilot/pkg/apperr"
	"mailpilot/pkg/logger"
)

// TokenVault yields a usable plaintext access token for a credential,
// refreshing and persisting token material as needed.
type TokenVault interface {
	AccessToken(ctx context.Context, cred *domain.Credential) (string, error)
}

// RunRequest selects what one processing run covers.
type RunRequest struct {
	UserID     uuid.UUID
	CategoryID *int64 // nil processes every processable category
}

// RunSummary aggregates the outcome of one run. Message is set for runs that
// ended without doing work (nothing to process, interrupted).
type RunSummary struct {
	DraftsCreated   int    `json:"drafts_created"`
	AutoRepliesSent int    `json:"auto_replies_sent"`
	Errors          int    `json:"errors"`
	Message         string `json:"message,omitempty"`
}

// Options tunes a processing run.
type Options struct {
	Window          time.Duration // recency bound on provider searches
	MaxResults      int           // per-rule search cap
	ProviderTimeout time.Duration // per provider API call
	DraftTimeout    time.Duration // per draft generation call
	LockTTL         time.Duration // run lock expiry
	MaxWorkers      int           // concurrent credential pipelines
}

func (o Options) withDefaults() Options {
	if o.Window <= 0 {
		o.Window = 24 * time.Hour
	}
	if o.MaxResults <= 0 {
		o.MaxResults = 25
	}
	if o.ProviderTimeout <= 0 {
		o.ProviderTimeout = 30 * time.Second
	}
	if o.DraftTimeout <= 0 {
		o.DraftTimeout = 45 * time.Second
	}
	if o.LockTTL <= 0 {
		o.LockTTL = 10 * time.Minute
	}
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = 4
	}
	return o
}

// Deps collects the outbound ports the orchestrator drives.
type Deps struct {
	Credentials out.CredentialRepository
	Categories  out.CategoryRepository
	Rules       out.RuleRepository
	Ledger      out.LedgerRepository
	Activity    out.ActivityLogRepository
	Providers   out.ProviderRegistry
	Vault       TokenVault
	Drafts      out.DraftGenerator
	Locker      out.RunLocker
}

// Service runs the processing pipeline: per user, it loads categories, rules,
// credentials and the dedup ledger once, then fans the work out per credential.
type Service struct {
	deps Deps
	opts Options
	log  *logger.Logger
}

// NewService creates the processing orchestrator.
func NewService(deps Deps, opts Options) *Service {
	return &Service{
		deps: deps,
		opts: opts.withDefaults(),
		log:  logger.WithField("component", "process"),
	}
}

// Run executes one processing run for the user. Credential pipelines run
// concurrently on a bounded worker group; failures inside a pipeline are
// counted, not fatal. The run as a whole fails only when the user has no
// usable credentials or a shared load step cannot complete.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunSummary, error) {
	if req.UserID == uuid.Nil {
		return nil, apperr.InvalidInput("user_id", "required")
	}

	acquired, err := s.deps.Locker.Acquire(ctx, req.UserID, s.opts.LockTTL)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeExternalError, "failed to acquire run lock", http.StatusBadGateway)
	}
	if !acquired {
		return nil, apperr.RunInProgress(req.UserID.String())
	}
	defer func() {
		if rErr := s.deps.Locker.Release(context.WithoutCancel(ctx), req.UserID); rErr != nil {
			s.log.WithError(rErr).Warn("failed to release run lock for user %s", req.UserID)
		}
	}()

	cats, err := s.loadCategories(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(cats) == 0 {
		return &RunSummary{Message: "no categories enabled for processing"}, nil
	}

	creds, err := s.deps.Credentials.ListConnectedByUser(ctx, req.UserID)
	if err != nil {
		return nil, apperr.DatabaseError("list credentials", err)
	}
	if len(creds) == 0 {
		return nil, apperr.NoUsableAccounts(req.UserID.String())
	}

	groups, catIDs, dirtyRules, err := s.loadRules(ctx, cats)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return &RunSummary{Message: "no enabled rules to evaluate"}, nil
	}

	seen, err := s.deps.Ledger.LoadKeysByUser(ctx, req.UserID, catIDs)
	if err != nil {
		return nil, apperr.DatabaseError("load processed ledger", err)
	}

	st := newRunState(seen)
	since := time.Now().Add(-s.opts.Window)

	worker := &credentialWorker{svc: s, groups: groups, since: since, state: st}
	grp := pool.New[*domain.Credential](s.opts.MaxWorkers, worker).WithContinueOnError()
	if err := grp.Go(ctx); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternalError, "failed to start run workers", http.StatusInternalServerError)
	}
	for _, cred := range creds {
		grp.Submit(cred)
	}
	if err := grp.Close(ctx); err != nil && ctx.Err() == nil {
		s.log.WithError(err).Warn("run worker group closed with error")
	}

	// Rules were recompiled fresh for this run, so their dirty flags can drop.
	if len(dirtyRules) > 0 && ctx.Err() == nil {
		if err := s.deps.Rules.ClearNeedsSync(ctx, dirtyRules); err != nil {
			s.log.WithError(err).Warn("failed to clear needs_sync for %d rules", len(dirtyRules))
		}
	}

	summary := st.summary()
	if ctx.Err() != nil {
		summary.Message = "run interrupted before completion"
	}
	s.log.Info("run finished for user %s: %d drafts, %d auto replies, %d errors",
		req.UserID, summary.DraftsCreated, summary.AutoRepliesSent, summary.Errors)
	return summary, nil
}

func (s *Service) loadCategories(ctx context.Context, req RunRequest) ([]*domain.Category, error) {
	if req.CategoryID != nil {
		cat, err := s.deps.Categories.GetByID(ctx, req.UserID, *req.CategoryID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, apperr.NotFound("category")
			}
			return nil, apperr.DatabaseError("load category", err)
		}
		if !cat.NeedsProcessing() {
			return nil, apperr.InvalidInput("category_id", "category has no AI actions enabled")
		}
		return []*domain.Category{cat}, nil
	}

	cats, err := s.deps.Categories.ListProcessableByUser(ctx, req.UserID)
	if err != nil {
		return nil, apperr.DatabaseError("list categories", err)
	}
	return cats, nil
}

// categoryRules pairs a category with its enabled rules for the run.
type categoryRules struct {
	cat   *domain.Category
	rules []*domain.Rule
}

func (s *Service) loadRules(ctx context.Context, cats []*domain.Category) ([]categoryRules, []int64, []int64, error) {
	var groups []categoryRules
	var ids, dirty []int64
	for _, cat := range cats {
		rs, err := s.deps.Rules.ListEnabledByCategory(ctx, cat.ID)
		if err != nil {
			return nil, nil, nil, apperr.DatabaseError("list rules", err)
		}
		if len(rs) == 0 {
			continue
		}
		groups = append(groups, categoryRules{cat: cat, rules: rs})
		ids = append(ids, cat.ID)
		for _, r := range rs {
			if r.NeedsSync {
				dirty = append(dirty, r.ID)
			}
		}
	}
	return groups, ids, dirty, nil
}
