package process

import (
	"context"
	"sync"
	"time"

	"mailpilot/core/domain"
	"mailpilot/core/port/out"
	"mailpilot/core/service/rules"
	"mailpilot/pkg/logger"
)

// runState is the shared mutable state of one run: the dedup set (seeded from
// the ledger, extended as actions succeed) and the outcome counters.
type runState struct {
	mu      sync.Mutex
	done    map[domain.ProcessedKey]struct{}
	drafts  int
	replies int
	errs    int
}

func newRunState(done map[domain.ProcessedKey]struct{}) *runState {
	if done == nil {
		done = make(map[domain.ProcessedKey]struct{})
	}
	return &runState{done: done}
}

func (st *runState) alreadyDone(key domain.ProcessedKey) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.done[key]
	return ok
}

func (st *runState) markDone(key domain.ProcessedKey) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.done[key] = struct{}{}
	switch key.ActionType {
	case domain.ActionDraft:
		st.drafts++
	case domain.ActionAutoReply:
		st.replies++
	}
}

func (st *runState) fail() {
	st.mu.Lock()
	st.errs++
	st.mu.Unlock()
}

func (st *runState) summary() *RunSummary {
	st.mu.Lock()
	defer st.mu.Unlock()
	return &RunSummary{
		DraftsCreated:   st.drafts,
		AutoRepliesSent: st.replies,
		Errors:          st.errs,
	}
}

// credentialWorker adapts the per-credential pipeline to the pool worker
// interface. One Do call processes every rule group against one mailbox.
type credentialWorker struct {
	svc    *Service
	groups []categoryRules
	since  time.Time
	state  *runState
}

func (w *credentialWorker) Do(ctx context.Context, cred *domain.Credential) error {
	w.svc.runCredential(ctx, cred, w.groups, w.since, w.state)
	return nil
}

// runCredential evaluates every rule of every category against one mailbox.
// Messages within a rule stay sequential; cancellation is checked between
// messages so an interrupted run leaves a consistent partial summary.
func (s *Service) runCredential(ctx context.Context, cred *domain.Credential, groups []categoryRules, since time.Time, st *runState) {
	log := s.log.WithFields(map[string]any{
		"credential_id": cred.ID,
		"provider":      string(cred.Provider),
	})

	adapter, ok := s.deps.Providers.Get(cred.Provider)
	if !ok {
		st.fail()
		log.Error("no adapter registered for provider %s", cred.Provider)
		return
	}

	tokenCtx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	token, err := s.deps.Vault.AccessToken(tokenCtx, cred)
	cancel()
	if err != nil {
		st.fail()
		log.WithError(err).Warn("credential unusable, skipping mailbox %s", cred.Email)
		return
	}

	for _, group := range groups {
		for _, rule := range group.rules {
			if ctx.Err() != nil {
				return
			}

			query, err := rules.Compile(*rule, cred.Provider, cred.Email)
			if err != nil {
				st.fail()
				log.WithError(err).Warn("rule %d does not compile for %s", rule.ID, cred.Provider)
				continue
			}

			searchCtx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
			matches, err := adapter.Search(searchCtx, token, query, since, s.opts.MaxResults)
			cancel()
			if err != nil {
				st.fail()
				log.WithError(err).Warn("search failed for rule %d", rule.ID)
				continue
			}

			for i := range matches {
				if ctx.Err() != nil {
					return
				}
				s.processMessage(ctx, adapter, token, cred, group.cat, matches[i], st, log)
			}
		}
	}
}

// processMessage applies the category's enabled actions to one matched
// message. The reply text is generated once and reused for both actions; each
// action is gated by its own ledger key so a half-done message converges over
// later runs.
func (s *Service) processMessage(ctx context.Context, adapter out.MailProvider, token string, cred *domain.Credential, cat *domain.Category, match domain.MatchedMessage, st *runState, log *logger.Logger) {
	draftKey := domain.ProcessedKey{MessageID: match.ID, CategoryID: cat.ID, ActionType: domain.ActionDraft}
	replyKey := domain.ProcessedKey{MessageID: match.ID, CategoryID: cat.ID, ActionType: domain.ActionAutoReply}

	wantDraft := cat.AIDraftEnabled && !st.alreadyDone(draftKey)
	wantReply := cat.AutoReplyEnabled && !st.alreadyDone(replyKey)
	if !wantDraft && !wantReply {
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	msg, err := adapter.FetchDetails(fetchCtx, token, match)
	cancel()
	if err != nil {
		st.fail()
		log.WithError(err).Warn("fetch failed for message %s", match.ID)
		return
	}

	genCtx, cancel := context.WithTimeout(ctx, s.opts.DraftTimeout)
	reply, err := s.deps.Drafts.GenerateDraft(genCtx, msg, cat.WritingStyle)
	cancel()
	if err != nil {
		st.fail()
		log.WithError(err).Warn("draft generation failed for message %s", match.ID)
		return
	}

	if wantDraft {
		actionCtx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
		draftID, err := adapter.CreateDraft(actionCtx, token, msg, reply)
		cancel()
		if err != nil {
			st.fail()
			log.WithError(err).Warn("draft creation failed for message %s", match.ID)
		} else {
			st.markDone(draftKey)
			s.recordAction(ctx, cred, cat, msg, domain.ActionDraft, draftID, st, log)
		}
	}

	if wantReply {
		actionCtx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
		err := adapter.SendReply(actionCtx, token, msg, reply)
		cancel()
		if err != nil {
			st.fail()
			log.WithError(err).Warn("auto reply failed for message %s", match.ID)
		} else {
			st.markDone(replyKey)
			s.recordAction(ctx, cred, cat, msg, domain.ActionAutoReply, "", st, log)
		}
	}
}

// recordAction writes the ledger row and the activity feed entry after a
// provider action succeeded. A ledger write failure means the action may be
// repeated next run; the feed is best-effort.
func (s *Service) recordAction(ctx context.Context, cred *domain.Credential, cat *domain.Category, msg *domain.FetchedMessage, action domain.ActionType, draftID string, st *runState, log *logger.Logger) {
	rec := &domain.ProcessedAction{
		UserID:     cred.UserID,
		MessageID:  msg.ID,
		CategoryID: cat.ID,
		ActionType: action,
		Provider:   cred.Provider,
		DraftID:    draftID,
	}
	if _, err := s.deps.Ledger.Record(ctx, rec); err != nil {
		st.fail()
		log.WithError(err).Error("failed to record %s for message %s", action, msg.ID)
		return
	}

	entry := &domain.ActivityLogEntry{
		UserID:       cred.UserID,
		CategoryName: cat.Name,
		ActivityType: action,
		Subject:      msg.Subject,
		Sender:       msg.From,
	}
	if err := s.deps.Activity.Append(ctx, entry); err != nil {
		log.WithError(err).Warn("failed to append activity entry for message %s", msg.ID)
	}
}
