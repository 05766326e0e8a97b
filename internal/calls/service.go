package calls

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"callcenter-platform/internal/audit"
	"callcenter-platform/internal/directory"
	"callcenter-platform/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrNotFound             = errors.New("calls: not found")
	ErrInvalidArgument      = errors.New("calls: invalid argument")
	ErrInvalidToken         = errors.New("calls: invalid token")
	ErrCenterUnassigned     = errors.New("calls: user has no center")
	ErrQuotaExceeded        = errors.New("calls: daily quota exceeded")
	ErrAlreadyEnded         = errors.New("calls: already ended")
	ErrConversationConflict = errors.New("calls: conversation id conflict")
)

const maxConversationIDLength = 256

// AccountLookup resolves end-user login tokens.
type AccountLookup interface {
	AccountByToken(ctx context.Context, token string) (directory.Account, error)
}

// AttachHook runs after a conversation id was bound to a call.
type AttachHook func(ctx context.Context, c Call)

type Options struct {
	DailyLimit      int
	DefaultTimezone string
}

// Service owns the call state machine (started -> completed | failed) and the
// conversation correlation key.
type Service struct {
	repo     Repository
	accounts AccountLookup
	audit    *audit.Service

	// clock is injectable for deterministic tests.
	clock      func() time.Time
	dailyLimit int
	fallback   *time.Location

	attachHooks []AttachHook
}

func NewService(repo Repository, accounts AccountLookup, auditSvc *audit.Service, opts Options) (*Service, error) {
	if repo == nil || accounts == nil {
		return nil, errors.New("calls: repository and account lookup are required")
	}
	if opts.DailyLimit <= 0 {
		opts.DailyLimit = 2
	}
	if opts.DefaultTimezone == "" {
		opts.DefaultTimezone = "Europe/Madrid"
	}
	loc, err := time.LoadLocation(opts.DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("calls: default timezone: %w", err)
	}
	return &Service{
		repo:       repo,
		accounts:   accounts,
		audit:      auditSvc,
		clock:      time.Now,
		dailyLimit: opts.DailyLimit,
		fallback:   loc,
	}, nil
}

// OnConversationAttached registers a hook run after every successful attach.
// Not safe to call once requests are being served.
func (s *Service) OnConversationAttached(h AttachHook) {
	s.attachHooks = append(s.attachHooks, h)
}

func (s *Service) DailyLimit() int { return s.dailyLimit }

// Eligibility is the result of validating a login token.
type Eligibility struct {
	UserID     string
	UserName   string
	CenterID   string
	CallsToday int
	CanStart   bool
}

// Validate resolves a login token and computes today's quota usage in the
// user's center timezone. Every failure to resolve the token is ErrInvalidToken.
func (s *Service) Validate(ctx context.Context, token string) (Eligibility, error) {
	acct, err := s.account(ctx, token)
	if err != nil {
		return Eligibility{}, err
	}

	dayStart := StartOfLocalDay(s.clock(), ResolveLocation(acct.Timezone, s.fallback))
	n, err := s.repo.CountSince(ctx, acct.ID, dayStart)
	if err != nil {
		return Eligibility{}, fmt.Errorf("count calls: %w", err)
	}
	return Eligibility{
		UserID:     acct.ID,
		UserName:   acct.FullName,
		CenterID:   acct.CenterID,
		CallsToday: n,
		CanStart:   n < s.dailyLimit,
	}, nil
}

func (s *Service) account(ctx context.Context, token string) (directory.Account, error) {
	acct, err := s.accounts.AccountByToken(ctx, token)
	if err != nil {
		if !errors.Is(err, directory.ErrNotFound) {
			logger.From(ctx).Error("login token lookup failed", "token", logger.MaskToken(token), "err", err)
		}
		return directory.Account{}, ErrInvalidToken
	}
	return acct, nil
}

type StartResult struct {
	Call       Call
	UserName   string
	CallsToday int
}

// Start re-validates the token and creates a started call if today's quota
// allows it. On ErrQuotaExceeded the result still carries CallsToday.
func (s *Service) Start(ctx context.Context, token string) (StartResult, error) {
	acct, err := s.account(ctx, token)
	if err != nil {
		return StartResult{}, err
	}
	if acct.CenterID == "" {
		return StartResult{UserName: acct.FullName}, ErrCenterUnassigned
	}

	now := s.clock().UTC()
	dayStart := StartOfLocalDay(now, ResolveLocation(acct.Timezone, s.fallback))
	c := Call{
		ID:        uuid.NewString(),
		UserID:    acct.ID,
		CenterID:  acct.CenterID,
		StartedAt: now,
		Status:    CallStatusStarted,
		CreatedAt: now,
	}

	before, err := s.repo.CreateWithinQuota(ctx, c, dayStart, s.dailyLimit)
	if err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			return StartResult{UserName: acct.FullName, CallsToday: before}, ErrQuotaExceeded
		}
		return StartResult{}, fmt.Errorf("create call: %w", err)
	}
	return StartResult{Call: c, UserName: acct.FullName, CallsToday: before + 1}, nil
}

// End completes a started call with a clock-based duration. A second End is
// ErrAlreadyEnded and leaves the stored duration untouched. conversationID,
// when given, is attached after the transition as a best-effort capture.
func (s *Service) End(ctx context.Context, callID, conversationID string) (Call, error) {
	if callID == "" {
		return Call{}, ErrInvalidArgument
	}
	c, err := s.repo.Get(ctx, callID)
	if err != nil {
		return Call{}, err
	}
	if c.Status != CallStatusStarted {
		s.logDuplicateEnd(ctx, c)
		return c, ErrAlreadyEnded
	}

	now := s.clock().UTC()
	dur := int(now.Sub(c.StartedAt) / time.Second)
	if dur < 0 {
		dur = 0
	}
	done, err := s.repo.Finish(ctx, callID, CallStatusCompleted, now, &dur)
	if err != nil {
		if errors.Is(err, ErrAlreadyEnded) {
			s.logDuplicateEnd(ctx, done)
		}
		return done, err
	}

	if conversationID = strings.TrimSpace(conversationID); conversationID != "" {
		attached, err := s.AttachConversation(ctx, callID, conversationID)
		switch {
		case err == nil:
			done = attached
		case errors.Is(err, ErrConversationConflict):
			// Already audited; the end itself succeeded.
		default:
			logger.From(ctx).Warn("attach on end failed", "call_id", callID, "err", err)
		}
	}
	return done, nil
}

func (s *Service) logDuplicateEnd(ctx context.Context, c Call) {
	logger.From(ctx).Info("duplicate call end", "call_id", c.ID, "status", c.Status)
	_ = s.audit.LogCall(ctx, audit.EventTypeDuplicateEnd, c.ID, c.ConversationID, "end requested for "+string(c.Status)+" call", "")
}

// MarkFailed fails a started call, e.g. when the provider session could not be set up.
func (s *Service) MarkFailed(ctx context.Context, callID string) (Call, error) {
	if callID == "" {
		return Call{}, ErrInvalidArgument
	}
	return s.repo.Finish(ctx, callID, CallStatusFailed, s.clock().UTC(), nil)
}

// AttachConversation binds the provider conversation id to a call (compare-and-set).
// Re-attaching the same id is a no-op success; a different id is ErrConversationConflict.
func (s *Service) AttachConversation(ctx context.Context, callID, conversationID string) (Call, error) {
	conversationID = strings.TrimSpace(conversationID)
	if callID == "" || conversationID == "" || len(conversationID) > maxConversationIDLength {
		return Call{}, ErrInvalidArgument
	}

	c, err := s.repo.AttachConversation(ctx, callID, conversationID)
	if err != nil {
		if errors.Is(err, ErrConversationConflict) {
			logger.From(ctx).Warn("conversation id conflict",
				"call_id", callID,
				"conversation_id", conversationID,
				"existing_conversation_id", c.ConversationID,
			)
			_ = s.audit.LogCall(ctx, audit.EventTypeCorrelationConflict, callID, conversationID,
				"conversation id conflict", fmt.Sprintf(`{"existing":%q}`, c.ConversationID))
		}
		return c, err
	}

	for _, h := range s.attachHooks {
		h(ctx, c)
	}
	return c, nil
}

// CompleteFromProvider completes a started call on behalf of the provider webhook.
// Terminal calls are left as they are, so a failed call stays failed even though the
// callback reports the conversation finished. The bool reports whether a transition happened.
// reportedSeconds is the provider's duration, used when present.
func (s *Service) CompleteFromProvider(ctx context.Context, callID string, reportedSeconds *int) (Call, bool, error) {
	c, err := s.repo.Get(ctx, callID)
	if err != nil {
		return Call{}, false, err
	}
	if c.Status != CallStatusStarted {
		return c, false, nil
	}

	now := s.clock().UTC()
	dur := int(now.Sub(c.StartedAt) / time.Second)
	if reportedSeconds != nil && *reportedSeconds >= 0 {
		dur = *reportedSeconds
	}
	if dur < 0 {
		dur = 0
	}
	done, err := s.repo.Finish(ctx, callID, CallStatusCompleted, now, &dur)
	if errors.Is(err, ErrAlreadyEnded) {
		// Lost the race with a client end; same terminal state.
		return done, false, nil
	}
	if err != nil {
		return Call{}, false, err
	}
	return done, true, nil
}

// SaveTranscript upserts the call's transcript. Redelivery replaces content.
func (s *Service) SaveTranscript(ctx context.Context, callID, content string, meta TranscriptMetadata) (Transcript, error) {
	if callID == "" {
		return Transcript{}, ErrInvalidArgument
	}
	t := Transcript{
		ID:        uuid.NewString(),
		CallID:    callID,
		Content:   content,
		Metadata:  meta,
		CreatedAt: s.clock().UTC(),
	}
	return s.repo.UpsertTranscript(ctx, t)
}

func (s *Service) FindByConversation(ctx context.Context, conversationID string) (Call, error) {
	if conversationID == "" {
		return Call{}, ErrNotFound
	}
	return s.repo.GetByConversation(ctx, conversationID)
}

func (s *Service) RecentCalls(ctx context.Context, n int) ([]Call, error) {
	if n <= 0 {
		n = 5
	}
	return s.repo.ListRecent(ctx, n)
}

func (s *Service) Get(ctx context.Context, callID string) (Call, error) {
	if callID == "" {
		return Call{}, ErrNotFound
	}
	return s.repo.Get(ctx, callID)
}

func (s *Service) Transcript(ctx context.Context, callID string) (Transcript, error) {
	return s.repo.GetTranscript(ctx, callID)
}

func (s *Service) ListByUser(ctx context.Context, userID string, limit int) ([]Call, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

// FailStale fails calls stuck in "started" for longer than olderThan
// (no end and no webhook ever arrived).
func (s *Service) FailStale(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, ErrInvalidArgument
	}
	now := s.clock().UTC()
	swept, err := s.repo.FailStale(ctx, now.Add(-olderThan), now)
	if err != nil {
		return 0, err
	}
	for _, c := range swept {
		_ = s.audit.LogCall(ctx, audit.EventTypeStaleSweep, c.ID, c.ConversationID, "stale started call failed", "")
	}
	return len(swept), nil
}
