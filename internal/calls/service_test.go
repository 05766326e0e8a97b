package calls

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"callcenter-platform/internal/audit"
	"callcenter-platform/internal/directory"
)

type stubAccounts map[string]directory.Account

func (s stubAccounts) AccountByToken(ctx context.Context, token string) (directory.Account, error) {
	a, ok := s[token]
	if !ok {
		return directory.Account{}, directory.ErrNotFound
	}
	return a, nil
}

type fixture struct {
	svc   *Service
	repo  *MemoryRepo
	audit *audit.MemoryRepo
	now   time.Time
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	repo := NewMemoryRepo()
	auditRepo := audit.NewMemoryRepo()
	accounts := stubAccounts{
		"tok-ny": {User: directory.User{ID: "u-ny", FullName: "Ana", CenterID: "c-ny"}, Timezone: "America/New_York"},
		"tok-md": {User: directory.User{ID: "u-md", FullName: "Luis", CenterID: "c-md"}},
		"tok-nc": {User: directory.User{ID: "u-nc", FullName: "Sin Centro"}},
	}
	svc, err := NewService(repo, accounts, audit.NewService(auditRepo), Options{DailyLimit: 2, DefaultTimezone: "Europe/Madrid"})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	f := &fixture{svc: svc, repo: repo, audit: auditRepo, now: now}
	svc.clock = func() time.Time { return f.now }
	return f
}

func TestValidate_InvalidTokensCollapse(t *testing.T) {
	f := newFixture(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	for _, tok := range []string{"", "nope", "tok-ny "} {
		if _, err := f.svc.Validate(context.Background(), tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken for %q, got %v", tok, err)
		}
	}
}

func TestStart_QuotaBoundary(t *testing.T) {
	f := newFixture(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		res, err := f.svc.Start(ctx, "tok-md")
		if err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		if res.CallsToday != i {
			t.Fatalf("expected callsToday %d, got %d", i, res.CallsToday)
		}
		if res.Call.Status != CallStatusStarted {
			t.Fatalf("expected started call")
		}
	}

	el, err := f.svc.Validate(ctx, "tok-md")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if el.CanStart || el.CallsToday != 2 {
		t.Fatalf("expected canStart=false callsToday=2, got %+v", el)
	}

	res, err := f.svc.Start(ctx, "tok-md")
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if res.CallsToday != 2 {
		t.Fatalf("expected callsToday 2 on rejection, got %d", res.CallsToday)
	}
	if n, _ := f.repo.Counts(); n != 2 {
		t.Fatalf("expected 2 calls stored, got %d", n)
	}
}

func TestStart_FailedCallsDoNotCount(t *testing.T) {
	f := newFixture(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	res, _ := f.svc.Start(ctx, "tok-md")
	if _, err := f.svc.MarkFailed(ctx, res.Call.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	el, _ := f.svc.Validate(ctx, "tok-md")
	if el.CallsToday != 0 || !el.CanStart {
		t.Fatalf("expected failed call not counted, got %+v", el)
	}
}

func TestStart_ConcurrentRequestsRespectQuota(t *testing.T) {
	f := newFixture(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Start(context.Background(), "tok-md"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 2 {
		t.Fatalf("expected exactly 2 starts, got %d", succeeded)
	}
}

func TestStart_CenterUnassignedAndInvalidToken(t *testing.T) {
	f := newFixture(t, time.Now())
	if _, err := f.svc.Start(context.Background(), "tok-nc"); !errors.Is(err, ErrCenterUnassigned) {
		t.Fatalf("expected ErrCenterUnassigned, got %v", err)
	}
	if _, err := f.svc.Start(context.Background(), "bogus"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidate_DayBoundaryInCenterTimezone(t *testing.T) {
	ny := mustLoc(t, "America/New_York")
	f := newFixture(t, time.Date(2024, 6, 1, 23, 59, 59, 0, ny))
	ctx := context.Background()

	f.repo.Put(Call{ID: "late", UserID: "u-ny", StartedAt: time.Date(2024, 6, 1, 23, 59, 59, 0, ny), Status: CallStatusCompleted})
	f.repo.Put(Call{ID: "early", UserID: "u-ny", StartedAt: time.Date(2024, 6, 1, 0, 0, 1, 0, ny), Status: CallStatusCompleted})

	el, err := f.svc.Validate(ctx, "tok-ny")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if el.CallsToday != 2 || el.CanStart {
		t.Fatalf("expected both calls counted on June 1st, got %+v", el)
	}

	// Two seconds later it is June 2nd locally; yesterday's calls no longer count.
	f.now = time.Date(2024, 6, 2, 0, 0, 1, 0, ny)
	el, err = f.svc.Validate(ctx, "tok-ny")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if el.CallsToday != 0 || !el.CanStart {
		t.Fatalf("expected fresh quota on June 2nd, got %+v", el)
	}
}

func TestEnd_IdempotentAtOrchestrationLayer(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, start)
	ctx := context.Background()

	res, err := f.svc.Start(ctx, "tok-md")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	f.now = start.Add(95*time.Second + 700*time.Millisecond)
	c, err := f.svc.End(ctx, res.Call.ID, "conv-1")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if c.Status != CallStatusCompleted || c.DurationSeconds == nil || *c.DurationSeconds != 95 {
		t.Fatalf("expected completed with 95s, got %+v", c)
	}
	if c.ConversationID != "conv-1" {
		t.Fatalf("expected conversation attached on end, got %q", c.ConversationID)
	}

	f.now = start.Add(10 * time.Minute)
	if _, err := f.svc.End(ctx, res.Call.ID, ""); !errors.Is(err, ErrAlreadyEnded) {
		t.Fatalf("expected ErrAlreadyEnded, got %v", err)
	}
	got, _ := f.svc.Get(ctx, res.Call.ID)
	if *got.DurationSeconds != 95 {
		t.Fatalf("duration changed on second end: %d", *got.DurationSeconds)
	}

	var dup int
	for _, e := range f.audit.Events() {
		if e.Type == audit.EventTypeDuplicateEnd {
			dup++
		}
	}
	if dup != 1 {
		t.Fatalf("expected 1 duplicate_end audit event, got %d", dup)
	}

	if _, err := f.svc.End(ctx, "missing", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAttachConversation_CompareAndSet(t *testing.T) {
	f := newFixture(t, time.Now())
	ctx := context.Background()

	a, _ := f.svc.Start(ctx, "tok-md")
	b, _ := f.svc.Start(ctx, "tok-md")

	var hooked []string
	f.svc.OnConversationAttached(func(ctx context.Context, c Call) { hooked = append(hooked, c.ConversationID) })

	if _, err := f.svc.AttachConversation(ctx, a.Call.ID, "conv-a"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if _, err := f.svc.AttachConversation(ctx, a.Call.ID, "conv-a"); err != nil {
		t.Fatalf("re-attach same id should succeed: %v", err)
	}
	if _, err := f.svc.AttachConversation(ctx, a.Call.ID, "conv-other"); !errors.Is(err, ErrConversationConflict) {
		t.Fatalf("expected conflict for different id, got %v", err)
	}
	if _, err := f.svc.AttachConversation(ctx, b.Call.ID, "conv-a"); !errors.Is(err, ErrConversationConflict) {
		t.Fatalf("expected conflict for id owned by another call, got %v", err)
	}
	if _, err := f.svc.AttachConversation(ctx, a.Call.ID, " "); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}

	got, _ := f.svc.Get(ctx, a.Call.ID)
	if got.ConversationID != "conv-a" {
		t.Fatalf("conversation id overwritten: %q", got.ConversationID)
	}
	if len(hooked) != 2 {
		t.Fatalf("expected hook per successful attach, got %v", hooked)
	}

	var conflicts int
	for _, e := range f.audit.Events() {
		if e.Type == audit.EventTypeCorrelationConflict {
			conflicts++
		}
	}
	if conflicts != 2 {
		t.Fatalf("expected 2 conflict audit events, got %d", conflicts)
	}
}

func TestCompleteFromProvider(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, start)
	ctx := context.Background()

	res, _ := f.svc.Start(ctx, "tok-md")
	f.now = start.Add(time.Minute)

	reported := 42
	c, moved, err := f.svc.CompleteFromProvider(ctx, res.Call.ID, &reported)
	if err != nil || !moved {
		t.Fatalf("expected transition, got moved=%v err=%v", moved, err)
	}
	if *c.DurationSeconds != 42 || c.EndedAt == nil {
		t.Fatalf("unexpected call %+v", c)
	}

	// A redelivery is a no-op.
	c, moved, err = f.svc.CompleteFromProvider(ctx, res.Call.ID, nil)
	if err != nil || moved || c.Status != CallStatusCompleted {
		t.Fatalf("expected no-op, got moved=%v err=%v status=%s", moved, err, c.Status)
	}

	// Failed calls stay failed.
	other, _ := f.svc.Start(ctx, "tok-md")
	_, _ = f.svc.MarkFailed(ctx, other.Call.ID)
	c, moved, _ = f.svc.CompleteFromProvider(ctx, other.Call.ID, nil)
	if moved || c.Status != CallStatusFailed {
		t.Fatalf("expected failed call untouched, got %s", c.Status)
	}
}

func TestSaveTranscript_Idempotent(t *testing.T) {
	f := newFixture(t, time.Now())
	ctx := context.Background()

	res, _ := f.svc.Start(ctx, "tok-md")
	meta := TranscriptMetadata{ConversationID: "conv-1", Status: "done"}

	first, err := f.svc.SaveTranscript(ctx, res.Call.ID, "agent: hola", meta)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	second, err := f.svc.SaveTranscript(ctx, res.Call.ID, "agent: hola", meta)
	if err != nil {
		t.Fatalf("save again: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same transcript row, got %s and %s", first.ID, second.ID)
	}
	if _, n := f.repo.Counts(); n != 1 {
		t.Fatalf("expected 1 transcript, got %d", n)
	}
}

func TestFailStale(t *testing.T) {
	start := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	f := newFixture(t, start)
	ctx := context.Background()

	old, _ := f.svc.Start(ctx, "tok-md")
	f.now = start.Add(3 * time.Hour)
	fresh, _ := f.svc.Start(ctx, "tok-ny")

	n, err := f.svc.FailStale(ctx, 2*time.Hour)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 swept call, got %d", n)
	}
	if c, _ := f.svc.Get(ctx, old.Call.ID); c.Status != CallStatusFailed || c.EndedAt == nil {
		t.Fatalf("expected old call failed, got %+v", c)
	}
	if c, _ := f.svc.Get(ctx, fresh.Call.ID); c.Status != CallStatusStarted {
		t.Fatalf("expected fresh call untouched, got %s", c.Status)
	}
}
