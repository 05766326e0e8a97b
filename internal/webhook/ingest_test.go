package webhook

import (
	"context"
	"testing"

	"callcenter-platform/internal/audit"
	"callcenter-platform/internal/calls"
	"callcenter-platform/internal/directory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// attachOnPark runs onPark right after a callback is parked, the way a
// concurrent attach would commit between the ingest lookup and its re-check.
type attachOnPark struct {
	*MemoryPending
	onPark func()
}

func (a *attachOnPark) Park(ctx context.Context, u Unmatched) error {
	err := a.MemoryPending.Park(ctx, u)
	if a.onPark != nil {
		a.onPark()
	}
	return err
}

func TestIngest_AttachDuringParkReportsMatch(t *testing.T) {
	ctx := context.Background()
	auditSvc := audit.NewService(audit.NewMemoryRepo())
	accounts := stubAccounts{
		"tok": {User: directory.User{ID: "u1", FullName: "Ana", CenterID: "c1"}, Timezone: "Europe/Madrid"},
	}
	svc, err := calls.NewService(calls.NewMemoryRepo(), accounts, auditSvc, calls.Options{DailyLimit: 10})
	require.NoError(t, err)

	res, err := svc.Start(ctx, "tok")
	require.NoError(t, err)

	pending := &attachOnPark{MemoryPending: NewMemoryPending()}
	ing := NewIngestor(svc, pending, auditSvc)
	svc.OnConversationAttached(ing.ReplayPending)
	pending.onPark = func() {
		_, err := svc.AttachConversation(ctx, res.Call.ID, "conv_1")
		require.NoError(t, err)
	}

	p, err := ParsePayload([]byte(completedBody))
	require.NoError(t, err)

	out, err := ing.Ingest(ctx, p, []byte(completedBody))
	require.NoError(t, err)
	assert.True(t, out.Matched)
	assert.Equal(t, res.Call.ID, out.CallID)
	assert.Equal(t, "conv_1", out.ConversationID)

	got, err := svc.Get(ctx, res.Call.ID)
	require.NoError(t, err)
	assert.Equal(t, calls.CallStatusCompleted, got.Status)

	tr, err := svc.Transcript(ctx, res.Call.ID)
	require.NoError(t, err)
	assert.Contains(t, tr.Content, "Hola")
	assert.Equal(t, 0, pending.Len())
}
