package reporting

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory reporting repository for tests.
type MemoryRepo struct {
	mu   sync.Mutex
	Rows []CallRow
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListCalls(ctx context.Context, centerID string, from, to time.Time) ([]CallRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallRow, 0)
	for _, c := range r.Rows {
		if c.CenterID != centerID {
			continue
		}
		if c.StartedAt.Before(from) || !c.StartedAt.Before(to) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *MemoryRepo) UserActivity(ctx context.Context, userID string, since time.Time) (int, *time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	var last *time.Time
	for _, c := range r.Rows {
		if c.UserID != userID {
			continue
		}
		if last == nil || c.StartedAt.After(*last) {
			t := c.StartedAt
			last = &t
		}
		if c.Status.CountsTowardQuota() && !c.StartedAt.Before(since) {
			n++
		}
	}
	return n, last, nil
}
