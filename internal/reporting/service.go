package reporting

import (
	"context"
	"errors"
	"time"

	"callcenter-platform/internal/calls"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

const defaultRange = 30 * 24 * time.Hour

// Repository is read-only access to call history. Implementations must filter by center.
type Repository interface {
	ListCalls(ctx context.Context, centerID string, from, to time.Time) ([]CallRow, error)
	UserActivity(ctx context.Context, userID string, since time.Time) (callsToday int, lastCallAt *time.Time, err error)
}

type Service struct {
	repo       Repository
	dailyLimit int
	fallback   *time.Location
	clock      func() time.Time
}

func NewService(repo Repository, dailyLimit int, fallback *time.Location) *Service {
	if fallback == nil {
		fallback = time.UTC
	}
	return &Service{repo: repo, dailyLimit: dailyLimit, fallback: fallback, clock: time.Now}
}

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.CenterID == "" {
		return CallsSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() && req.Range.To.IsZero() {
		req.Range.To = s.clock().UTC()
		req.Range.From = req.Range.To.Add(-defaultRange)
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, req.CenterID, req.Range.From, req.Range.To)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{CenterID: req.CenterID, Range: req.Range}
	withDuration := 0
	for _, r := range rows {
		out.TotalCalls++
		if r.HasTranscript {
			out.TranscribedCalls++
		}
		if r.DurationSeconds != nil {
			out.TotalDurationSeconds += *r.DurationSeconds
			withDuration++
		}
		switch r.Status {
		case calls.CallStatusCompleted:
			out.CompletedCalls++
		case calls.CallStatusFailed:
			out.FailedCalls++
		case calls.CallStatusStarted:
			out.InProgressCalls++
		}
	}
	if withDuration > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / withDuration
	}
	return out, nil
}

// UserActivity counts the user's calls of the current local day in timezone tz
// (the center's; the fallback zone when empty or unknown).
func (s *Service) UserActivity(ctx context.Context, userID, tz string) (UserActivity, error) {
	if userID == "" {
		return UserActivity{}, ErrInvalidRequest
	}
	since := calls.StartOfLocalDay(s.clock(), calls.ResolveLocation(tz, s.fallback))
	n, last, err := s.repo.UserActivity(ctx, userID, since)
	if err != nil {
		return UserActivity{}, err
	}
	return UserActivity{UserID: userID, CallsToday: n, DailyLimit: s.dailyLimit, LastCallAt: last}, nil
}
