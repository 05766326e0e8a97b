package calls

import (
	"context"
	"log/slog"
	"time"
)

// RunStaleSweeper fails stale started calls every interval until ctx is done.
func (s *Service) RunStaleSweeper(ctx context.Context, log *slog.Logger, every, olderThan time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n, err := s.FailStale(ctx, olderThan)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Error("stale call sweep failed", "err", err)
				continue
			}
			if n > 0 {
				log.Info("stale calls failed", "count", n, "older_than", olderThan.String())
			}
		}
	}
}
