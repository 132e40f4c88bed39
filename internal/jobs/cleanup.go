package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"schoolhub/internal/config"
	"schoolhub/internal/logger"
)

// usedTokenRetention is how long consumed reset tokens are kept.
const usedTokenRetention = 24 * time.Hour

type CleanupStore interface {
	DeleteStalePasswordResetTokens(ctx context.Context, now, usedBefore time.Time) (int64, error)
	DeleteStaleRefreshSessions(ctx context.Context, now time.Time) (int64, error)
}

// Cleanup removes expired credentials in one pass and returns how many reset
// tokens and refresh sessions were deleted.
func Cleanup(ctx context.Context, store CleanupStore, now time.Time) (tokens, sessions int64, err error) {
	tokens, err = store.DeleteStalePasswordResetTokens(ctx, now, now.Add(-usedTokenRetention))
	if err != nil {
		return 0, 0, err
	}
	sessions, err = store.DeleteStaleRefreshSessions(ctx, now)
	if err != nil {
		return tokens, 0, err
	}
	return tokens, sessions, nil
}

func StartCleanupJob(ctx context.Context, cfg config.Config, store CleanupStore) {
	log := logger.Default().WithField("job", "cleanup")
	if !cfg.CleanupJobEnabled {
		log.Info("cleanup job disabled")
		return
	}
	interval := cfg.CleanupJobInterval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
				tokens, sessions, err := Cleanup(tickCtx, store, time.Now().UTC())
				cancel()
				if err != nil {
					log.WithError(err).Error("cleanup failed")
					continue
				}
				if tokens > 0 || sessions > 0 {
					log.WithFields(logrus.Fields{
						"resetTokens":     tokens,
						"refreshSessions": sessions,
					}).Info("cleanup removed expired credentials")
				}
			}
		}
	}()
}
