package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-call-router/internal/repo"
)

// purgeDeliveries drops expired webhook delivery rows every purgeInterval
// until ctx is cancelled.
func purgeDeliveries(ctx context.Context, db *gorm.DB, logger zerolog.Logger) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeWebhookDeliveries(ctx, db, now.UTC())
			if err != nil {
				logger.Warn().Err(err).Msg("purge webhook deliveries")
				continue
			}
			if n > 0 {
				logger.Debug().Int64("rows", n).Msg("purged webhook deliveries")
			}
		}
	}
}
