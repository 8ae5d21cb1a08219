package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// expireBatchSize bounds how many offers one sweep run touches.
const expireBatchSize = 200

// OfferExpirer moves overdue sent offers to expired.
type OfferExpirer interface {
	ExpireDue(ctx context.Context, limit int) (int, error)
}

// NewOffersExpireHandler processes TaskOffersExpire tasks.
func NewOffersExpireHandler(expirer OfferExpirer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		expired, err := expirer.ExpireDue(ctx, expireBatchSize)
		if err != nil {
			logger.Error("offer expiry sweep", slog.Any("error", err))
			return err
		}
		if expired > 0 {
			logger.Info("offer expiry sweep", slog.Int("expired", expired))
		}
		return nil
	}
}
