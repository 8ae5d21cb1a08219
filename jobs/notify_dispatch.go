package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/stashspace/stashspace/internal/notify"
)

// Dispatcher fans one status event out to its recipients.
type Dispatcher interface {
	Dispatch(ctx context.Context, evt notify.Event) error
}

// NewNotifyDispatchHandler processes TaskNotifyDispatch tasks.
func NewNotifyDispatchHandler(dispatcher Dispatcher, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var evt notify.Event
		if err := json.Unmarshal(t.Payload(), &evt); err != nil {
			logger.Error("notify dispatch: bad payload", slog.Any("error", err))
			return asynq.SkipRetry
		}
		if err := dispatcher.Dispatch(ctx, evt); err != nil {
			logger.Error("notify dispatch",
				slog.Int64("inquiry_id", evt.InquiryID),
				slog.String("status", string(evt.Status)),
				slog.Any("error", err))
			return err
		}
		return nil
	}
}
