package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// AdminDirectory resolves the administrator recipient set. Backed by the
// users repository.
type AdminDirectory interface {
	ListAdministratorIDs(ctx context.Context) ([]int64, error)
}

// Dispatcher turns a committed status event into one notification row per
// recipient. Runs on the worker, not in the request path.
type Dispatcher struct {
	repo   Repository
	admins AdminDirectory
	cache  *redis.Client
	logger *slog.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(repo Repository, admins AdminDirectory, cache *redis.Client, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{repo: repo, admins: admins, cache: cache, logger: logger}
}

// Dispatch resolves the recipient set and message template for the event's
// status and writes one notification per recipient. Recipients are fanned out
// concurrently; a failure for one recipient does not stop the others, and the
// first error is returned so the queue can retry.
func (d *Dispatcher) Dispatch(ctx context.Context, evt Event) error {
	tpl, ok := templates[evt.Status]
	if !ok {
		return nil
	}

	var recipients []int64
	switch tpl.Audience {
	case audienceTrader:
		recipients = []int64{evt.TraderID}
	case audienceAdmins:
		ids, err := d.admins.ListAdministratorIDs(ctx)
		if err != nil {
			return fmt.Errorf("resolve administrators: %w", err)
		}
		recipients = ids
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, recipientID := range recipients {
		recipientID := recipientID
		g.Go(func() error {
			_, err := d.repo.Insert(ctx, Notification{
				RecipientID: recipientID,
				Category:    tpl.Category,
				Title:       tpl.Title,
				Body:        tpl.Body(printer, evt),
				InquiryID:   evt.InquiryID,
			})
			if err != nil {
				return fmt.Errorf("insert notification for %d: %w", recipientID, err)
			}
			d.invalidateUnread(ctx, recipientID)
			return nil
		})
	}
	return g.Wait()
}

func (d *Dispatcher) invalidateUnread(ctx context.Context, recipientID int64) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Del(ctx, unreadCacheKey(recipientID)).Err(); err != nil {
		d.logger.Warn("invalidate unread cache",
			slog.Int64("recipient_id", recipientID), slog.Any("error", err))
	}
}

func unreadCacheKey(recipientID int64) string {
	return fmt.Sprintf("notify:unread:%d", recipientID)
}
