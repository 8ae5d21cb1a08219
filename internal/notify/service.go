package notify

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const unreadCacheTTL = 5 * time.Minute

// Service is the recipient-facing read side: listing, unread badge count,
// and marking as read. The unread count is cached in Redis and invalidated
// by the dispatcher and by mark-read calls.
type Service struct {
	repo   Repository
	cache  *redis.Client
	logger *slog.Logger
}

// NewService constructs the notification service.
func NewService(repo Repository, cache *redis.Client, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

// List returns the recipient's notifications, newest first.
func (s *Service) List(ctx context.Context, recipientID int64, limit, offset int) ([]Notification, error) {
	return s.repo.ListByRecipient(ctx, recipientID, limit, offset)
}

// UnreadCount returns the recipient's unread badge count, served from cache
// when possible. Cache failures fall through to the database.
func (s *Service) UnreadCount(ctx context.Context, recipientID int64) (int64, error) {
	key := unreadCacheKey(recipientID)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key).Result(); err == nil {
			if count, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
				return count, nil
			}
		}
	}
	count, err := s.repo.UnreadCount(ctx, recipientID)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, strconv.FormatInt(count, 10), unreadCacheTTL).Err(); err != nil {
			s.logger.Warn("cache unread count", slog.Int64("recipient_id", recipientID), slog.Any("error", err))
		}
	}
	return count, nil
}

// MarkRead flags one notification as read. Recipients can only touch their
// own rows.
func (s *Service) MarkRead(ctx context.Context, recipientID, id int64) error {
	if err := s.repo.MarkRead(ctx, recipientID, id); err != nil {
		return err
	}
	s.invalidate(ctx, recipientID)
	return nil
}

// MarkAllRead clears the recipient's unread backlog.
func (s *Service) MarkAllRead(ctx context.Context, recipientID int64) error {
	if err := s.repo.MarkAllRead(ctx, recipientID); err != nil {
		return err
	}
	s.invalidate(ctx, recipientID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, recipientID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, unreadCacheKey(recipientID)).Err(); err != nil {
		s.logger.Warn("invalidate unread cache", slog.Int64("recipient_id", recipientID), slog.Any("error", err))
	}
}
