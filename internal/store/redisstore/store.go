// Package redisstore holds the coordination keys shared by the api and
// worker processes: per-chat turn locks and webhook update dedupe.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func chatLockKey(chatID string) string    { return "chat:lock:" + chatID }
func updateSeenKey(updateID int64) string { return fmt.Sprintf("tg:update:%d", updateID) }

// AcquireChatLock takes the per-chat lock; at most one worker may process a
// given chat id at a time.
func (s *Store) AcquireChatLock(ctx context.Context, chatID string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, chatLockKey(chatID), 1, ttl).Result()
}

// WaitChatLock polls for the per-chat lock until acquired or ctx ends.
func (s *Store) WaitChatLock(ctx context.Context, chatID string, ttl, retryEvery time.Duration) error {
	for {
		ok, err := s.AcquireChatLock(ctx, chatID, ttl)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryEvery):
		}
	}
}

func (s *Store) ReleaseChatLock(ctx context.Context, chatID string) error {
	return s.rdb.Del(ctx, chatLockKey(chatID)).Err()
}

// SeenUpdate records a webhook update id and reports whether it was already
// accepted. Telegram redelivers updates until it gets a 200, so the webhook
// must drop repeats.
func (s *Store) SeenUpdate(ctx context.Context, updateID int64, ttl time.Duration) (bool, error) {
	fresh, err := s.rdb.SetNX(ctx, updateSeenKey(updateID), 1, ttl).Result()
	if err != nil {
		return false, err
	}
	return !fresh, nil
}

// ForgetUpdate releases an update id so a redelivery can be accepted again.
// Called when the webhook failed after marking the update seen; without the
// rollback the retried delivery would be dropped and the turn lost.
func (s *Store) ForgetUpdate(ctx context.Context, updateID int64) error {
	return s.rdb.Del(ctx, updateSeenKey(updateID)).Err()
}
