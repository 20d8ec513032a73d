// Package analytics keeps lightweight per-owner daily counters in Redis.
// Counters are best-effort: a Redis outage never affects executions or
// alert delivery.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/finbeat/finbeat/internal/domain"
)

type RedisSink struct {
	client *redis.Client
	config domain.AnalyticsConfig
	clock  func() time.Time
}

func NewRedisSink(client *redis.Client, config domain.AnalyticsConfig) *RedisSink {
	return &RedisSink{
		client: client,
		config: config,
		clock:  time.Now,
	}
}

// Observe counts one executed transaction for the owner's daily bucket.
// It implements the executor's TransactionObserver hook and never fails
// the run.
func (s *RedisSink) Observe(ctx context.Context, tx domain.Transaction) {
	if !s.config.Enabled {
		return
	}

	key := executionKey(tx.OwnerID, tx.ExecutionDate)
	if err := s.increment(ctx, key); err != nil {
		log.Printf("analytics: record execution owner=%d: %v", tx.OwnerID, err)
	}
}

// RecordAlert counts one emitted alert per owner, kind and day.
func (s *RedisSink) RecordAlert(ctx context.Context, event domain.NotificationEvent) {
	if !s.config.Enabled {
		return
	}

	key := alertKey(event.OwnerID, event.Kind, event.CreatedAt)
	if err := s.increment(ctx, key); err != nil {
		log.Printf("analytics: record alert owner=%d kind=%s: %v", event.OwnerID, event.Kind, err)
	}
}

func (s *RedisSink) increment(ctx context.Context, key string) error {
	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.config.Retention)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

func executionKey(ownerID int64, day time.Time) string {
	return fmt.Sprintf("o:%d:exec:%s", ownerID, dayBucket(day))
}

func alertKey(ownerID int64, kind domain.AlertKind, day time.Time) string {
	return fmt.Sprintf("o:%d:alert:%s:%s", ownerID, kind, dayBucket(day))
}

func dayBucket(t time.Time) string {
	return t.UTC().Format("20060102")
}
