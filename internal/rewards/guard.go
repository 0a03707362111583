package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/surveycash/surveycash-backend/pkg/logger"
	"github.com/surveycash/surveycash-backend/pkg/redis"
)

const guardScope = "postback"

// GuardedApplier short-circuits redelivered callbacks with a Redis SETNX
// before touching the database. The database unique key stays
// authoritative; the marker is only kept once an outcome is settled.
type GuardedApplier struct {
	next  Applier
	store redis.IdempotencyStore
	ttl   time.Duration
	logg  *logger.Logger
}

func NewGuardedApplier(next Applier, store redis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) (*GuardedApplier, error) {
	if next == nil {
		return nil, errors.New("applier is required")
	}
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &GuardedApplier{next: next, store: store, ttl: ttl, logg: logg}, nil
}

func (g *GuardedApplier) Apply(ctx context.Context, cb Callback) (Result, error) {
	key := g.store.IdempotencyKey(guardScope, guardID(cb))
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		// Redis is an optimization; fall through to the database.
		g.warn(ctx, key, fmt.Errorf("set idempotency key: %w", err))
		return g.next.Apply(ctx, cb)
	}
	if !set {
		return Result{Outcome: OutcomeDuplicate, Direction: cb.Direction}, nil
	}

	result, err := g.next.Apply(ctx, cb)
	if err != nil || !result.Outcome.Settled() {
		if delErr := g.store.Del(ctx, key); delErr != nil {
			g.warn(ctx, key, fmt.Errorf("release idempotency key: %w", delErr))
		}
	}
	return result, err
}

func (g *GuardedApplier) warn(ctx context.Context, key string, err error) {
	if g.logg == nil {
		return
	}
	g.logg.Warn(g.logg.WithFields(ctx, map[string]any{"key": key, "error": err.Error()}), "postback idempotency guard degraded")
}

func guardID(cb Callback) string {
	return cb.Key() + ":" + string(cb.Direction)
}
