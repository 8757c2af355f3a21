// Package cache provides a Redis read-through cache for access records
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/entitlement-engine/go-core/internal/lifecycle"
	"github.com/entitlement-engine/go-core/pkg/types"
)

// Config configures the record cache
type Config struct {
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration
	KeyPrefix string
}

// DefaultConfig returns a default record cache configuration
func DefaultConfig() Config {
	return Config{
		Addr:      "localhost:6379",
		TTL:       5 * time.Minute,
		KeyPrefix: "entitlement:record:",
	}
}

// RecordCache wraps a lifecycle.Store with a Redis read-through cache.
// Creates and updates pass through to the inner store and invalidate the
// cached entry, so the cache never serves a superseded record past its TTL.
// The lifecycle semantics live entirely in the inner store.
type RecordCache struct {
	client redis.UniversalClient
	inner  lifecycle.Store
	config Config
	logger *zap.Logger
}

// New creates a record cache in front of a persistence store
func New(cfg Config, inner lifecycle.Store, logger *zap.Logger) (*RecordCache, error) {
	if inner == nil {
		return nil, errors.New("inner store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL == 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "entitlement:record:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RecordCache{
		client: client,
		inner:  inner,
		config: cfg,
		logger: logger,
	}, nil
}

// NewWithClient creates a record cache over an existing Redis client
func NewWithClient(client redis.UniversalClient, cfg Config, inner lifecycle.Store, logger *zap.Logger) (*RecordCache, error) {
	cache, err := New(cfg, inner, logger)
	if err != nil {
		return nil, err
	}
	cache.client = client
	return cache, nil
}

// LoadCurrent retrieves the account's current access record, consulting the
// cache first. Cache failures degrade to the inner store.
func (c *RecordCache) LoadCurrent(ctx context.Context, accountID string) (*types.AccessRecord, error) {
	key := c.key(accountID)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		record := &types.AccessRecord{}
		if err := json.Unmarshal(data, record); err == nil {
			return record, nil
		}
		c.logger.Warn("Corrupt cache entry, falling through", zap.String("key", key))
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("Record cache read failed", zap.Error(err))
	}

	record, err := c.inner.LoadCurrent(ctx, accountID)
	if err != nil {
		return nil, err
	}

	c.set(ctx, key, record)
	return record, nil
}

// Create passes through to the inner store and invalidates the cache entry
func (c *RecordCache) Create(ctx context.Context, record *types.AccessRecord) error {
	if err := c.inner.Create(ctx, record); err != nil {
		return err
	}
	c.invalidate(ctx, record.AccountID)
	return nil
}

// Update passes through to the inner store and invalidates the cache entry
func (c *RecordCache) Update(ctx context.Context, record *types.AccessRecord) error {
	if err := c.inner.Update(ctx, record); err != nil {
		return err
	}
	c.invalidate(ctx, record.AccountID)
	return nil
}

// Close releases the Redis client
func (c *RecordCache) Close() error {
	return c.client.Close()
}

func (c *RecordCache) key(accountID string) string {
	return fmt.Sprintf("%s%s", c.config.KeyPrefix, accountID)
}

func (c *RecordCache) set(ctx context.Context, key string, record *types.AccessRecord) {
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		c.logger.Warn("Record cache write failed", zap.Error(err))
	}
}

func (c *RecordCache) invalidate(ctx context.Context, accountID string) {
	if err := c.client.Del(ctx, c.key(accountID)).Err(); err != nil {
		c.logger.Warn("Record cache invalidation failed",
			zap.String("account_id", accountID),
			zap.Error(err),
		)
	}
}
