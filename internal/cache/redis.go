// Package cache keeps the latest pool listing and account ranking in Redis so the API and
// short-lived commands can read them without going back to the chain.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/burrowland/liquidator/internal/logger"
	"github.com/burrowland/liquidator/internal/types"
	"github.com/redis/go-redis/v9"
)

const (
	poolsKey   = "liquidator:pools"
	rankingKey = "liquidator:ranking"

	// PoolsTTL bounds how long a pool listing is trusted for routing.
	PoolsTTL = 2 * time.Minute
	// RankingTTL keeps the ranking around for a few missed cycles.
	RankingTTL = 10 * time.Minute
)

var ErrCacheMiss = errors.New("cache miss")

// Ranking is the cached result of the latest scan.
type Ranking struct {
	UpdatedAt time.Time              `json:"updated_at"`
	Accounts  []types.AccountSummary `json:"accounts"`
}

// PoolSnapshot is the cached exchange listing.
type PoolSnapshot struct {
	UpdatedAt time.Time       `json:"updated_at"`
	Pools     []types.RawPool `json:"pools"`
}

// RedisCache wraps the Redis client
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache connection
func NewRedisCache(ctx context.Context, addr string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log := logger.GetForComponent("cache")
	log.Info().Str("addr", addr).Msg("Connected to Redis")
	return &RedisCache{client: client}, nil
}

// New wraps an existing client.
func New(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Ping checks if Redis is reachable
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) setJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (r *RedisCache) getJSON(ctx context.Context, key string, out interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

// SetPools stores the exchange's pool listing.
func (r *RedisCache) SetPools(ctx context.Context, pools []types.RawPool) error {
	return r.setJSON(ctx, poolsKey, PoolSnapshot{UpdatedAt: time.Now().UTC(), Pools: pools}, PoolsTTL)
}

// GetPools returns the cached pool listing or ErrCacheMiss.
func (r *RedisCache) GetPools(ctx context.Context) (PoolSnapshot, error) {
	var snap PoolSnapshot
	if err := r.getJSON(ctx, poolsKey, &snap); err != nil {
		return PoolSnapshot{}, err
	}
	return snap, nil
}

// SetRanking stores the latest account ranking, most at risk first.
func (r *RedisCache) SetRanking(ctx context.Context, accounts []types.AccountSummary) error {
	return r.setJSON(ctx, rankingKey, Ranking{UpdatedAt: time.Now().UTC(), Accounts: accounts}, RankingTTL)
}

// GetRanking returns the cached ranking or ErrCacheMiss.
func (r *RedisCache) GetRanking(ctx context.Context) (Ranking, error) {
	var ranking Ranking
	if err := r.getJSON(ctx, rankingKey, &ranking); err != nil {
		return Ranking{}, err
	}
	return ranking, nil
}
