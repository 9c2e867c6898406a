// Package redis implements the hot leaderboard cache for the civic
// simulation engine. A single sorted set maps userID to accumulated points;
// the durable source of truth stays in the activity log.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	// Host is the Redis server hostname.
	Host string

	// Port is the Redis server port.
	Port int

	// Password is the Redis authentication password (empty if no auth).
	Password string

	// DB is the Redis database number (0-15).
	DB int

	// PoolSize is the maximum number of socket connections.
	PoolSize int

	// MinIdleConns is the minimum number of idle connections.
	MinIdleConns int

	// DialTimeout is the timeout for establishing new connections.
	DialTimeout time.Duration

	// ReadTimeout is the timeout for socket reads.
	ReadTimeout time.Duration

	// WriteTimeout is the timeout for socket writes.
	WriteTimeout time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Addr returns the Redis address in "host:port" format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewClient creates a Redis client and verifies the connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: failed to ping server: %w", err)
	}

	return client, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// ErrNotRanked is returned when the user has no leaderboard entry yet.
var ErrNotRanked = errors.New("leaderboard_cache: user not ranked")

// keyLeaderboardPoints is the sorted set mapping userID to points.
const keyLeaderboardPoints = "leaderboard:points"

// RankedUser is one leaderboard row.
type RankedUser struct {
	UserID string `json:"user_id"`
	Points int64  `json:"points"`
	Rank   int64  `json:"rank"`
}

// LeaderboardCache accumulates reward points in a Redis sorted set.
// All writes come from the reward flow and are best-effort; a lost update
// only leaves the leaderboard stale until the next completion.
type LeaderboardCache struct {
	client *redis.Client
}

// NewLeaderboardCache creates a new LeaderboardCache instance.
func NewLeaderboardCache(client *redis.Client) *LeaderboardCache {
	return &LeaderboardCache{client: client}
}

// AddPoints increments the user's score by the points just awarded.
func (c *LeaderboardCache) AddPoints(ctx context.Context, userID string, points int) error {
	if err := c.client.ZIncrBy(ctx, keyLeaderboardPoints, float64(points), userID).Err(); err != nil {
		return fmt.Errorf("leaderboard_cache: failed to add points: %w", err)
	}
	return nil
}

// Top returns the highest-scoring users, best first.
func (c *LeaderboardCache) Top(ctx context.Context, limit int) ([]RankedUser, error) {
	if limit <= 0 {
		limit = 10
	}

	entries, err := c.client.ZRevRangeWithScores(ctx, keyLeaderboardPoints, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard_cache: failed to read top: %w", err)
	}

	users := make([]RankedUser, 0, len(entries))
	for i, e := range entries {
		id, ok := e.Member.(string)
		if !ok {
			continue
		}
		users = append(users, RankedUser{
			UserID: id,
			Points: int64(e.Score),
			Rank:   int64(i + 1),
		})
	}
	return users, nil
}

// Rank returns the user's 1-based position.
func (c *LeaderboardCache) Rank(ctx context.Context, userID string) (int64, error) {
	rank, err := c.client.ZRevRank(ctx, keyLeaderboardPoints, userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNotRanked
		}
		return 0, fmt.Errorf("leaderboard_cache: failed to read rank: %w", err)
	}
	return rank + 1, nil
}

// Reset drops the whole leaderboard. Used by seasonal resets and tests.
func (c *LeaderboardCache) Reset(ctx context.Context) error {
	if err := c.client.Del(ctx, keyLeaderboardPoints).Err(); err != nil {
		return fmt.Errorf("leaderboard_cache: failed to reset: %w", err)
	}
	return nil
}
