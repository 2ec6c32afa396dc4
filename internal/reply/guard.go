package reply

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmynk/lineledger/internal/clock"
)

// Guard hands out one-time claims on keys. The first Claim of a key within
// its TTL wins; later claims return false.
type Guard interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// MemoryGuard is a Guard for a single process.
type MemoryGuard struct {
	mu      sync.Mutex
	clock   clock.Clock
	expires map[string]time.Time
}

// NewMemoryGuard creates an empty MemoryGuard.
func NewMemoryGuard(clk clock.Clock) *MemoryGuard {
	return &MemoryGuard{clock: clk, expires: make(map[string]time.Time)}
}

func (g *MemoryGuard) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	if exp, ok := g.expires[key]; ok && now.Before(exp) {
		return false, nil
	}
	g.expires[key] = now.Add(ttl)

	// sweep
	if len(g.expires) > 1024 {
		for k, exp := range g.expires {
			if !now.Before(exp) {
				delete(g.expires, k)
			}
		}
	}
	return true, nil
}

// RedisGuard is a Guard shared by every replica through Redis SET NX.
type RedisGuard struct {
	client *redis.Client
	prefix string
}

// NewRedisGuard creates a RedisGuard. Keys are stored under prefix.
func NewRedisGuard(client *redis.Client, prefix string) *RedisGuard {
	return &RedisGuard{client: client, prefix: prefix}
}

func (g *RedisGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim %s: %w", key, err)
	}
	return ok, nil
}

// ConnectRedis parses a redis:// URL (or a bare host:port), connects and
// pings the server.
func ConnectRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		opt = &redis.Options{Addr: rawURL}
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}
