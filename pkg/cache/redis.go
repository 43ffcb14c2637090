package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisCache implementa un cache distribuito usando Redis.
// Tutte le chiavi sono prefissate con KeyPrefix.
type RedisCache struct {
	client *redis.Client
	prefix string

	mu    sync.Mutex
	stats CacheStats
}

// NewRedisCache crea il client e verifica la connessione
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Host,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Host, err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("db", cfg.DB).
		Str("prefix", cfg.KeyPrefix).
		Msg("Redis cache initialized")

	return &RedisCache{client: client, prefix: cfg.KeyPrefix}, nil
}

func (r *RedisCache) key(k string) string {
	return r.prefix + k
}

// Get recupera un valore da Redis
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		r.count(func(s *CacheStats) { s.Misses++ })
		return nil, ErrCacheMiss
	}
	if err != nil {
		r.count(func(s *CacheStats) { s.Misses++ })
		return nil, fmt.Errorf("redis get: %w", err)
	}

	r.count(func(s *CacheStats) { s.Hits++ })
	return val, nil
}

// Set salva un valore in Redis; ttl 0 non imposta scadenza
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	r.count(func(s *CacheStats) { s.Sets++ })
	return nil
}

// Delete rimuove un valore da Redis
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	r.count(func(s *CacheStats) { s.Deletes++ })
	return nil
}

// Clear rimuove tutte le chiavi con il prefisso della cache
func (r *RedisCache) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()

	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}

	log.Info().Str("prefix", r.prefix).Msg("Redis cache cleared")
	return nil
}

// Stats restituisce le statistiche
func (r *RedisCache) Stats() CacheStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Ping verifica la connessione a Redis
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close chiude la connessione Redis
func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) count(fn func(*CacheStats)) {
	r.mu.Lock()
	fn(&r.stats)
	r.mu.Unlock()
}
