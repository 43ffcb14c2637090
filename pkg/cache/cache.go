// Package cache fornisce la cache delle risposte di generazione,
// in memoria (LRU), su Redis o su entrambi i livelli.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Cache è l'interfaccia comune dei backend
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Stats() CacheStats
	Close() error
}

// CacheStats contiene statistiche sul cache
type CacheStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Sets      int64 `json:"sets"`
	Deletes   int64 `json:"deletes"`
	Evictions int64 `json:"evictions"`
	Size      int64 `json:"size"`
}

// HitRate calcola il tasso di hit del cache
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendTiered = "tiered"
)

var (
	ErrCacheMiss     = errors.New("cache miss")
	ErrInvalidConfig = errors.New("invalid cache configuration")
)

// Config configura la cache delle risposte
type Config struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	Backend    string        `yaml:"backend" mapstructure:"backend"`
	MaxEntries int           `yaml:"max_entries" mapstructure:"max_entries"`
	TTL        time.Duration `yaml:"ttl" mapstructure:"ttl"`
	Redis      RedisConfig   `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig contiene i parametri di connessione a Redis
type RedisConfig struct {
	Host      string `yaml:"host" mapstructure:"host"`
	Password  string `yaml:"password" mapstructure:"password"`
	DB        int    `yaml:"db" mapstructure:"db"`
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// DefaultConfig restituisce una configurazione di default
func DefaultConfig() Config {
	return Config{
		Enabled:    false,
		Backend:    BackendMemory,
		MaxEntries: 1000,
		TTL:        30 * time.Minute,
		Redis: RedisConfig{
			Host:      "localhost:6379",
			KeyPrefix: "goleapcode:",
		},
	}
}

// New costruisce il backend indicato dalla configurazione
func New(ctx context.Context, cfg Config) (Cache, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultConfig().MaxEntries
	}

	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryCache(cfg.MaxEntries, cfg.TTL), nil
	case BackendRedis:
		return NewRedisCache(ctx, cfg.Redis)
	case BackendTiered:
		redis, err := NewRedisCache(ctx, cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing with memory-only")
			return NewMemoryCache(cfg.MaxEntries, cfg.TTL), nil
		}
		return NewTieredCache(NewMemoryCache(cfg.MaxEntries, cfg.TTL), redis, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, cfg.Backend)
	}
}

// TieredCache legge prima dalla memoria e poi da Redis, scrive su entrambi
type TieredCache struct {
	memory *MemoryCache
	remote Cache
	ttl    time.Duration

	mu    sync.Mutex
	stats CacheStats
}

// NewTieredCache crea una cache a due livelli
func NewTieredCache(memory *MemoryCache, remote Cache, ttl time.Duration) *TieredCache {
	return &TieredCache{memory: memory, remote: remote, ttl: ttl}
}

// Get recupera un valore dal cache (memory first, poi Redis)
func (t *TieredCache) Get(ctx context.Context, key string) ([]byte, error) {
	if data, err := t.memory.Get(ctx, key); err == nil {
		t.count(func(s *CacheStats) { s.Hits++ })
		log.Debug().Str("key", key).Str("layer", "memory").Msg("Cache hit")
		return data, nil
	}

	data, err := t.remote.Get(ctx, key)
	if err != nil {
		t.count(func(s *CacheStats) { s.Misses++ })
		return nil, err
	}

	t.count(func(s *CacheStats) { s.Hits++ })
	log.Debug().Str("key", key).Str("layer", "redis").Msg("Cache hit")

	// promozione in memoria per le letture successive
	_ = t.memory.Set(ctx, key, data, t.ttl)
	return data, nil
}

// Set salva un valore in tutti i layer di cache
func (t *TieredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	t.count(func(s *CacheStats) { s.Sets++ })

	if err := t.memory.Set(ctx, key, value, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to set memory cache")
	}
	if err := t.remote.Set(ctx, key, value, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to set Redis cache")
	}
	return nil
}

// Delete rimuove un valore da tutti i layer
func (t *TieredCache) Delete(ctx context.Context, key string) error {
	t.count(func(s *CacheStats) { s.Deletes++ })
	_ = t.memory.Delete(ctx, key)
	return t.remote.Delete(ctx, key)
}

// Clear svuota tutti i layer di cache
func (t *TieredCache) Clear(ctx context.Context) error {
	_ = t.memory.Clear(ctx)
	return t.remote.Clear(ctx)
}

// Stats restituisce le statistiche aggregate
func (t *TieredCache) Stats() CacheStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.stats
	s.Size = t.memory.Stats().Size
	return s
}

// Close chiude entrambi i livelli
func (t *TieredCache) Close() error {
	return errors.Join(t.memory.Close(), t.remote.Close())
}

func (t *TieredCache) count(fn func(*CacheStats)) {
	t.mu.Lock()
	fn(&t.stats)
	t.mu.Unlock()
}

// HashKey genera un hash consistente per una chiave
func HashKey(parts ...interface{}) string {
	h := sha256.New()
	for _, part := range parts {
		data, _ := json.Marshal(part)
		h.Write(data)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// GetJSON legge e decodifica un valore JSON
func GetJSON(ctx context.Context, c Cache, key string, v interface{}) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// SetJSON codifica e salva un valore JSON
func SetJSON(ctx context.Context, c Cache, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return c.Set(ctx, key, data, ttl)
}
