package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const cleanupInterval = time.Minute

// MemoryCache implementa un cache in-memory con LRU eviction
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	lru        *list.List
	maxEntries int
	defaultTTL time.Duration
	stats      CacheStats

	stop      chan struct{}
	closeOnce sync.Once
}

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time // zero = nessuna scadenza
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemoryCache crea un nuovo cache in-memory. Close ferma la pulizia periodica.
func NewMemoryCache(maxEntries int, defaultTTL time.Duration) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultConfig().MaxEntries
	}

	mc := &MemoryCache{
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		maxEntries: maxEntries,
		defaultTTL: defaultTTL,
		stop:       make(chan struct{}),
	}

	go mc.cleanupLoop()

	return mc
}

// Get recupera un valore dal cache
func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, exists := m.entries[key]
	if !exists {
		m.stats.Misses++
		return nil, ErrCacheMiss
	}

	entry := elem.Value.(*memoryEntry)
	if entry.expired(time.Now()) {
		m.removeElement(elem)
		m.stats.Misses++
		return nil, ErrCacheMiss
	}

	m.lru.MoveToFront(elem)
	m.stats.Hits++

	return append([]byte(nil), entry.value...), nil
}

// Set salva un valore nel cache; ttl 0 usa il default
func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ttl == 0 {
		ttl = m.defaultTTL
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	value = append([]byte(nil), value...)

	m.stats.Sets++

	if elem, exists := m.entries[key]; exists {
		entry := elem.Value.(*memoryEntry)
		m.stats.Size += int64(len(value) - len(entry.value))
		entry.value = value
		entry.expiresAt = expiresAt
		m.lru.MoveToFront(elem)
		return nil
	}

	if m.lru.Len() >= m.maxEntries {
		m.evictOldest()
	}

	elem := m.lru.PushFront(&memoryEntry{key: key, value: value, expiresAt: expiresAt})
	m.entries[key] = elem
	m.stats.Size += int64(len(value))

	return nil
}

// Delete rimuove un valore dal cache
func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, exists := m.entries[key]; exists {
		m.removeElement(elem)
		m.stats.Deletes++
	}
	return nil
}

// Clear svuota il cache
func (m *MemoryCache) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*list.Element)
	m.lru.Init()
	m.stats.Size = 0
	return nil
}

// Stats restituisce le statistiche
func (m *MemoryCache) Stats() CacheStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Len restituisce il numero di entry nel cache
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

// Close ferma la goroutine di pulizia
func (m *MemoryCache) Close() error {
	m.closeOnce.Do(func() { close(m.stop) })
	return nil
}

func (m *MemoryCache) evictOldest() {
	if elem := m.lru.Back(); elem != nil {
		m.removeElement(elem)
		m.stats.Evictions++
	}
}

func (m *MemoryCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	delete(m.entries, entry.key)
	m.lru.Remove(elem)
	m.stats.Size -= int64(len(entry.value))
}

func (m *MemoryCache) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.removeExpired()
		}
	}
}

func (m *MemoryCache) removeExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for elem := m.lru.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*memoryEntry).expired(now) {
			m.removeElement(elem)
		}
		elem = prev
	}
}
