package driver

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultCleanupInterval how often expired keys are swept from MemoryKV
const DefaultCleanupInterval = time.Minute

// MemoryKV process local KeyValueDB for single node deployments without redis
type MemoryKV struct {
	cache *cache.Cache
}

var _ KeyValueDB = &MemoryKV{}

func NewMemoryKV() *MemoryKV {
	return NewMemoryKVWithCleanup(DefaultCleanupInterval)
}

// NewMemoryKVWithCleanup expired keys are evicted every interval, interval <= 0 disables the janitor
func NewMemoryKVWithCleanup(interval time.Duration) *MemoryKV {
	return &MemoryKV{cache: cache.New(cache.NoExpiration, interval)}
}

// SetEX implement KeyValueDB, expiration <= 0 keeps the key forever
func (m *MemoryKV) SetEX(key string, value string, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = cache.NoExpiration
	}
	m.cache.Set(key, value, expiration)
	return nil
}

func (m *MemoryKV) Get(key string) (string, error) {
	if v, ok := m.cache.Get(key); ok {
		return v.(string), nil
	}
	return "", ErrKeyNotFound
}

func (m *MemoryKV) Exists(key string) (bool, error) {
	_, ok := m.cache.Get(key)
	return ok, nil
}

func (m *MemoryKV) Del(keys ...string) error {
	for _, key := range keys {
		m.cache.Delete(key)
	}
	return nil
}

func (m *MemoryKV) Ping() error {
	return nil
}

// Len number of stored keys, including expired ones the janitor has not swept yet
func (m *MemoryKV) Len() int {
	return m.cache.ItemCount()
}
