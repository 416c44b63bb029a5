package driver

import "time"

// KeyValueDB define a key-value storage interface
type KeyValueDB interface {
	SetEX(key string, value string, expiration time.Duration) error
	// Get returns ErrKeyNotFound when key is absent
	Get(key string) (string, error)
	Exists(key string) (bool, error)
	Del(keys ...string) error
	Ping() error
}
