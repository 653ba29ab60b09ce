package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var errStoreClosed = errors.New("store is closed")

type InmemoryStore struct {
	mu     sync.RWMutex
	values []byte

	// stop will be closed when Close() is called
	stop     chan struct{}
	stopOnce sync.Once
}

func NewInmemoryStore() *InmemoryStore {
	return &InmemoryStore{
		values: []byte("{}"),
		stop:   make(chan struct{}),
	}
}

func (i *InmemoryStore) Close() error {
	i.stopOnce.Do(func() {
		close(i.stop)
	})

	return nil
}

func (i *InmemoryStore) Set(ctx context.Context, key string, value interface{}) error {
	return i.update(key, func(values []byte) ([]byte, error) {
		return sjson.SetBytes(values, key, value)
	})
}

// SetRaw stores raw, which must already be valid JSON, under key.
func (i *InmemoryStore) SetRaw(ctx context.Context, key string, raw []byte) error {
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("value for %q is not valid JSON", key)
	}

	return i.update(key, func(values []byte) ([]byte, error) {
		return sjson.SetRawBytes(values, key, raw)
	})
}

func (i *InmemoryStore) update(key string, set func([]byte) ([]byte, error)) error {
	if !i.isRunning() {
		return errStoreClosed
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	values, err := set(i.values)
	if err != nil {
		return fmt.Errorf("setting %q: %w", key, err)
	}

	i.values = values

	return nil
}

// Get returns the raw JSON stored at key.
func (i *InmemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	result := gjson.GetBytes(i.values, key)
	if !result.Exists() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	// Copy out, later writes may reuse the document's memory.
	return []byte(result.Raw), nil
}

func (i *InmemoryStore) Restore(values []byte) error {
	if !gjson.ValidBytes(values) {
		return errors.New("backup is not valid JSON")
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.values = append([]byte(nil), values...)

	return nil
}

func (i *InmemoryStore) Backup() ([]byte, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return append([]byte(nil), i.values...), nil
}

// isRunning returns true if Close has not been called
func (i *InmemoryStore) isRunning() bool {
	select {
	case <-i.stop:
		return false

	default:
		return true
	}
}

var _ Store = (*InmemoryStore)(nil)
