package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

// Store holds one JSON document. Keys are gjson/sjson paths into it.
type Store interface {
	Set(ctx context.Context, key string, value interface{}) error
	SetRaw(ctx context.Context, key string, raw []byte) error
	Get(ctx context.Context, key string) ([]byte, error)

	Restore(values []byte) error
	Backup() ([]byte, error)

	Close() error
}
