package store

import (
	"context"
	"errors"
	"fmt"
)

var ErrSessionNotFound = errors.New("session not found")

// Store persists session records keyed by their hashed identifier.
// Implementations must make each call atomic for a single key. Expired
// records may be returned; callers check ExpiresAt.
type Store interface {
	Get(ctx context.Context, id string) (*Record, error)
	Set(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id string) error
	Close() error
}

type Config struct {
	Driver        string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(cfg.SQLitePath)
	case "redis":
		return NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unknown session store driver %q", cfg.Driver)
	}
}
