// Package memory implementa cache.Client in-process.
package memory

import (
	"context"
	"time"

	"github.com/dropDatabas3/dramgate/internal/cache"
	gocache "github.com/patrickmn/go-cache"
)

type client struct{ c *gocache.Cache }

// New crea un cache en memoria con TTL por defecto.
func New(defaultTTL time.Duration) cache.Client {
	return &client{c: gocache.New(defaultTTL, time.Minute)}
}

func (m *client) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return "", cache.ErrNotFound
	}
	s, _ := v.(string)
	return s, nil
}

func (m *client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(key, value, ttl)
	return nil
}

func (m *client) Delete(ctx context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

func (m *client) Ping(ctx context.Context) error { return nil }

func (m *client) Close() error { return nil }
