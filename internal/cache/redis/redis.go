// Package redis implementa cache.Client sobre Redis.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/dramgate/internal/cache"
	goredis "github.com/redis/go-redis/v9"
)

// Config para el cliente Redis.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type client struct {
	rdb    *goredis.Client
	prefix string
}

// New crea un cache.Client sobre Redis.
func New(cfg Config) cache.Client {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &client{rdb: rdb, prefix: cfg.Prefix}
}

func (c *client) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *client) Get(ctx context.Context, key string) (string, error) {
	v, err := c.rdb.Get(ctx, c.key(key)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", cache.ErrNotFound
		}
		return "", err
	}
	return v, nil
}

func (c *client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.key(key), value, ttl).Err()
}

func (c *client) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, c.key(key)).Err()
}

func (c *client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *client) Close() error {
	return c.rdb.Close()
}
