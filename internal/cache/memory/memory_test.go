package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/dropDatabas3/dramgate/internal/cache"
	"github.com/dropDatabas3/dramgate/internal/cache/memory"
)

func TestMemoryCache_SetGetDelete(t *testing.T) {
	c := memory.New(time.Minute)
	ctx := context.Background()

	if _, err := c.Get(ctx, "missing"); !cache.IsNotFound(err) {
		t.Fatalf("Get(missing) = %v, want ErrNotFound", err)
	}

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err := c.Get(ctx, "k")
	if err != nil || v != "v" {
		t.Fatalf("Get = %q, %v", v, err)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !cache.IsNotFound(err) {
		t.Fatalf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	c := memory.New(time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "efimera", "v", 20*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(60 * time.Millisecond)

	if _, err := c.Get(ctx, "efimera"); !cache.IsNotFound(err) {
		t.Fatalf("expired key returned %v, want ErrNotFound", err)
	}
}

func TestMemoryCache_ZeroTTLNeverExpires(t *testing.T) {
	c := memory.New(10 * time.Millisecond)
	ctx := context.Background()

	if err := c.Set(ctx, "fija", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	if v, err := c.Get(ctx, "fija"); err != nil || v != "v" {
		t.Fatalf("Get = %q, %v", v, err)
	}
}
