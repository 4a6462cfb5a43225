package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-listings/models"
)

func TestLRUStoresCopies(t *testing.T) {
	ctx := context.Background()
	c, err := NewLRU(4)
	if err != nil {
		t.Fatalf("new lru: %v", err)
	}

	images := []models.ImageAsset{{URL: "http://example.test/a.jpg", IsPrimary: true}}
	if err := c.Set(ctx, "http://example.test/page.html", images); err != nil {
		t.Fatalf("set: %v", err)
	}
	images[0].URL = "mutated"

	got, ok, err := c.Get(ctx, "http://example.test/page.html")
	if err != nil || !ok {
		t.Fatalf("get = %v, %v", ok, err)
	}
	if got[0].URL != "http://example.test/a.jpg" {
		t.Fatalf("cached entry aliased caller slice: %q", got[0].URL)
	}
}

func TestLRURemembersEmptyPages(t *testing.T) {
	ctx := context.Background()
	c, err := NewLRU(4)
	if err != nil {
		t.Fatalf("new lru: %v", err)
	}
	if err := c.Set(ctx, "http://example.test/missing.html", nil); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, _ := c.Get(ctx, "http://example.test/missing.html")
	if !ok || len(got) != 0 {
		t.Fatalf("get = %v, %v; want empty hit", got, ok)
	}
	if _, ok, _ := c.Get(ctx, "http://example.test/other.html"); ok {
		t.Fatalf("unexpected hit")
	}
}

func TestLRUEvicts(t *testing.T) {
	ctx := context.Background()
	c, err := NewLRU(2)
	if err != nil {
		t.Fatalf("new lru: %v", err)
	}
	for _, key := range []string{"a", "b", "c"} {
		_ = c.Set(ctx, key, nil)
	}
	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
	if _, ok, _ := c.Get(ctx, "a"); ok {
		t.Fatalf("oldest entry should be evicted")
	}
}

func TestNewLRURejectsZeroSize(t *testing.T) {
	if _, err := NewLRU(0); err == nil {
		t.Fatalf("expected error for zero size")
	}
}

func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("LISTINGS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LISTINGS_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	c, err := NewRedis(ctx, RedisOptions{Addr: addr, TTL: time.Minute})
	if err != nil {
		t.Fatalf("new redis: %v", err)
	}
	defer c.Close()

	key := "http://example.test/redis-" + time.Now().Format(time.RFC3339Nano)
	images := []models.ImageAsset{{URL: "http://example.test/a.jpg", IsPrimary: true}}
	if err := c.Set(ctx, key, images); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok || len(got) != 1 || got[0].URL != images[0].URL {
		t.Fatalf("get = %+v, %v, %v", got, ok, err)
	}
}
