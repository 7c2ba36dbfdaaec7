package api

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestDeduper(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *redis.Client, *RedisDeduper) {
	t.Helper()
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		if cerr := client.Close(); cerr != nil {
			t.Logf("redis close: %v", cerr)
		}
	})
	return m, client, NewRedisDeduper(client, ttl)
}

func TestRedisDeduperRejectsDuplicates(t *testing.T) {
	_, _, deduper := newTestDeduper(t, time.Minute)
	ctx := context.Background()

	added, err := deduper.Add(ctx, "k1")
	if err != nil || !added {
		t.Fatalf("expected first add to succeed, added=%v err=%v", added, err)
	}
	added, err = deduper.Add(ctx, "k1")
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if added {
		t.Fatalf("expected duplicate key to be rejected")
	}
}

func TestRedisDeduperRemoveAllowsRetry(t *testing.T) {
	_, _, deduper := newTestDeduper(t, time.Minute)
	ctx := context.Background()

	if _, err := deduper.Add(ctx, "k1"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := deduper.Remove(ctx, "k1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	added, err := deduper.Add(ctx, "k1")
	if err != nil || !added {
		t.Fatalf("expected key to be reusable after remove, added=%v err=%v", added, err)
	}
}

func TestRedisDeduperKeyNamespacingAndTTL(t *testing.T) {
	m, client, deduper := newTestDeduper(t, time.Hour)
	ctx := context.Background()

	if _, err := deduper.Add(ctx, "k1"); err != nil {
		t.Fatalf("add: %v", err)
	}
	expectedKey := dedupeKeyPrefix + ":k1"
	exists, err := client.Exists(ctx, expectedKey).Result()
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists != 1 {
		t.Fatalf("expected redis key %q to exist", expectedKey)
	}
	if ttl := m.TTL(expectedKey); ttl != time.Hour {
		t.Fatalf("unexpected ttl: %v", ttl)
	}

	m.FastForward(2 * time.Hour)
	added, err := deduper.Add(ctx, "k1")
	if err != nil || !added {
		t.Fatalf("expected expired key to be reusable, added=%v err=%v", added, err)
	}
}
