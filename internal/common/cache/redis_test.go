package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c, err := NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("NewRedisCacheWithClient: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestBasicOps(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil || got != "v" {
		t.Fatalf("Get = %q, %v; want %q", got, err, "v")
	}

	// Missing keys come back empty without an error.
	got, err = c.Get(ctx, "nope")
	if err != nil || got != "" {
		t.Fatalf("Get missing = %q, %v; want empty", got, err)
	}

	if err := c.Del(ctx, "k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if got, _ := c.Get(ctx, "k"); got != "" {
		t.Fatalf("Get after Del = %q", got)
	}
}

func TestIncr(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := c.Incr(ctx, "counter")
		if err != nil || n != want {
			t.Fatalf("Incr = %d, %v; want %d", n, err, want)
		}
	}
}

func TestZSetOps(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	key := "board"

	err := c.ZAdd(ctx, key,
		ZMember{Member: "alice", Score: 1200},
		ZMember{Member: "bob", Score: 1000},
		ZMember{Member: "carol", Score: 1100},
	)
	if err != nil {
		t.Fatalf("ZAdd: %v", err)
	}

	members, err := c.ZRevRangeWithScores(ctx, key, 0, -1)
	if err != nil {
		t.Fatalf("ZRevRangeWithScores: %v", err)
	}
	wantOrder := []string{"alice", "carol", "bob"}
	if len(members) != len(wantOrder) {
		t.Fatalf("got %d members, want %d", len(members), len(wantOrder))
	}
	for i, want := range wantOrder {
		if members[i].Member != want {
			t.Errorf("rank %d = %q, want %q", i, members[i].Member, want)
		}
	}

	rank, err := c.ZRevRank(ctx, key, "carol")
	if err != nil || rank != 1 {
		t.Fatalf("ZRevRank = %d, %v; want 1", rank, err)
	}

	// Absent members rank as -1 by convention.
	rank, err = c.ZRevRank(ctx, key, "mallory")
	if err != nil || rank != -1 {
		t.Fatalf("ZRevRank missing = %d, %v; want -1", rank, err)
	}

	score, err := c.ZScore(ctx, key, "bob")
	if err != nil || score != 1000 {
		t.Fatalf("ZScore = %v, %v; want 1000", score, err)
	}

	// Absent members score as zero by convention.
	score, err = c.ZScore(ctx, key, "mallory")
	if err != nil || score != 0 {
		t.Fatalf("ZScore missing = %v, %v; want 0", score, err)
	}

	n, err := c.ZCard(ctx, key)
	if err != nil || n != 3 {
		t.Fatalf("ZCard = %d, %v; want 3", n, err)
	}
}

func TestTryLock(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	ok, err := c.TryLock(ctx, "lock:judge", time.Minute)
	if err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}
	ok, err = c.TryLock(ctx, "lock:judge", time.Minute)
	if err != nil || ok {
		t.Fatalf("TryLock while held = %v, %v; want false", ok, err)
	}
	if err := c.Unlock(ctx, "lock:judge"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	ok, err = c.TryLock(ctx, "lock:judge", time.Minute)
	if err != nil || !ok {
		t.Fatalf("TryLock after Unlock = %v, %v", ok, err)
	}
}
