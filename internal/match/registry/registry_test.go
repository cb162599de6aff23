package registry

import (
	"testing"
	"time"

	"codearena/internal/match/model"
)

func newMatch(token string) *model.Match {
	return model.NewMatch(token, "math", 1, 5, &model.Player{UserID: 1, Name: "alice", EloRating: 1000})
}

func TestPutGetDelete(t *testing.T) {
	r := New(Config{})

	m := newMatch("tok-1")
	r.Put(m)

	got, ok := r.Get("tok-1")
	if !ok || got != m {
		t.Fatal("Get should return the stored match")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}

	r.Delete("tok-1")
	if _, ok := r.Get("tok-1"); ok {
		t.Error("match should be gone after Delete")
	}
}

func TestGetMissing(t *testing.T) {
	r := New(Config{})
	if _, ok := r.Get("nope"); ok {
		t.Error("Get on an unknown token should report absence")
	}
}

func TestSweepEvictsIdleMatches(t *testing.T) {
	r := New(Config{IdleTTL: time.Hour})

	stale := newMatch("stale")
	fresh := newMatch("fresh")
	r.Put(stale)
	r.Put(fresh)

	// The stale room last saw activity two hours ago.
	stale.LastActive = time.Now().Add(-2 * time.Hour)

	evicted := r.SweepOnce(time.Now())
	if evicted != 1 {
		t.Fatalf("evicted = %d, want 1", evicted)
	}
	if _, ok := r.Get("stale"); ok {
		t.Error("stale match should be evicted")
	}
	if _, ok := r.Get("fresh"); !ok {
		t.Error("fresh match should survive")
	}
}

func TestActivityExtendsLifetime(t *testing.T) {
	r := New(Config{IdleTTL: time.Hour})

	m := newMatch("tok")
	r.Put(m)
	m.LastActive = time.Now().Add(-2 * time.Hour)

	// Any locked mutation counts as activity and resets the clock.
	m.WithLock(func() {})

	if evicted := r.SweepOnce(time.Now()); evicted != 0 {
		t.Fatalf("evicted = %d, want 0", evicted)
	}
	if _, ok := r.Get("tok"); !ok {
		t.Error("active match should not be evicted")
	}
}

func TestSweepIsStableOnEmptyRegistry(t *testing.T) {
	r := New(Config{})
	if evicted := r.SweepOnce(time.Now()); evicted != 0 {
		t.Errorf("evicted = %d, want 0", evicted)
	}
}
