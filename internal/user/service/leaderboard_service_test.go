package service

import (
	"context"
	"sync"
	"testing"

	"codearena/internal/common/cache"
	"codearena/internal/common/db"
	"codearena/internal/user/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*repository.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: make(map[int64]*repository.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, _ db.Transaction, user *repository.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == user.Email || u.Name == user.Name {
			return repository.ErrDuplicateUser
		}
	}
	f.nextID++
	user.ID = f.nextID
	copied := *user
	f.byID[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, _ db.Transaction, userID int64) (*repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUserRepo) UpdateRating(_ context.Context, _ db.Transaction, userID int64, rating float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.EloRating = rating
	return nil
}

func (f *fakeUserRepo) add(user *repository.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == 0 {
		f.nextID++
		user.ID = f.nextID
	} else if user.ID > f.nextID {
		f.nextID = user.ID
	}
	copied := *user
	f.byID[user.ID] = &copied
}

func newTestCache(t *testing.T) cache.Cache {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	c, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("redis cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestLeaderboardTop(t *testing.T) {
	users := newFakeUserRepo()
	users.add(&repository.User{ID: 1, Name: "alice", EloRating: 1100})
	users.add(&repository.User{ID: 2, Name: "bob", EloRating: 1300})
	users.add(&repository.User{ID: 3, Name: "carol", EloRating: 1200})

	lb, err := NewLeaderboardService(newTestCache(t), users)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	ctx := context.Background()
	lb.RecordRating(ctx, 1, 1100)
	lb.RecordRating(ctx, 2, 1300)
	lb.RecordRating(ctx, 3, 1200)

	entries, err := lb.Top(ctx, 10)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	wantOrder := []string{"bob", "carol", "alice"}
	for i, want := range wantOrder {
		if entries[i].Name != want {
			t.Errorf("rank %d = %q, want %q", i+1, entries[i].Name, want)
		}
		if entries[i].Rank != int64(i+1) {
			t.Errorf("rank field = %d, want %d", entries[i].Rank, i+1)
		}
	}
}

func TestLeaderboardTopLimit(t *testing.T) {
	users := newFakeUserRepo()
	lb, _ := NewLeaderboardService(newTestCache(t), users)
	ctx := context.Background()
	for i := int64(1); i <= 5; i++ {
		users.add(&repository.User{ID: i, Name: "p", EloRating: float64(1000 + i)})
		lb.RecordRating(ctx, i, float64(1000+i))
	}

	entries, err := lb.Top(ctx, 2)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("entries = %d, want 2", len(entries))
	}
}

func TestRankBackfillsMissingMember(t *testing.T) {
	users := newFakeUserRepo()
	users.add(&repository.User{ID: 1, Name: "alice", EloRating: 1100})
	users.add(&repository.User{ID: 2, Name: "bob", EloRating: 1300})

	lb, _ := NewLeaderboardService(newTestCache(t), users)
	ctx := context.Background()
	lb.RecordRating(ctx, 2, 1300)

	// Alice is not in the sorted set yet; Rank should pull her rating from
	// the repository and insert her.
	entry, err := lb.Rank(ctx, 1)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if entry.Rank != 2 {
		t.Errorf("rank = %d, want 2", entry.Rank)
	}
	if entry.EloRating != 1100 {
		t.Errorf("rating = %v, want 1100", entry.EloRating)
	}
	if entry.Players != 2 {
		t.Errorf("players = %d, want 2", entry.Players)
	}
}

func TestRankRefreshesStaleScore(t *testing.T) {
	users := newFakeUserRepo()
	users.add(&repository.User{ID: 1, Name: "alice", EloRating: 1100})
	users.add(&repository.User{ID: 2, Name: "bob", EloRating: 1300})

	lb, _ := NewLeaderboardService(newTestCache(t), users)
	ctx := context.Background()
	// Alice's set entry lags behind the repository rating.
	lb.RecordRating(ctx, 1, 1000)
	lb.RecordRating(ctx, 2, 1300)
	users.UpdateRating(ctx, nil, 1, 1400)

	entry, err := lb.Rank(ctx, 1)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if entry.Rank != 1 {
		t.Errorf("rank = %d, want 1 after refresh", entry.Rank)
	}
	if entry.EloRating != 1400 {
		t.Errorf("rating = %v, want 1400", entry.EloRating)
	}
}

func TestRankUnknownUser(t *testing.T) {
	lb, _ := NewLeaderboardService(newTestCache(t), newFakeUserRepo())
	if _, err := lb.Rank(context.Background(), 42); err == nil {
		t.Fatal("expected error for unknown user")
	}
}

func TestRecordRatingOverwrites(t *testing.T) {
	users := newFakeUserRepo()
	users.add(&repository.User{ID: 1, Name: "alice", EloRating: 1000})
	lb, _ := NewLeaderboardService(newTestCache(t), users)
	ctx := context.Background()

	lb.RecordRating(ctx, 1, 1000)
	lb.RecordRating(ctx, 1, 1016)

	entries, err := lb.Top(ctx, 10)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].EloRating != 1016 {
		t.Errorf("rating = %v, want 1016", entries[0].EloRating)
	}
}
