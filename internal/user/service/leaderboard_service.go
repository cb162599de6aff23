package service

import (
	"context"
	"errors"
	"strconv"

	"codearena/internal/common/cache"
	"codearena/internal/user/repository"
	appErrors "codearena/pkg/errors"
	"codearena/pkg/utils/logger"

	"go.uber.org/zap"
)

const leaderboardKey = "leaderboard:elo"

// LeaderboardEntry is one row of the rating ranking. Players is the total
// number of ranked users and is only filled in by Rank.
type LeaderboardEntry struct {
	Rank      int64   `json:"rank"`
	UserID    int64   `json:"user_id"`
	Name      string  `json:"name"`
	EloRating float64 `json:"elo_rating"`
	Players   int64   `json:"players,omitempty"`
}

// LeaderboardService keeps a redis sorted set in sync with user ratings and
// serves ranking queries from it. MySQL stays the source of truth; the set is
// rebuilt lazily when entries are missing.
type LeaderboardService struct {
	cache cache.Cache
	users repository.UserRepository
}

// NewLeaderboardService creates a leaderboard service.
func NewLeaderboardService(cacheClient cache.Cache, users repository.UserRepository) (*LeaderboardService, error) {
	if cacheClient == nil {
		return nil, errors.New("cache is required")
	}
	if users == nil {
		return nil, errors.New("user repository is required")
	}
	return &LeaderboardService{cache: cacheClient, users: users}, nil
}

// RecordRating writes a user's current rating into the sorted set.
func (s *LeaderboardService) RecordRating(ctx context.Context, userID int64, rating float64) {
	err := s.cache.ZAdd(ctx, leaderboardKey, cache.ZMember{
		Member: strconv.FormatInt(userID, 10),
		Score:  rating,
	})
	if err != nil {
		// Ranking is best effort; the database still has the rating.
		logger.Warn(ctx, "leaderboard update failed",
			zap.Int64("user_id", userID),
			zap.Error(err))
	}
}

// Top returns the highest-rated players, at most limit entries.
func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]*LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	members, err := s.cache.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1))
	if err != nil {
		return nil, appErrors.Wrapf(err, appErrors.RankingNotAvailable, "read leaderboard: %v", err)
	}

	entries := make([]*LeaderboardEntry, 0, len(members))
	for i, m := range members {
		userID, err := strconv.ParseInt(m.Member, 10, 64)
		if err != nil {
			continue
		}
		entry := &LeaderboardEntry{
			Rank:      int64(i + 1),
			UserID:    userID,
			EloRating: m.Score,
		}
		if user, err := s.users.GetByID(ctx, nil, userID); err == nil {
			entry.Name = user.Name
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Rank returns a single user's position and rating. Users missing from the
// set are backfilled from the database.
func (s *LeaderboardService) Rank(ctx context.Context, userID int64) (*LeaderboardEntry, error) {
	user, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, appErrors.New(appErrors.UserNotFound)
		}
		return nil, appErrors.InternalError(err)
	}

	// Refresh the member when its stored score is missing or stale. MySQL is
	// the source of truth; the ZAdd after a match is best effort and can be
	// lost.
	member := strconv.FormatInt(userID, 10)
	score, err := s.cache.ZScore(ctx, leaderboardKey, member)
	if err != nil {
		return nil, appErrors.Wrapf(err, appErrors.RankingNotAvailable, "read score: %v", err)
	}
	if score != user.EloRating {
		s.RecordRating(ctx, userID, user.EloRating)
	}

	rank, err := s.cache.ZRevRank(ctx, leaderboardKey, member)
	if err != nil {
		return nil, appErrors.Wrapf(err, appErrors.RankingNotAvailable, "read rank: %v", err)
	}
	if rank < 0 {
		return nil, appErrors.Newf(appErrors.RankingNotAvailable, "user %d is not ranked", userID)
	}
	players, err := s.cache.ZCard(ctx, leaderboardKey)
	if err != nil {
		return nil, appErrors.Wrapf(err, appErrors.RankingNotAvailable, "count players: %v", err)
	}
	return &LeaderboardEntry{
		Rank:      rank + 1,
		UserID:    userID,
		Name:      user.Name,
		EloRating: user.EloRating,
		Players:   players,
	}, nil
}
