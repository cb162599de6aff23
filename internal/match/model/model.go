package model

import (
	"sync"
	"time"
)

// MaxPlayers is the room capacity of a match.
const MaxPlayers = 2

// Status of a match room.
type Status string

const (
	// StatusOpen means the room is waiting for players and submissions.
	StatusOpen Status = "open"
	// StatusFinished means the match has a recorded outcome.
	StatusFinished Status = "finished"
)

// Player is one participant's live state inside a match.
type Player struct {
	UserID    int64   `json:"user_id"`
	Name      string  `json:"name"`
	EloRating float64 `json:"elo_rating"`
	BestScore int     `json:"best_score"`
	Submitted bool    `json:"submitted"`
}

// OutcomeKind discriminates the ways a match can end.
type OutcomeKind int

const (
	// OutcomeNone means the match is still running.
	OutcomeNone OutcomeKind = iota
	// OutcomeWin means one player won.
	OutcomeWin
	// OutcomeDraw means the scores ended level.
	OutcomeDraw
)

// Outcome is the final result of a match. WinnerID is only meaningful for
// OutcomeWin.
type Outcome struct {
	Kind     OutcomeKind `json:"kind"`
	WinnerID int64       `json:"winner_id,omitempty"`
}

// Match is one in-memory match room. All mutation must happen while holding
// the match lock via WithLock; the registry only guards the room index.
type Match struct {
	mu sync.Mutex

	Token      string
	Subject    string
	TaskID     int64
	TotalTests int
	Players    []*Player
	Status     Status
	Outcome    Outcome
	Result     string
	CreatedAt  time.Time
	LastActive time.Time
}

// NewMatch creates an open match with the creator as its only player.
func NewMatch(token, subject string, taskID int64, totalTests int, creator *Player) *Match {
	now := time.Now()
	return &Match{
		Token:      token,
		Subject:    subject,
		TaskID:     taskID,
		TotalTests: totalTests,
		Players:    []*Player{creator},
		Status:     StatusOpen,
		CreatedAt:  now,
		LastActive: now,
	}
}

// WithLock runs fn while holding the match lock and stamps activity.
func (m *Match) WithLock(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastActive = time.Now()
	fn()
}

// ReadLocked runs fn while holding the match lock without counting as
// activity, so reads do not keep an abandoned room alive.
func (m *Match) ReadLocked(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
}

// Player returns the participant with the given user id, or nil. Callers
// must hold the match lock.
func (m *Match) Player(userID int64) *Player {
	for _, p := range m.Players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// Finished reports whether the match has ended. Callers must hold the match
// lock.
func (m *Match) Finished() bool {
	return m.Status == StatusFinished
}

// IdleSince returns how long the match has been inactive at now.
func (m *Match) IdleSince(now time.Time) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return now.Sub(m.LastActive)
}
