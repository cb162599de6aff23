package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"codearena/internal/common/db"
	"codearena/internal/common/mq"
	judgeservice "codearena/internal/judge/service"
	"codearena/internal/match/model"
	"codearena/internal/match/registry"
	"codearena/internal/rating"
	taskservice "codearena/internal/task/service"
	userrepo "codearena/internal/user/repository"
	userservice "codearena/internal/user/service"
	appErrors "codearena/pkg/errors"
	"codearena/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TopicMatchFinished is the Kafka topic match results are published to.
const TopicMatchFinished = "match.finished"

// PlayerScore is one row of a live score update.
type PlayerScore struct {
	Name  string  `json:"name"`
	Score int     `json:"score"`
	Elo   float64 `json:"elo"`
}

// ScoreUpdate is the payload broadcast to a room whenever its state changes.
type ScoreUpdate struct {
	Scores      []PlayerScore `json:"scores"`
	PlayerCount int           `json:"player_count"`
}

// Notifier delivers live events to everyone watching a match room. Delivery
// is best effort.
type Notifier interface {
	PublishScores(token string, update ScoreUpdate)
	PublishFinished(token string, result string)
}

// Config bundles the coordinator dependencies. Notifier and Producer are
// optional.
type Config struct {
	DB          db.Provider
	Registry    *registry.Registry
	Tasks       *taskservice.Service
	Judge       *judgeservice.Service
	Users       userrepo.UserRepository
	Leaderboard *userservice.LeaderboardService
	Notifier    Notifier
	Producer    mq.Producer
	KFactor     float64
}

// Coordinator runs match rooms: creation, joining, judged attempts and
// finalization with rating updates.
type Coordinator struct {
	db          db.Provider
	registry    *registry.Registry
	tasks       *taskservice.Service
	judge       *judgeservice.Service
	users       userrepo.UserRepository
	leaderboard *userservice.LeaderboardService
	notifier    Notifier
	producer    mq.Producer
	kFactor     float64
}

// NewCoordinator creates a coordinator from cfg.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.DB == nil {
		return nil, errors.New("db provider is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Tasks == nil {
		return nil, errors.New("task service is required")
	}
	if cfg.Judge == nil {
		return nil, errors.New("judge service is required")
	}
	if cfg.Users == nil {
		return nil, errors.New("user repository is required")
	}
	kFactor := cfg.KFactor
	if kFactor <= 0 {
		kFactor = rating.DefaultKFactor
	}
	return &Coordinator{
		db:          cfg.DB,
		registry:    cfg.Registry,
		tasks:       cfg.Tasks,
		judge:       cfg.Judge,
		users:       cfg.Users,
		leaderboard: cfg.Leaderboard,
		notifier:    cfg.Notifier,
		producer:    cfg.Producer,
		kFactor:     kFactor,
	}, nil
}

// MatchView is the outward snapshot of a match room.
type MatchView struct {
	Token       string        `json:"token"`
	Subject     string        `json:"subject"`
	TaskID      int64         `json:"task_id"`
	Status      model.Status  `json:"status"`
	Result      string        `json:"result,omitempty"`
	Players     []PlayerScore `json:"players"`
	PlayerCount int           `json:"player_count"`
}

// Create opens a new match room on a random task for the subject. The
// creator is the room's only player until someone joins.
func (c *Coordinator) Create(ctx context.Context, userID int64, subject string) (*MatchView, *taskservice.TaskWithCases, error) {
	user, err := c.loadUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	tc, err := c.tasks.PickTask(ctx, subject)
	if err != nil {
		return nil, nil, err
	}

	token := uuid.NewString()
	m := model.NewMatch(token, subject, tc.Task.ID, len(tc.Cases), &model.Player{
		UserID:    user.ID,
		Name:      user.Name,
		EloRating: user.EloRating,
	})
	c.registry.Put(m)

	logger.Info(ctx, "match created",
		zap.String("token", token),
		zap.Int64("task_id", tc.Task.ID),
		zap.Int64("creator", user.ID))

	view := snapshot(m)
	return view, tc, nil
}

// Join adds a player to a room. Joining a room you are already in succeeds
// without changing anything; a full room is rejected untouched.
func (c *Coordinator) Join(ctx context.Context, token string, userID int64) (*MatchView, error) {
	m, ok := c.registry.Get(token)
	if !ok {
		return nil, appErrors.New(appErrors.MatchNotFound)
	}
	user, err := c.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var joinErr error
	var view *MatchView
	m.WithLock(func() {
		if m.Player(userID) != nil {
			view = snapshotLocked(m)
			return
		}
		if m.Finished() {
			joinErr = appErrors.New(appErrors.MatchAlreadyDone)
			return
		}
		if len(m.Players) >= model.MaxPlayers {
			joinErr = appErrors.New(appErrors.MatchRoomFull)
			return
		}
		m.Players = append(m.Players, &model.Player{
			UserID:    user.ID,
			Name:      user.Name,
			EloRating: user.EloRating,
		})
		view = snapshotLocked(m)
	})
	if joinErr != nil {
		return nil, joinErr
	}

	c.broadcastScores(m)
	return view, nil
}

// AttemptResult reports what one judged attempt did to the match.
type AttemptResult struct {
	Verdict     string     `json:"verdict"`
	TestsPassed int        `json:"tests_passed"`
	TotalTests  int        `json:"total_tests"`
	Match       *MatchView `json:"match"`
}

// SubmitAttempt judges a member's program (or quiz answer) and applies the
// score to the room. A player's score only ever goes up; weaker retries keep
// the previous best. The match finalizes when someone solves every test or
// when every seat has submitted.
func (c *Coordinator) SubmitAttempt(ctx context.Context, token string, userID int64, program []byte, answer string) (*AttemptResult, error) {
	m, ok := c.registry.Get(token)
	if !ok {
		return nil, appErrors.New(appErrors.MatchNotFound)
	}

	var taskID int64
	var memberErr error
	m.WithLock(func() {
		if m.Player(userID) == nil {
			memberErr = appErrors.New(appErrors.MatchNotMember)
			return
		}
		if m.Finished() {
			memberErr = appErrors.New(appErrors.MatchAlreadyDone)
			return
		}
		taskID = m.TaskID
	})
	if memberErr != nil {
		return nil, memberErr
	}

	// Judging runs the program and can take seconds; keep it outside the
	// match lock so the other player is not blocked.
	result, err := c.judge.Judge(ctx, judgeservice.Request{
		UserID:  userID,
		TaskID:  taskID,
		Program: program,
		Answer:  answer,
	})
	if err != nil {
		return nil, err
	}

	var finalize bool
	var view *MatchView
	m.WithLock(func() {
		if m.Finished() {
			// The opponent finished the match while we were judging. The
			// submission row is recorded; the outcome stands.
			view = snapshotLocked(m)
			return
		}
		p := m.Player(userID)
		if p == nil {
			memberErr = appErrors.New(appErrors.MatchNotMember)
			return
		}
		p.Submitted = true
		if result.TestsPassed > p.BestScore {
			p.BestScore = result.TestsPassed
		}
		finalize = c.shouldFinalizeLocked(m)
		view = snapshotLocked(m)
	})
	if memberErr != nil {
		return nil, memberErr
	}

	c.broadcastScores(m)
	if finalize {
		if err := c.Finalize(ctx, token); err != nil {
			return nil, err
		}
		m.WithLock(func() { view = snapshotLocked(m) })
	}

	return &AttemptResult{
		Verdict:     result.Verdict,
		TestsPassed: result.TestsPassed,
		TotalTests:  result.TotalTests,
		Match:       view,
	}, nil
}

// Finalize ends a match, decides the outcome and applies rating updates.
// Calling it on a finished match is a no-op.
func (c *Coordinator) Finalize(ctx context.Context, token string) error {
	m, ok := c.registry.Get(token)
	if !ok {
		return appErrors.New(appErrors.MatchNotFound)
	}

	var already bool
	var outcome model.Outcome
	var resultText string
	var players []*model.Player
	m.WithLock(func() {
		if m.Finished() {
			already = true
			return
		}
		outcome = decideOutcomeLocked(m)
		resultText = renderResultLocked(m, outcome)
		m.Status = model.StatusFinished
		m.Outcome = outcome
		m.Result = resultText
		players = append([]*model.Player(nil), m.Players...)
	})
	if already {
		return nil
	}

	if len(players) == model.MaxPlayers {
		if err := c.applyRatings(ctx, m, outcome, players); err != nil {
			logger.Error(ctx, "rating update failed",
				zap.String("token", token),
				zap.Error(err))
		}
	}

	c.broadcastScores(m)
	if c.notifier != nil {
		c.notifier.PublishFinished(token, resultText)
	}
	c.publishFinished(ctx, m, outcome, resultText)

	logger.Info(ctx, "match finished",
		zap.String("token", token),
		zap.String("result", resultText))
	return nil
}

// ListOpen returns rooms with a free seat, optionally filtered by subject.
func (c *Coordinator) ListOpen(subject string) []*MatchView {
	var views []*MatchView
	for _, m := range c.registry.All() {
		var view *MatchView
		m.ReadLocked(func() {
			if m.Finished() || len(m.Players) >= model.MaxPlayers {
				return
			}
			if subject != "" && m.Subject != subject {
				return
			}
			view = snapshotLocked(m)
		})
		if view != nil {
			views = append(views, view)
		}
	}
	return views
}

// Get returns a snapshot of a room.
func (c *Coordinator) Get(token string) (*MatchView, error) {
	m, ok := c.registry.Get(token)
	if !ok {
		return nil, appErrors.New(appErrors.MatchNotFound)
	}
	return snapshot(m), nil
}

// shouldFinalizeLocked decides whether the room is done: a full solve ends
// it immediately, otherwise it ends once every seat is taken and has
// submitted.
func (c *Coordinator) shouldFinalizeLocked(m *model.Match) bool {
	for _, p := range m.Players {
		if p.BestScore == m.TotalTests && m.TotalTests > 0 {
			return true
		}
	}
	if len(m.Players) < model.MaxPlayers {
		return false
	}
	for _, p := range m.Players {
		if !p.Submitted {
			return false
		}
	}
	return true
}

// decideOutcomeLocked picks a winner by best score. Level scores are a draw,
// including two zeros.
func decideOutcomeLocked(m *model.Match) model.Outcome {
	if len(m.Players) < 2 {
		if len(m.Players) == 1 {
			return model.Outcome{Kind: model.OutcomeWin, WinnerID: m.Players[0].UserID}
		}
		return model.Outcome{Kind: model.OutcomeDraw}
	}
	a, b := m.Players[0], m.Players[1]
	switch {
	case a.BestScore > b.BestScore:
		return model.Outcome{Kind: model.OutcomeWin, WinnerID: a.UserID}
	case b.BestScore > a.BestScore:
		return model.Outcome{Kind: model.OutcomeWin, WinnerID: b.UserID}
	default:
		return model.Outcome{Kind: model.OutcomeDraw}
	}
}

func renderResultLocked(m *model.Match, outcome model.Outcome) string {
	if outcome.Kind == model.OutcomeDraw {
		return "Draw"
	}
	if p := m.Player(outcome.WinnerID); p != nil {
		return fmt.Sprintf("%s won", p.Name)
	}
	return "Match finished"
}

// applyRatings computes new Elo values from the pre-match ratings, persists
// both in one transaction and refreshes the leaderboard.
func (c *Coordinator) applyRatings(ctx context.Context, m *model.Match, outcome model.Outcome, players []*model.Player) error {
	a, b := players[0], players[1]

	var eloOutcome rating.Outcome
	switch {
	case outcome.Kind == model.OutcomeDraw:
		eloOutcome = rating.Draw
	case outcome.WinnerID == a.UserID:
		eloOutcome = rating.Win
	default:
		eloOutcome = rating.Loss
	}
	newA, newB := rating.Update(a.EloRating, b.EloRating, eloOutcome, c.kFactor)

	database, err := db.CurrentDatabase(c.db)
	if err != nil {
		return err
	}
	err = database.Transaction(ctx, func(tx db.Transaction) error {
		if err := c.users.UpdateRating(ctx, tx, a.UserID, newA); err != nil {
			return err
		}
		return c.users.UpdateRating(ctx, tx, b.UserID, newB)
	})
	if err != nil {
		return err
	}

	m.WithLock(func() {
		if p := m.Player(a.UserID); p != nil {
			p.EloRating = newA
		}
		if p := m.Player(b.UserID); p != nil {
			p.EloRating = newB
		}
	})

	if c.leaderboard != nil {
		c.leaderboard.RecordRating(ctx, a.UserID, newA)
		c.leaderboard.RecordRating(ctx, b.UserID, newB)
	}
	return nil
}

func (c *Coordinator) loadUser(ctx context.Context, userID int64) (*userrepo.User, error) {
	user, err := c.users.GetByID(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, userrepo.ErrUserNotFound) {
			return nil, appErrors.New(appErrors.UserNotFound)
		}
		return nil, appErrors.InternalError(err)
	}
	return user, nil
}

func (c *Coordinator) broadcastScores(m *model.Match) {
	if c.notifier == nil {
		return
	}
	var update ScoreUpdate
	m.WithLock(func() { update = scoreUpdateLocked(m) })
	c.notifier.PublishScores(m.Token, update)
}

type matchFinishedEvent struct {
	Token    string `json:"token"`
	TaskID   int64  `json:"task_id"`
	Result   string `json:"result"`
	WinnerID int64  `json:"winner_id,omitempty"`
	Draw     bool   `json:"draw"`
}

func (c *Coordinator) publishFinished(ctx context.Context, m *model.Match, outcome model.Outcome, resultText string) {
	if c.producer == nil {
		return
	}
	event := matchFinishedEvent{
		Token:    m.Token,
		TaskID:   m.TaskID,
		Result:   resultText,
		WinnerID: outcome.WinnerID,
		Draw:     outcome.Kind == model.OutcomeDraw,
	}
	body, err := json.Marshal(event)
	if err != nil {
		return
	}
	msg := mq.NewMessage(body)
	msg.ID = m.Token
	if err := c.producer.Publish(ctx, TopicMatchFinished, msg); err != nil {
		logger.Warn(ctx, "match event publish failed",
			zap.String("token", m.Token),
			zap.Error(err))
	}
}

func snapshot(m *model.Match) *MatchView {
	var view *MatchView
	m.ReadLocked(func() { view = snapshotLocked(m) })
	return view
}

func snapshotLocked(m *model.Match) *MatchView {
	update := scoreUpdateLocked(m)
	return &MatchView{
		Token:       m.Token,
		Subject:     m.Subject,
		TaskID:      m.TaskID,
		Status:      m.Status,
		Result:      m.Result,
		Players:     update.Scores,
		PlayerCount: update.PlayerCount,
	}
}

func scoreUpdateLocked(m *model.Match) ScoreUpdate {
	scores := make([]PlayerScore, 0, len(m.Players))
	for _, p := range m.Players {
		scores = append(scores, PlayerScore{
			Name:  p.Name,
			Score: p.BestScore,
			Elo:   p.EloRating,
		})
	}
	return ScoreUpdate{Scores: scores, PlayerCount: len(m.Players)}
}
