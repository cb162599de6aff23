package live

import "codearena/internal/match/service"

// MatchNotifier adapts the hub to the coordinator's notifier contract.
type MatchNotifier struct {
	hub *Hub
}

// NewMatchNotifier wraps hub.
func NewMatchNotifier(hub *Hub) *MatchNotifier {
	return &MatchNotifier{hub: hub}
}

// PublishScores broadcasts a score update to the room.
func (n *MatchNotifier) PublishScores(token string, update service.ScoreUpdate) {
	n.hub.PublishScores(token, update)
}

// PublishFinished broadcasts the final result to the room.
func (n *MatchNotifier) PublishFinished(token string, result string) {
	n.hub.PublishFinished(token, result)
}

var _ service.Notifier = (*MatchNotifier)(nil)
