// Package rating implements Elo rating updates for head-to-head matches.
package rating

import "math"

// DefaultKFactor is the standard adjustment speed for arena matches.
const DefaultKFactor = 32

// Outcome of a match from the first player's perspective.
type Outcome int

const (
	// Win means player A beat player B.
	Win Outcome = iota
	// Loss means player B beat player A.
	Loss
	// Draw means the match ended even.
	Draw
)

// Update returns the new ratings for players A and B after a match. Both new
// ratings are computed from the ratings as they stood before the match, so
// the order of the two players never changes the result of a draw.
func Update(ratingA, ratingB float64, outcome Outcome, k float64) (newA, newB float64) {
	if k <= 0 {
		k = DefaultKFactor
	}

	expectedA := Expected(ratingA, ratingB)
	expectedB := 1 - expectedA

	var scoreA, scoreB float64
	switch outcome {
	case Win:
		scoreA, scoreB = 1, 0
	case Loss:
		scoreA, scoreB = 0, 1
	case Draw:
		scoreA, scoreB = 0.5, 0.5
	}

	newA = ratingA + k*(scoreA-expectedA)
	newB = ratingB + k*(scoreB-expectedB)
	return newA, newB
}

// Expected returns the probability of the first player winning, given both
// ratings.
func Expected(ratingA, ratingB float64) float64 {
	return 1 / (1 + math.Pow(10, (ratingB-ratingA)/400))
}
