// Package registry holds the in-memory index of live match rooms.
package registry

import (
	"context"
	"sync"
	"time"

	"codearena/internal/match/model"
	"codearena/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultIdleTTL       = time.Hour
	defaultSweepInterval = 5 * time.Minute
)

// Config tunes the registry's eviction behavior. Zero values pick defaults.
type Config struct {
	// IdleTTL is how long a match may sit without activity before it is
	// evicted. Activity is any locked mutation on the match.
	IdleTTL time.Duration
	// SweepInterval is how often the janitor scans for idle matches.
	SweepInterval time.Duration
}

// Registry maps match tokens to live rooms. Matches are memory only; a
// restart loses open rooms, which is acceptable for short-lived games.
type Registry struct {
	mu      sync.RWMutex
	matches map[string]*model.Match

	idleTTL time.Duration
	sweep   time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates a registry. Call StartJanitor to enable eviction.
func New(cfg Config) *Registry {
	idleTTL := cfg.IdleTTL
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	sweep := cfg.SweepInterval
	if sweep <= 0 {
		sweep = defaultSweepInterval
	}
	return &Registry{
		matches: make(map[string]*model.Match),
		idleTTL: idleTTL,
		sweep:   sweep,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Put registers a match under its token.
func (r *Registry) Put(m *model.Match) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches[m.Token] = m
}

// Get returns the match for a token.
func (r *Registry) Get(token string) (*model.Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[token]
	return m, ok
}

// Delete removes a match from the index.
func (r *Registry) Delete(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.matches, token)
}

// All returns a snapshot of every live match. Inspecting a returned match
// still requires its own lock.
func (r *Registry) All() []*model.Match {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := make([]*model.Match, 0, len(r.matches))
	for _, m := range r.matches {
		matches = append(matches, m)
	}
	return matches
}

// Len returns the number of live matches.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}

// StartJanitor runs the eviction loop until Stop is called.
func (r *Registry) StartJanitor(ctx context.Context) {
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.sweep)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				evicted := r.SweepOnce(time.Now())
				if evicted > 0 {
					logger.Info(ctx, "evicted idle matches", zap.Int("count", evicted))
				}
			case <-r.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the janitor. Safe to call more than once.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// SweepOnce evicts every match idle longer than the TTL and returns how many
// were removed.
func (r *Registry) SweepOnce(now time.Time) int {
	r.mu.RLock()
	var stale []string
	for token, m := range r.matches {
		if m.IdleSince(now) >= r.idleTTL {
			stale = append(stale, token)
		}
	}
	r.mu.RUnlock()

	if len(stale) == 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for _, token := range stale {
		m, ok := r.matches[token]
		if !ok {
			continue
		}
		// Re-check under the write lock; the match may have woken up.
		if m.IdleSince(now) < r.idleTTL {
			continue
		}
		delete(r.matches, token)
		evicted++
	}
	return evicted
}
