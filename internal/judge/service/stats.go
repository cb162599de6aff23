package service

import (
	"context"
	"encoding/json"
	"strconv"

	"codearena/internal/common/cache"
	"codearena/internal/common/mq"
	"codearena/internal/judge/model"
	"codearena/pkg/utils/logger"

	"go.uber.org/zap"
)

// Redis keys the verdict counters live under.
const (
	statsKeyTotal    = "stats:submissions:total"
	statsKeyAccepted = "stats:submissions:accepted"
)

// VerdictStats keeps running submission counters fed by verdict events.
type VerdictStats struct {
	cache cache.Cache
}

// NewVerdictStats creates a verdict stats aggregator backed by c.
func NewVerdictStats(c cache.Cache) *VerdictStats {
	return &VerdictStats{cache: c}
}

// Register subscribes the aggregator to verdict events on consumer.
func (s *VerdictStats) Register(ctx context.Context, consumer mq.Consumer) error {
	return consumer.Subscribe(ctx, TopicVerdict, s.handle)
}

// handle counts one verdict event. Malformed events are logged and dropped;
// returning an error would only make the broker redeliver them.
func (s *VerdictStats) handle(ctx context.Context, msg *mq.Message) error {
	var result model.JudgeResult
	if err := json.Unmarshal(msg.Body, &result); err != nil {
		logger.Warn(ctx, "dropping malformed verdict event",
			zap.String("message_id", msg.ID),
			zap.Error(err))
		return nil
	}
	if _, err := s.cache.Incr(ctx, statsKeyTotal); err != nil {
		return err
	}
	if result.Accepted() {
		if _, err := s.cache.Incr(ctx, statsKeyAccepted); err != nil {
			return err
		}
	}
	return nil
}

// Totals holds the aggregate submission counters.
type Totals struct {
	Submissions int64 `json:"submissions"`
	Accepted    int64 `json:"accepted"`
}

// Totals reads the current counters. Missing keys read as zero.
func (s *VerdictStats) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	raw, err := s.cache.Get(ctx, statsKeyTotal)
	if err != nil {
		return t, err
	}
	if raw != "" {
		t.Submissions, _ = strconv.ParseInt(raw, 10, 64)
	}
	raw, err = s.cache.Get(ctx, statsKeyAccepted)
	if err != nil {
		return t, err
	}
	if raw != "" {
		t.Accepted, _ = strconv.ParseInt(raw, 10, 64)
	}
	return t, nil
}
