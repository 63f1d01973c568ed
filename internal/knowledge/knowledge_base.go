// Package knowledge maintains per-(audience segment, content type) timing
// performance insights: confidence-weighted merging of observed outcomes,
// passive decay, pruning, and ranked retrieval for the schedule generator.
package knowledge

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KofiRusu/Neon-v2.2-sub005/internal/clock"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/model"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/repository"
)

const (
	// newInsightBaseConfidence seeds an insight that arrives without an
	// explicit confidence from its reporter.
	newInsightBaseConfidence = 0.3
	// observationConfidenceBump rewards a fresh confirming observation.
	observationConfidenceBump = 0.05
)

// TimingKnowledgeBase owns the timing-insight map. All writes happen on the
// owning component's handlers; the repository guards concurrent readers.
type TimingKnowledgeBase struct {
	repo   repository.InsightRepository
	clock  clock.Clock
	logger *zap.Logger

	decayFactor     float64
	confidenceFloor float64
	decayInterval   time.Duration

	// nextDecayAt makes DecayAndPrune idempotent per learning cycle.
	nextDecayAt time.Time
}

type Option func(*TimingKnowledgeBase)

func WithClock(c clock.Clock) Option {
	return func(kb *TimingKnowledgeBase) { kb.clock = c }
}

func WithDecay(factor, floor float64, interval time.Duration) Option {
	return func(kb *TimingKnowledgeBase) {
		kb.decayFactor = factor
		kb.confidenceFloor = floor
		kb.decayInterval = interval
	}
}

func New(repo repository.InsightRepository, logger *zap.Logger, opts ...Option) *TimingKnowledgeBase {
	kb := &TimingKnowledgeBase{
		repo:            repo,
		clock:           clock.Real{},
		logger:          logger,
		decayFactor:     0.95,
		confidenceFloor: 0.1,
		decayInterval:   24 * time.Hour,
	}
	for _, opt := range opts {
		opt(kb)
	}
	return kb
}

func clamp01(v float64) float64 {
	return math.Min(1.0, math.Max(0.0, v))
}

// RecordOutcome merges an observed outcome into the matching insight, or
// inserts a new one when no insight exists for the same segment, content
// type, weekday and hour.
//
// Merge weight = newSampleSize / (existingSampleSize + newSampleSize); each
// rate becomes existing*(1-weight) + new*weight; sample sizes accumulate and
// lastUpdated resets. Confidence never shrinks on a new observation.
func (kb *TimingKnowledgeBase) RecordOutcome(segment, contentType string, observedTime time.Time, perf model.PerformanceMetrics) (*model.TimingInsight, error) {
	if perf.SampleSize <= 0 {
		perf.SampleSize = 1
	}
	now := kb.clock.Now()
	day := observedTime.Weekday()
	hour := observedTime.Hour()

	existing, err := kb.repo.Find(segment, contentType, day, hour)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		confidence := perf.Confidence
		if confidence <= 0 {
			confidence = clamp01(newInsightBaseConfidence + float64(perf.SampleSize)/1000.0)
		}
		ins := &model.TimingInsight{
			ID:              uuid.New().String(),
			AudienceSegment: segment,
			ContentType:     contentType,
			OptimalTime: model.OptimalTime{
				DayOfWeek: day,
				Hour:      hour,
				Timezone:  observedTime.Location().String(),
			},
			Performance: model.PerformanceMetrics{
				OpenRate:       perf.OpenRate,
				ClickRate:      perf.ClickRate,
				ConversionRate: perf.ConversionRate,
				Confidence:     clamp01(confidence),
				SampleSize:     perf.SampleSize,
			},
			LastUpdated: now,
		}
		if err := kb.repo.Upsert(ins); err != nil {
			return nil, err
		}
		kb.logger.Debug("timing insight created",
			zap.String("segment", segment),
			zap.String("content_type", contentType),
			zap.Int("sample_size", perf.SampleSize))
		return ins, nil
	}

	weight := float64(perf.SampleSize) / float64(existing.Performance.SampleSize+perf.SampleSize)
	merged := existing.Performance
	merged.OpenRate = existing.Performance.OpenRate*(1-weight) + perf.OpenRate*weight
	merged.ClickRate = existing.Performance.ClickRate*(1-weight) + perf.ClickRate*weight
	merged.ConversionRate = existing.Performance.ConversionRate*(1-weight) + perf.ConversionRate*weight
	merged.SampleSize = existing.Performance.SampleSize + perf.SampleSize

	// A confirming observation may only raise confidence; decay is the
	// sole path down.
	blended := existing.Performance.Confidence*(1-weight) + clamp01(perf.Confidence)*weight
	merged.Confidence = clamp01(math.Max(existing.Performance.Confidence, blended) + observationConfidenceBump)

	existing.Performance = merged
	existing.LastUpdated = now
	if err := kb.repo.Upsert(existing); err != nil {
		return nil, err
	}
	kb.logger.Debug("timing insight merged",
		zap.String("id", existing.ID),
		zap.Float64("weight", weight),
		zap.Int("sample_size", merged.SampleSize))
	return existing, nil
}

// DecayAndPrune applies confidence decay to every insight and removes those
// below the confidence floor. It runs at most once per decay interval;
// further calls within the same cycle are no-ops.
func (kb *TimingKnowledgeBase) DecayAndPrune() (pruned int, err error) {
	now := kb.clock.Now()
	if now.Before(kb.nextDecayAt) {
		return 0, nil
	}
	kb.nextDecayAt = now.Add(kb.decayInterval)

	insights, err := kb.repo.ListAll()
	if err != nil {
		return 0, err
	}

	for _, ins := range insights {
		ageDays := now.Sub(ins.LastUpdated).Hours() / 24.0
		if ageDays < 0 {
			ageDays = 0
		}
		ins.Performance.Confidence = clamp01(ins.Performance.Confidence * math.Pow(kb.decayFactor, ageDays))

		if ins.Performance.Confidence < kb.confidenceFloor {
			if err := kb.repo.Delete(ins.ID); err != nil {
				return pruned, err
			}
			pruned++
			continue
		}
		if err := kb.repo.Upsert(ins); err != nil {
			return pruned, err
		}
	}

	kb.logger.Info("knowledge decay cycle complete",
		zap.Int("insights", len(insights)),
		zap.Int("pruned", pruned))
	return pruned, nil
}

// TopInsights returns the insights for a segment and content type with
// confidence >= minConfidence, sorted by conversion rate descending, ties
// broken by larger sample size.
func (kb *TimingKnowledgeBase) TopInsights(segment, contentType string, minConfidence float64) ([]*model.TimingInsight, error) {
	insights, err := kb.repo.ListFor(segment, contentType)
	if err != nil {
		return nil, err
	}

	filtered := insights[:0]
	for _, ins := range insights {
		if ins.Performance.Confidence >= minConfidence {
			filtered = append(filtered, ins)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i].Performance, filtered[j].Performance
		if a.ConversionRate != b.ConversionRate {
			return a.ConversionRate > b.ConversionRate
		}
		return a.SampleSize > b.SampleSize
	})
	return filtered, nil
}

// Size reports the current number of stored insights.
func (kb *TimingKnowledgeBase) Size() (int, error) {
	insights, err := kb.repo.ListAll()
	if err != nil {
		return 0, err
	}
	return len(insights), nil
}
