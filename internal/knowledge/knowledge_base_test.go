package knowledge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KofiRusu/Neon-v2.2-sub005/internal/clock"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/model"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/repository"
)

// tuesday10 is a fixed Tuesday 10:00 UTC observation time.
var tuesday10 = time.Date(2026, 1, 6, 10, 0, 0, 0, time.UTC)

func newTestKB(t *testing.T, clk clock.Clock) *TimingKnowledgeBase {
	t.Helper()
	return New(repository.NewInMemoryInsightRepository(), zap.NewNop(),
		WithClock(clk),
		WithDecay(0.9, 0.1, 24*time.Hour))
}

func record(t *testing.T, kb *TimingKnowledgeBase, conversion float64, samples int) *model.TimingInsight {
	t.Helper()
	ins, err := kb.RecordOutcome("premium_users", "email", tuesday10, model.PerformanceMetrics{
		OpenRate:       0.3,
		ClickRate:      0.05,
		ConversionRate: conversion,
		Confidence:     0.5,
		SampleSize:     samples,
	})
	require.NoError(t, err)
	return ins
}

func TestRecordOutcomeMergesSampleSizes(t *testing.T) {
	kb := newTestKB(t, clock.NewFixed(tuesday10))

	record(t, kb, 0.02, 150)
	ins := record(t, kb, 0.04, 50)

	assert.Equal(t, 200, ins.Performance.SampleSize)
	assert.GreaterOrEqual(t, ins.Performance.Confidence, 0.0)
	assert.LessOrEqual(t, ins.Performance.Confidence, 1.0)
}

func TestRecordOutcomeIsConfidenceWeighted(t *testing.T) {
	kb := newTestKB(t, clock.NewFixed(tuesday10))

	// Three equal-weight observations at 2%, 3%, 4% conversion.
	record(t, kb, 0.02, 100)
	record(t, kb, 0.03, 100)
	ins := record(t, kb, 0.04, 100)

	assert.InDelta(t, 0.03, ins.Performance.ConversionRate, 0.0001)
	assert.Equal(t, 300, ins.Performance.SampleSize)
}

func TestRecordOutcomeNeverLowersConfidence(t *testing.T) {
	kb := newTestKB(t, clock.NewFixed(tuesday10))

	first := record(t, kb, 0.03, 500)
	before := first.Performance.Confidence

	// A tiny low-confidence observation must not drag confidence down.
	ins, err := kb.RecordOutcome("premium_users", "email", tuesday10, model.PerformanceMetrics{
		ConversionRate: 0.01,
		Confidence:     0.05,
		SampleSize:     1,
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ins.Performance.Confidence, before)
}

func TestRecordOutcomeSeparateCellsPerHour(t *testing.T) {
	kb := newTestKB(t, clock.NewFixed(tuesday10))

	record(t, kb, 0.02, 100)
	_, err := kb.RecordOutcome("premium_users", "email", tuesday10.Add(3*time.Hour), model.PerformanceMetrics{
		ConversionRate: 0.05,
		SampleSize:     100,
	})
	require.NoError(t, err)

	size, err := kb.Size()
	require.NoError(t, err)
	assert.Equal(t, 2, size)
}

func TestDecayIsMonotonicNonIncreasing(t *testing.T) {
	clk := clock.NewFixed(tuesday10)
	kb := newTestKB(t, clk)
	record(t, kb, 0.03, 800)

	prev := 1.1
	for cycle := 0; cycle < 5; cycle++ {
		clk.Advance(48 * time.Hour)
		_, err := kb.DecayAndPrune()
		require.NoError(t, err)

		insights, err := kb.TopInsights("premium_users", "email", 0)
		require.NoError(t, err)
		if len(insights) == 0 {
			break // pruned, which is also non-increasing
		}
		current := insights[0].Performance.Confidence
		assert.LessOrEqual(t, current, prev, "cycle %d", cycle)
		prev = current
	}
}

func TestDecayAndPruneIsIdempotentWithinCycle(t *testing.T) {
	clk := clock.NewFixed(tuesday10)
	kb := newTestKB(t, clk)
	record(t, kb, 0.03, 800)

	clk.Advance(72 * time.Hour)
	_, err := kb.DecayAndPrune()
	require.NoError(t, err)
	after, err := kb.TopInsights("premium_users", "email", 0)
	require.NoError(t, err)
	require.Len(t, after, 1)
	once := after[0].Performance.Confidence

	// Second call in the same cycle must be a no-op.
	_, err = kb.DecayAndPrune()
	require.NoError(t, err)
	again, err := kb.TopInsights("premium_users", "email", 0)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, once, again[0].Performance.Confidence)
}

func TestDecayPrunesBelowConfidenceFloor(t *testing.T) {
	clk := clock.NewFixed(tuesday10)
	kb := newTestKB(t, clk)
	record(t, kb, 0.03, 100)

	// Enough elapsed days at decayFactor 0.9 pushes any confidence under 0.1.
	clk.Advance(60 * 24 * time.Hour)
	pruned, err := kb.DecayAndPrune()
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	size, err := kb.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestTopInsightsSortsByConversionThenSampleSize(t *testing.T) {
	clk := clock.NewFixed(tuesday10)
	kb := newTestKB(t, clk)

	seed := func(hour int, conversion, confidence float64, samples int) {
		_, err := kb.RecordOutcome("premium_users", "email",
			time.Date(2026, 1, 6, hour, 0, 0, 0, time.UTC),
			model.PerformanceMetrics{
				ConversionRate: conversion,
				Confidence:     confidence,
				SampleSize:     samples,
			})
		require.NoError(t, err)
	}
	seed(8, 0.02, 0.9, 100)
	seed(9, 0.04, 0.9, 100)
	seed(11, 0.04, 0.9, 900)  // same conversion, larger sample wins
	seed(12, 0.08, 0.05, 100) // below min confidence, excluded

	top, err := kb.TopInsights("premium_users", "email", 0.5)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, 11, top[0].OptimalTime.Hour)
	assert.Equal(t, 9, top[1].OptimalTime.Hour)
	assert.Equal(t, 8, top[2].OptimalTime.Hour)
}

func TestSeasonalMultiplierDefaultsToOne(t *testing.T) {
	ins := &model.TimingInsight{}
	assert.Equal(t, 1.0, ins.SeasonalMultiplier(model.SeasonWinter))

	ins.Seasonal = map[model.Season]float64{model.SeasonSummer: 1.3}
	assert.Equal(t, 1.3, ins.SeasonalMultiplier(model.SeasonSummer))
	assert.Equal(t, 1.0, ins.SeasonalMultiplier(model.SeasonSpring))
}
