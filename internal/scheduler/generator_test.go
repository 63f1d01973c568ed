package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KofiRusu/Neon-v2.2-sub005/internal/clock"
	appErrors "github.com/KofiRusu/Neon-v2.2-sub005/internal/errors"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/knowledge"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/model"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/repository"
)

// now is a fixed Monday 12:00 UTC.
var now = time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)

type fixture struct {
	gen    *Generator
	kb     *knowledge.TimingKnowledgeBase
	clk    *clock.Fixed
	memory *repository.InMemoryMemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewFixed(now)
	kb := knowledge.New(repository.NewInMemoryInsightRepository(), zap.NewNop(),
		knowledge.WithClock(clk))
	memory := repository.NewInMemoryMemoryStore()
	return &fixture{
		gen:    NewGenerator(kb, memory, clk, zap.NewNop()),
		kb:     kb,
		clk:    clk,
		memory: memory,
	}
}

func (f *fixture) seed(t *testing.T, segment string, day time.Weekday, hour int, conversion float64, samples int) {
	t.Helper()
	// Observation anchored on the wanted weekday/hour in the week before now.
	observed := time.Date(2025, 12, 28, hour, 0, 0, 0, time.UTC) // a Sunday
	observed = observed.AddDate(0, 0, int(day))
	_, err := f.kb.RecordOutcome(segment, "email", observed, model.PerformanceMetrics{
		OpenRate:       0.3,
		ClickRate:      0.06,
		ConversionRate: conversion,
		Confidence:     0.9,
		SampleSize:     samples,
	})
	require.NoError(t, err)
}

func baseRequest(urgency model.Urgency) model.ScheduleRequest {
	return model.ScheduleRequest{
		CampaignID: "camp-1",
		TargetAudience: model.TargetAudience{
			Segments: []string{"premium_users"},
			Timezone: "UTC",
			Size:     5000,
		},
		ContentType: "email",
		Urgency:     urgency,
	}
}

func TestGenerateValidatesRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.gen.Generate(model.ScheduleRequest{})
	assert.True(t, appErrors.IsValidation(err))

	req := baseRequest("warp-speed")
	_, err = f.gen.Generate(req)
	assert.True(t, appErrors.IsValidation(err))
}

func TestGenerateImmediateUrgencyWithinOneHour(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "premium_users", time.Thursday, 10, 0.03, 800)

	schedule, err := f.gen.Generate(baseRequest(model.UrgencyImmediate))
	require.NoError(t, err)
	require.NotEmpty(t, schedule.Recommended)

	for _, slot := range schedule.Recommended {
		assert.True(t, slot.Timestamp.After(now), "slot must be in the future")
		assert.LessOrEqual(t, slot.Timestamp.Sub(now), time.Hour,
			"immediate slot must land within one hour")
	}
}

func TestGenerateHighUrgencyCapsAtSixHours(t *testing.T) {
	f := newFixture(t)
	// Optimal Thursday slot is days away; high urgency must pull it in.
	f.seed(t, "premium_users", time.Thursday, 10, 0.03, 800)

	schedule, err := f.gen.Generate(baseRequest(model.UrgencyHigh))
	require.NoError(t, err)
	require.NotEmpty(t, schedule.Recommended)
	assert.LessOrEqual(t, schedule.Recommended[0].Timestamp.Sub(now), 6*time.Hour)
}

func TestGenerateMediumUrgencyTakesNextOccurrence(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "premium_users", time.Thursday, 10, 0.03, 800)

	schedule, err := f.gen.Generate(baseRequest(model.UrgencyMedium))
	require.NoError(t, err)
	require.NotEmpty(t, schedule.Recommended)

	slot := schedule.Recommended[0]
	assert.Equal(t, time.Thursday, slot.Timestamp.Weekday())
	assert.Equal(t, 10, slot.Timestamp.Hour())
	assert.True(t, slot.Timestamp.After(now))
}

func TestGenerateConstraintsExcludeOutright(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "premium_users", time.Saturday, 20, 0.06, 900) // weekend, after hours
	f.seed(t, "premium_users", time.Wednesday, 11, 0.02, 900)

	req := baseRequest(model.UrgencyMedium)
	req.Constraints = &model.ScheduleConstraints{
		BusinessHoursOnly: true,
		WeekendsAllowed:   false,
	}

	schedule, err := f.gen.Generate(req)
	require.NoError(t, err)
	require.NotEmpty(t, schedule.Recommended)

	check := func(slots []model.ScheduleSlot) {
		for _, slot := range slots {
			wd := slot.Timestamp.Weekday()
			assert.NotEqual(t, time.Saturday, wd)
			assert.NotEqual(t, time.Sunday, wd)
			assert.GreaterOrEqual(t, slot.Timestamp.Hour(), 9)
			assert.Less(t, slot.Timestamp.Hour(), 17)
		}
	}
	check(schedule.Recommended)
	for _, alt := range schedule.Alternatives {
		check(alt.Slots)
	}
}

func TestGenerateBlackoutDateExcluded(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "premium_users", time.Thursday, 10, 0.05, 900)

	nextThursday := time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)
	req := baseRequest(model.UrgencyMedium)
	req.Constraints = &model.ScheduleConstraints{
		WeekendsAllowed: true,
		BlackoutDates:   []time.Time{nextThursday},
	}

	schedule, err := f.gen.Generate(req)
	require.NoError(t, err)
	for _, slot := range schedule.Recommended {
		y, m, d := slot.Timestamp.Date()
		by, bm, bd := nextThursday.Date()
		assert.False(t, y == by && m == bm && d == bd, "blackout date must never be scheduled")
	}
}

func TestGenerateReturnsAtMostFivePrimarySlots(t *testing.T) {
	f := newFixture(t)
	for hour := 8; hour < 18; hour++ {
		f.seed(t, "premium_users", time.Tuesday, hour, float64(hour)/1000, 500)
	}

	schedule, err := f.gen.Generate(baseRequest(model.UrgencyMedium))
	require.NoError(t, err)
	assert.Len(t, schedule.Recommended, 5)

	// Ranked by expected engagement descending.
	for i := 1; i < len(schedule.Recommended); i++ {
		assert.GreaterOrEqual(t,
			schedule.Recommended[i-1].Audience.ExpectedEngagement,
			schedule.Recommended[i].Audience.ExpectedEngagement)
	}
}

func TestGenerateFallbackSlotForUnknownSegment(t *testing.T) {
	f := newFixture(t)

	schedule, err := f.gen.Generate(baseRequest(model.UrgencyMedium))
	require.NoError(t, err)
	require.Len(t, schedule.Recommended, 1)

	slot := schedule.Recommended[0]
	assert.Equal(t, time.Tuesday, slot.Timestamp.Weekday())
	assert.Equal(t, 10, slot.Timestamp.Hour())
	assert.Equal(t, model.SlotFallback, slot.Priority)
	assert.LessOrEqual(t, slot.Performance.Predicted.Confidence, 0.1)
}

func TestGenerateAlternativeStrategies(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "premium_users", time.Tuesday, 10, 0.04, 900) // conservative-eligible
	f.seed(t, "premium_users", time.Wednesday, 15, 0.03, 50)

	schedule, err := f.gen.Generate(baseRequest(model.UrgencyMedium))
	require.NoError(t, err)
	require.Len(t, schedule.Alternatives, 3)

	byName := map[string]model.AlternativeStrategy{}
	for _, alt := range schedule.Alternatives {
		byName[alt.Name] = alt
	}

	conservative := byName["conservative"]
	require.Len(t, conservative.Slots, 1, "only the high-sample high-confidence insight qualifies")

	aggressive := byName["aggressive"]
	assert.Greater(t, len(aggressive.Slots), len(schedule.Recommended),
		"aggressive adds experimental variants")
	var sawSecondary bool
	for _, slot := range aggressive.Slots {
		if slot.Priority == model.SlotSecondary {
			sawSecondary = true
			assert.Less(t, slot.Performance.Predicted.Confidence, 0.9,
				"experimental slots carry reduced confidence")
		}
	}
	assert.True(t, sawSecondary)

	balanced := byName["balanced"]
	assert.LessOrEqual(t, len(balanced.Slots), 5)
	for _, slot := range balanced.Slots {
		assert.Equal(t, model.SlotFallback, slot.Priority)
	}
}

func TestGenerateConfidenceScore(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "premium_users", time.Tuesday, 10, 0.04, 400)

	schedule, err := f.gen.Generate(baseRequest(model.UrgencyMedium))
	require.NoError(t, err)
	assert.InDelta(t, 0.4, schedule.ConfidenceScore, 0.0001)

	f.seed(t, "premium_users", time.Wednesday, 10, 0.04, 5000)
	schedule, err = f.gen.Generate(baseRequest(model.UrgencyMedium))
	require.NoError(t, err)
	assert.Equal(t, 1.0, schedule.ConfidenceScore, "score is capped at 1.0")
}

func TestGenerateRetainsReasoningInAuditLog(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "premium_users", time.Tuesday, 10, 0.04, 400)

	schedule, err := f.gen.Generate(baseRequest(model.UrgencyMedium))
	require.NoError(t, err)
	assert.NotEmpty(t, schedule.Reasoning)
	assert.NotEmpty(t, schedule.Recommendations)

	entries, err := f.memory.RetrieveRecent("schedule_audit", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "camp-1", entries[0].Key)
}

func TestNextOccurrenceRollsForward(t *testing.T) {
	// now is Monday 12:00; Monday 10:00 already passed this week.
	next := nextOccurrence(now, time.Monday, 10)
	assert.Equal(t, time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC), next)

	sameDayLater := nextOccurrence(now, time.Monday, 15)
	assert.Equal(t, time.Date(2026, 1, 5, 15, 0, 0, 0, time.UTC), sameDayLater)
}
