// Package scheduler turns knowledge-base insights plus caller constraints
// into ranked, ready-to-use schedule slots and alternative send strategies.
package scheduler

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KofiRusu/Neon-v2.2-sub005/internal/clock"
	appErrors "github.com/KofiRusu/Neon-v2.2-sub005/internal/errors"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/knowledge"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/model"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/repository"
)

const (
	// minInsightConfidence filters which insights feed candidate slots.
	minInsightConfidence = 0.3
	// conservative strategy thresholds
	conservativeSampleFloor = 500
	conservativeConfidence  = 0.8
	// aggressive experimental slots carry reduced predicted confidence.
	experimentalConfidenceScale = 0.7

	maxRecommended = 5

	businessHoursStart = 9
	businessHoursEnd   = 17

	auditNamespace = "schedule_audit"
)

// Generator produces schedules from timing insights. Slots are ephemeral;
// only the chosen slots' reasoning is retained via the memory store.
type Generator struct {
	kb     *knowledge.TimingKnowledgeBase
	memory repository.MemoryStore
	clock  clock.Clock
	logger *zap.Logger
}

func NewGenerator(kb *knowledge.TimingKnowledgeBase, memory repository.MemoryStore, clk clock.Clock, logger *zap.Logger) *Generator {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Generator{kb: kb, memory: memory, clock: clk, logger: logger}
}

// Generate builds the primary recommendation plus conservative, aggressive
// and balanced alternatives for the request. A segment without any insights
// yields a low-confidence default slot rather than an error.
func (g *Generator) Generate(req model.ScheduleRequest) (*model.GeneratedSchedule, error) {
	if req.CampaignID == "" {
		return nil, appErrors.NewValidation("campaign_id", "must not be empty")
	}
	if len(req.TargetAudience.Segments) == 0 {
		return nil, appErrors.NewValidation("target_audience.segments", "at least one segment required")
	}
	switch req.Urgency {
	case model.UrgencyLow, model.UrgencyMedium, model.UrgencyHigh, model.UrgencyImmediate:
	case "":
		req.Urgency = model.UrgencyMedium
	default:
		return nil, appErrors.NewValidation("urgency", fmt.Sprintf("unknown urgency %q", req.Urgency))
	}

	now := g.clock.Now()
	loc := g.location(req.TargetAudience.Timezone)
	season := model.SeasonOf(now)

	var candidates []candidate
	var reasoning []string

	for _, segment := range req.TargetAudience.Segments {
		insights, err := g.kb.TopInsights(segment, req.ContentType, minInsightConfidence)
		if err != nil {
			return nil, err
		}
		if len(insights) == 0 {
			fallback := g.fallbackSlot(segment, req, now, loc)
			candidates = append(candidates, fallback)
			reasoning = append(reasoning, fmt.Sprintf(
				"segment %q has no timing history; defaulting to %s with low confidence",
				segment, fallback.slot.Timestamp.Format(time.RFC1123)))
			continue
		}
		for _, ins := range insights {
			ts := g.projectTime(ins.OptimalTime, req.Urgency, now, loc)
			candidates = append(candidates, g.buildCandidate(segment, req, ins, ts, season, model.SlotPrimary))
		}
	}

	// Constraint violations exclude a candidate outright, never degrade it.
	survivors := filterByConstraints(candidates, req.Constraints)
	sortByEngagement(survivors)
	survivors = capSendsPerDay(survivors, req.Constraints)

	recommended := survivors
	if len(recommended) > maxRecommended {
		recommended = recommended[:maxRecommended]
	}

	if len(recommended) > 0 {
		best := recommended[0]
		reasoning = append(reasoning, fmt.Sprintf(
			"top slot targets segment %q at %s (historical conversion %.2f%%, %d samples)",
			best.slot.Audience.Segment,
			best.slot.Timestamp.Format(time.RFC1123),
			best.slot.Performance.Historical.ConversionRate*100,
			best.slot.Performance.Historical.SampleSize))
		if m := best.seasonalMultiplier; m != 1.0 {
			reasoning = append(reasoning, fmt.Sprintf(
				"seasonal multiplier %.2f applied for %s at read time", m, season))
		}
	}

	alternatives := g.buildAlternatives(candidates, recommended, req)

	schedule := &model.GeneratedSchedule{
		CampaignID:      req.CampaignID,
		Recommended:     slotsOf(recommended),
		Alternatives:    alternatives,
		Projection:      aggregateProjection(recommended),
		ConfidenceScore: confidenceScore(recommended),
		Reasoning:       reasoning,
		Recommendations: []string{
			"test +/-1h variants of the top slot to refine the optimal window",
			"feed delivery outcomes back promptly so confidence reflects reality",
		},
		GeneratedAt: now,
	}

	g.audit(req, schedule)
	g.logger.Info("schedule generated",
		zap.String("campaign_id", req.CampaignID),
		zap.String("urgency", string(req.Urgency)),
		zap.Int("recommended", len(schedule.Recommended)),
		zap.Float64("confidence", schedule.ConfidenceScore))
	return schedule, nil
}

type candidate struct {
	slot               model.ScheduleSlot
	sampleSize         int
	insightConfidence  float64
	seasonalMultiplier float64
}

func (g *Generator) location(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		g.logger.Warn("unknown timezone, falling back to UTC", zap.String("timezone", tz))
		return time.UTC
	}
	return loc
}

// projectTime turns an abstract optimal time into a concrete timestamp
// according to urgency: immediate sends within the hour, high within six
// hours, medium/low at the next optimal occurrence.
func (g *Generator) projectTime(opt model.OptimalTime, urgency model.Urgency, now time.Time, loc *time.Location) time.Time {
	switch urgency {
	case model.UrgencyImmediate:
		return now.Add(15 * time.Minute)
	case model.UrgencyHigh:
		next := nextOccurrence(now.In(loc), opt.DayOfWeek, opt.Hour)
		cap := now.Add(6 * time.Hour)
		if next.After(cap) {
			return cap
		}
		return next
	default:
		return nextOccurrence(now.In(loc), opt.DayOfWeek, opt.Hour)
	}
}

// nextOccurrence finds the next calendar occurrence of weekday/hour strictly
// after now.
func nextOccurrence(now time.Time, day time.Weekday, hour int) time.Time {
	t := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	daysAhead := (int(day) - int(now.Weekday()) + 7) % 7
	t = t.AddDate(0, 0, daysAhead)
	if !t.After(now) {
		t = t.AddDate(0, 0, 7)
	}
	return t
}

func (g *Generator) buildCandidate(segment string, req model.ScheduleRequest, ins *model.TimingInsight, ts time.Time, season model.Season, tier model.SlotPriority) candidate {
	mult := ins.SeasonalMultiplier(season)
	historical := ins.Performance
	predicted := historical
	predicted.OpenRate = clampRate(historical.OpenRate * mult)
	predicted.ClickRate = clampRate(historical.ClickRate * mult)
	predicted.ConversionRate = clampRate(historical.ConversionRate * mult)

	engagement := expectedEngagement(predicted)
	return candidate{
		slot: model.ScheduleSlot{
			ID:        uuid.New().String(),
			Timestamp: ts,
			Timezone:  req.TargetAudience.Timezone,
			Audience: model.AudienceRef{
				Segment:            segment,
				Size:               req.TargetAudience.Size,
				ExpectedEngagement: engagement,
			},
			Priority: tier,
			Performance: model.SlotPerformance{
				Historical: historical,
				Predicted:  predicted,
			},
		},
		sampleSize:         historical.SampleSize,
		insightConfidence:  historical.Confidence,
		seasonalMultiplier: mult,
	}
}

// fallbackSlot is the low-confidence default for segments with no history:
// next Tuesday 10:00 local.
func (g *Generator) fallbackSlot(segment string, req model.ScheduleRequest, now time.Time, loc *time.Location) candidate {
	ts := nextOccurrence(now.In(loc), time.Tuesday, 10)
	if req.Urgency == model.UrgencyImmediate {
		ts = now.Add(15 * time.Minute)
	}
	perf := model.PerformanceMetrics{
		OpenRate:       0.15,
		ClickRate:      0.02,
		ConversionRate: 0.005,
		Confidence:     0.1,
		SampleSize:     0,
	}
	return candidate{
		slot: model.ScheduleSlot{
			ID:        uuid.New().String(),
			Timestamp: ts,
			Timezone:  req.TargetAudience.Timezone,
			Audience: model.AudienceRef{
				Segment:            segment,
				Size:               req.TargetAudience.Size,
				ExpectedEngagement: expectedEngagement(perf),
			},
			Priority: model.SlotFallback,
			Performance: model.SlotPerformance{
				Historical: perf,
				Predicted:  perf,
			},
		},
		insightConfidence:  perf.Confidence,
		seasonalMultiplier: 1.0,
	}
}

func clampRate(v float64) float64 {
	return math.Min(1.0, math.Max(0.0, v))
}

// expectedEngagement collapses predicted rates into one ranking score;
// conversions weigh heaviest.
func expectedEngagement(p model.PerformanceMetrics) float64 {
	return p.OpenRate*0.2 + p.ClickRate*0.3 + p.ConversionRate*0.5
}
