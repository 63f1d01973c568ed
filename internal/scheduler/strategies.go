package scheduler

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KofiRusu/Neon-v2.2-sub005/internal/model"
)

// violatesConstraints reports whether a timestamp breaks any supplied
// constraint. maxSendsPerDay is handled separately over the whole slate.
func violatesConstraints(ts time.Time, c *model.ScheduleConstraints) bool {
	if c == nil {
		return false
	}
	if c.BusinessHoursOnly {
		h := ts.Hour()
		if h < businessHoursStart || h >= businessHoursEnd {
			return true
		}
	}
	if !c.WeekendsAllowed {
		if wd := ts.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return true
		}
	}
	for _, blackout := range c.BlackoutDates {
		by, bm, bd := blackout.Date()
		ty, tm, td := ts.Date()
		if by == ty && bm == tm && bd == td {
			return true
		}
	}
	return false
}

func filterByConstraints(candidates []candidate, c *model.ScheduleConstraints) []candidate {
	out := make([]candidate, 0, len(candidates))
	for _, cand := range candidates {
		if violatesConstraints(cand.slot.Timestamp, c) {
			continue
		}
		out = append(out, cand)
	}
	return out
}

func sortByEngagement(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].slot.Audience.ExpectedEngagement > candidates[j].slot.Audience.ExpectedEngagement
	})
}

// capSendsPerDay drops candidates past the per-day limit, keeping the
// higher-ranked ones. Call after sortByEngagement.
func capSendsPerDay(candidates []candidate, c *model.ScheduleConstraints) []candidate {
	if c == nil || c.MaxSendsPerDay <= 0 {
		return candidates
	}
	perDay := make(map[string]int)
	out := make([]candidate, 0, len(candidates))
	for _, cand := range candidates {
		day := cand.slot.Timestamp.Format("2006-01-02")
		if perDay[day] >= c.MaxSendsPerDay {
			continue
		}
		perDay[day]++
		out = append(out, cand)
	}
	return out
}

func slotsOf(candidates []candidate) []model.ScheduleSlot {
	slots := make([]model.ScheduleSlot, len(candidates))
	for i, c := range candidates {
		slots[i] = c.slot
	}
	return slots
}

// buildAlternatives derives the conservative, aggressive and balanced
// strategies from the candidate pool and the primary recommendation.
func (g *Generator) buildAlternatives(pool, recommended []candidate, req model.ScheduleRequest) []model.AlternativeStrategy {
	conservative := conservativeSlots(pool, req.Constraints)
	aggressive := aggressiveSlots(recommended, req.Constraints)
	balanced := balancedSlots(conservative, aggressive)

	return []model.AlternativeStrategy{
		{
			Name:      "conservative",
			Slots:     conservative,
			Rationale: fmt.Sprintf("only insights with more than %d samples and confidence above %.2f", conservativeSampleFloor, conservativeConfidence),
		},
		{
			Name:      "aggressive",
			Slots:     aggressive,
			Rationale: "primary slots plus time-shifted experimental variants at reduced confidence",
		},
		{
			Name:      "balanced",
			Slots:     balanced,
			Rationale: "first three conservative slots blended with first two aggressive ones",
		},
	}
}

func conservativeSlots(pool []candidate, c *model.ScheduleConstraints) []model.ScheduleSlot {
	var picked []candidate
	for _, cand := range pool {
		if cand.sampleSize > conservativeSampleFloor && cand.insightConfidence > conservativeConfidence {
			if violatesConstraints(cand.slot.Timestamp, c) {
				continue
			}
			picked = append(picked, cand)
		}
	}
	sortByEngagement(picked)
	return slotsOf(picked)
}

// aggressiveSlots keeps the primary slate and adds +/-1h experimental
// variants tagged secondary with scaled-down predicted confidence.
func aggressiveSlots(recommended []candidate, c *model.ScheduleConstraints) []model.ScheduleSlot {
	slots := slotsOf(recommended)
	for _, cand := range recommended {
		for _, shift := range []time.Duration{-time.Hour, time.Hour} {
			ts := cand.slot.Timestamp.Add(shift)
			if violatesConstraints(ts, c) {
				continue
			}
			variant := cand.slot
			variant.ID = uuid.New().String()
			variant.Timestamp = ts
			variant.Priority = model.SlotSecondary
			variant.Performance.Predicted.Confidence = clampRate(variant.Performance.Predicted.Confidence * experimentalConfidenceScale)
			slots = append(slots, variant)
		}
	}
	return slots
}

func balancedSlots(conservative, aggressive []model.ScheduleSlot) []model.ScheduleSlot {
	var out []model.ScheduleSlot
	for i := 0; i < len(conservative) && i < 3; i++ {
		s := conservative[i]
		s.Priority = model.SlotFallback
		out = append(out, s)
	}
	for i := 0; i < len(aggressive) && i < 2; i++ {
		s := aggressive[i]
		s.Priority = model.SlotFallback
		out = append(out, s)
	}
	return out
}

// aggregateProjection is the engagement-weighted average of the chosen
// slots' predicted performance.
func aggregateProjection(recommended []candidate) model.PerformanceMetrics {
	if len(recommended) == 0 {
		return model.PerformanceMetrics{}
	}
	var totalWeight float64
	var proj model.PerformanceMetrics
	for _, cand := range recommended {
		w := cand.slot.Audience.ExpectedEngagement
		if w <= 0 {
			w = 0.01
		}
		p := cand.slot.Performance.Predicted
		proj.OpenRate += p.OpenRate * w
		proj.ClickRate += p.ClickRate * w
		proj.ConversionRate += p.ConversionRate * w
		proj.SampleSize += p.SampleSize
		totalWeight += w
	}
	proj.OpenRate /= totalWeight
	proj.ClickRate /= totalWeight
	proj.ConversionRate /= totalWeight
	proj.Confidence = confidenceScore(recommended)
	return proj
}

// confidenceScore = min(total historical sample size / 1000, 1.0).
func confidenceScore(recommended []candidate) float64 {
	total := 0
	for _, cand := range recommended {
		total += cand.sampleSize
	}
	score := float64(total) / 1000.0
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// audit retains the chosen slots' reasoning in the memory log; the slots
// themselves stay ephemeral.
func (g *Generator) audit(req model.ScheduleRequest, schedule *model.GeneratedSchedule) {
	if g.memory == nil {
		return
	}
	entry := map[string]any{
		"campaign_id": req.CampaignID,
		"urgency":     req.Urgency,
		"slot_count":  len(schedule.Recommended),
		"confidence":  schedule.ConfidenceScore,
		"reasoning":   schedule.Reasoning,
	}
	if err := g.memory.Store(auditNamespace, req.CampaignID, entry, []string{"schedule", string(req.Urgency)}); err != nil {
		g.logger.Warn("failed to record schedule audit entry", zap.Error(err))
	}
}
