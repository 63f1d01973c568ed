// Package replay scans for high-confidence historical campaign patterns,
// clones and mutates them through content/timing/brand collaborators,
// launches the result, and feeds outcome variance back into the timing
// knowledge base.
package replay

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KofiRusu/Neon-v2.2-sub005/internal/clock"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/coordinator"
	appErrors "github.com/KofiRusu/Neon-v2.2-sub005/internal/errors"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/knowledge"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/model"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/repository"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/scheduler"
)

const learningsNamespace = "replay_learnings"

// Config bounds and tunes the engine.
type Config struct {
	ConfidenceThreshold float64
	MaxConcurrent       int
	MinTimeBetween      time.Duration
	FreshnessWindow     time.Duration
	HardTimeout         time.Duration
	CollaboratorTimeout time.Duration
	SimulationMode      bool
}

func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.75,
		MaxConcurrent:       3,
		MinTimeBetween:      72 * time.Hour,
		FreshnessWindow:     90 * 24 * time.Hour,
		HardTimeout:         48 * time.Hour,
		CollaboratorTimeout: 30 * time.Second,
		SimulationMode:      true,
	}
}

// ReplayConfig selects which modification passes a replay applies.
type ReplayConfig struct {
	RefreshContent bool `json:"refresh_content"`
	OptimizeTiming bool `json:"optimize_timing"`
	ValidateBrand  bool `json:"validate_brand"`
}

// AllModifications enables every pass.
func AllModifications() ReplayConfig {
	return ReplayConfig{RefreshContent: true, OptimizeTiming: true, ValidateBrand: true}
}

// Engine is the pattern replay engine. It owns all replay executions and
// runs on an hourly single-threaded cycle.
type Engine struct {
	replays  repository.ReplayRepository
	patterns PatternStore
	plans    PlanGenerator
	content  ContentGenerator
	brand    BrandChecker

	generator *scheduler.Generator
	coord     *coordinator.Coordinator
	kb        *knowledge.TimingKnowledgeBase
	memory    repository.MemoryStore

	clock  clock.Clock
	rand   *rand.Rand
	logger *zap.Logger
	cfg    Config
}

type Deps struct {
	Replays   repository.ReplayRepository
	Patterns  PatternStore
	Plans     PlanGenerator
	Content   ContentGenerator
	Brand     BrandChecker
	Generator *scheduler.Generator
	Coord     *coordinator.Coordinator
	Knowledge *knowledge.TimingKnowledgeBase
	Memory    repository.MemoryStore
	Clock     clock.Clock
	Rand      *rand.Rand
	Logger    *zap.Logger
}

func New(deps Deps, cfg Config) *Engine {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.MaxConcurrent <= 0 {
		cfg = DefaultConfig()
	}
	return &Engine{
		replays:   deps.Replays,
		patterns:  deps.Patterns,
		plans:     deps.Plans,
		content:   deps.Content,
		brand:     deps.Brand,
		generator: deps.Generator,
		coord:     deps.Coord,
		kb:        deps.Knowledge,
		memory:    deps.Memory,
		clock:     deps.Clock,
		rand:      deps.Rand,
		logger:    deps.Logger,
		cfg:       cfg,
	}
}

// ScanOpportunities fetches patterns at or above the confidence threshold,
// excludes recently replayed and stale ones, and stops once the remaining
// replay capacity is filled.
func (e *Engine) ScanOpportunities(ctx context.Context) ([]model.CampaignPattern, error) {
	patterns, err := e.patterns.GetPatternsByScore(ctx, e.cfg.ConfidenceThreshold)
	if err != nil {
		return nil, appErrors.NewCollaborator("pattern-store", err)
	}

	active, err := e.replays.ListActive()
	if err != nil {
		return nil, err
	}
	capacity := e.cfg.MaxConcurrent - len(active)
	if capacity <= 0 {
		return nil, nil
	}

	now := e.clock.Now()
	var approved []model.CampaignPattern
	for _, p := range patterns {
		if p.Score < e.cfg.ConfidenceThreshold {
			continue
		}
		if now.Sub(p.LastSeenAt) > e.cfg.FreshnessWindow {
			e.logger.Debug("pattern too stale", zap.String("pattern_id", p.ID))
			continue
		}
		last, err := e.replays.LastForPattern(p.ID)
		if err != nil {
			return nil, err
		}
		if last != nil && now.Sub(last.StartedAt) < e.cfg.MinTimeBetween {
			e.logger.Debug("pattern replayed too recently", zap.String("pattern_id", p.ID))
			continue
		}
		approved = append(approved, p)
		if len(approved) >= capacity {
			break
		}
	}

	e.logger.Info("opportunity scan complete",
		zap.Int("patterns", len(patterns)),
		zap.Int("approved", len(approved)))
	return approved, nil
}

// RunCycle is the periodic entry point: enforce timeouts, scan, replay each
// approved pattern. Per-pattern failures are logged and the cycle continues.
func (e *Engine) RunCycle(ctx context.Context) {
	e.EnforceTimeouts()

	approved, err := e.ScanOpportunities(ctx)
	if err != nil {
		e.logger.Error("opportunity scan failed", zap.Error(err))
		return
	}
	for _, pattern := range approved {
		if _, err := e.Replay(ctx, pattern, AllModifications()); err != nil {
			e.logger.Error("replay failed",
				zap.String("pattern_id", pattern.ID), zap.Error(err))
		}
	}
}

// Replay clones the pattern into a plan, applies up to three modification
// passes, launches (or simulates) it, computes variance and derives
// learnings. Collaborator failures degrade to "modification not applied".
func (e *Engine) Replay(ctx context.Context, pattern model.CampaignPattern, cfg ReplayConfig) (*model.ReplayExecution, error) {
	active, err := e.replays.ListActive()
	if err != nil {
		return nil, err
	}
	if len(active) >= e.cfg.MaxConcurrent {
		return nil, appErrors.NewCapacityExceeded(len(active), e.cfg.MaxConcurrent)
	}

	now := e.clock.Now()
	rx := &model.ReplayExecution{
		ID:        uuid.New().String(),
		PatternID: pattern.ID,
		Status:    model.ReplayQueued,
		StartedAt: now,
	}
	if err := e.replays.Create(rx); err != nil {
		return nil, err
	}

	plan, err := withTimeout(ctx, "plan-generator", e.cfg.CollaboratorTimeout,
		func(cctx context.Context) (model.CampaignSpec, error) {
			return e.plans.DerivePlan(cctx, pattern)
		})
	if err != nil {
		return e.fail(rx, fmt.Sprintf("plan derivation failed: %v", err))
	}
	rx.Plan = plan
	rx.Status = model.ReplayRunning
	if err := e.replays.Update(rx); err != nil {
		return nil, err
	}

	e.applyModifications(ctx, rx, cfg)

	predicted := pattern.ObservedROI
	if predicted <= 0 {
		predicted = pattern.Score
	}
	actual, launchErr := e.launch(rx, predicted)
	if launchErr != nil {
		return e.fail(rx, fmt.Sprintf("launch failed: %v", launchErr))
	}

	rx.Performance = model.ReplayPerformance{
		Predicted: predicted,
		Actual:    actual,
		Variance:  (actual - predicted) / predicted,
	}
	rx.Learnings = deriveLearnings(rx)
	rx.Status = model.ReplayCompleted
	ended := e.clock.Now()
	rx.EndedAt = &ended
	if err := e.replays.Update(rx); err != nil {
		return nil, err
	}

	e.feedBack(rx)
	e.storeLearnings(rx)
	e.logger.Info("replay completed",
		zap.String("replay_id", rx.ID),
		zap.String("pattern_id", pattern.ID),
		zap.Float64("variance", rx.Performance.Variance))
	return rx, nil
}

// applyModifications runs the content, timing and brand passes. Each failure
// is logged and skipped; the replay itself carries on.
func (e *Engine) applyModifications(ctx context.Context, rx *model.ReplayExecution, cfg ReplayConfig) {
	if cfg.RefreshContent && e.content != nil {
		res, err := withTimeout(ctx, "content-generator", e.cfg.CollaboratorTimeout,
			func(cctx context.Context) (ContentResult, error) {
				return e.content.GenerateContent(cctx, ContentRequest{
					CampaignName: rx.Plan.Name,
					ContentType:  rx.Plan.ContentType,
					Tone:         rx.Plan.Tone,
					Segments:     rx.Plan.TargetAudience.Segments,
				})
			})
		if err != nil {
			e.logger.Warn("content refresh not applied", zap.String("replay_id", rx.ID), zap.Error(err))
		} else if len(res.Variants) > 0 {
			rx.Modifications = append(rx.Modifications, model.Modification{
				Type:       model.ModContent,
				Before:     rx.Plan.Goal,
				After:      res.Variants[0],
				Rationale:  "content collaborator produced a fresher variant",
				Confidence: res.Confidence,
			})
		}
	}

	if cfg.OptimizeTiming && e.generator != nil {
		generated, err := e.generator.Generate(model.ScheduleRequest{
			CampaignID:     rx.Plan.Name,
			TargetAudience: rx.Plan.TargetAudience,
			ContentType:    rx.Plan.ContentType,
			Urgency:        model.UrgencyMedium,
		})
		if err != nil {
			e.logger.Warn("timing optimization not applied", zap.String("replay_id", rx.ID), zap.Error(err))
		} else if len(generated.Recommended) > 0 {
			best := generated.Recommended[0]
			rx.Modifications = append(rx.Modifications, model.Modification{
				Type:       model.ModTiming,
				Before:     "pattern's original send time",
				After:      best.Timestamp.Format(time.RFC3339),
				Rationale:  fmt.Sprintf("knowledge base favors %s for segment %q", best.Timestamp.Weekday(), best.Audience.Segment),
				Confidence: generated.ConfidenceScore,
			})
		}
	}

	if cfg.ValidateBrand && e.brand != nil {
		res, err := withTimeout(ctx, "brand-checker", e.cfg.CollaboratorTimeout,
			func(cctx context.Context) (BrandResult, error) {
				return e.brand.AnalyzeBrandCompliance(cctx, BrandRequest{
					CampaignName: rx.Plan.Name,
					Goal:         rx.Plan.Goal,
					Tone:         rx.Plan.Tone,
				})
			})
		if err != nil {
			e.logger.Warn("brand validation not applied", zap.String("replay_id", rx.ID), zap.Error(err))
		} else {
			after := "brand compliant"
			if len(res.Suggestions) > 0 {
				after = res.Suggestions[0]
			}
			rx.Modifications = append(rx.Modifications, model.Modification{
				Type:       model.ModAgentSequence,
				Before:     "unvalidated plan",
				After:      after,
				Rationale:  fmt.Sprintf("brand compliance scored %.2f", res.Score),
				Confidence: res.Confidence,
			})
		}
	}

	if err := e.replays.Update(rx); err != nil {
		e.logger.Error("failed to persist modifications", zap.String("replay_id", rx.ID), zap.Error(err))
	}
}

// launch either synthesizes performance around the prediction (simulation
// mode, bounded variance from the seeded source) or executes the plan
// through the coordinator for real.
func (e *Engine) launch(rx *model.ReplayExecution, predicted float64) (float64, error) {
	if e.cfg.SimulationMode || e.coord == nil {
		// Bounded +/-30% variance; modifications pull the draw upward in
		// proportion to their confidence.
		draw := (e.rand.Float64()*2 - 1) * 0.3
		var bump float64
		for _, m := range rx.Modifications {
			bump += m.Confidence * 0.05
		}
		return predicted * (1 + draw + bump), nil
	}

	exec, err := e.coord.Execute(rx.Plan)
	if err != nil {
		return 0, err
	}
	if exec.Spec.Budget > 0 {
		return exec.Metrics.Revenue / exec.Spec.Budget, nil
	}
	return exec.Metrics.Revenue, nil
}

// EnforceTimeouts force-fails any replay running past the hard ceiling.
func (e *Engine) EnforceTimeouts() {
	active, err := e.replays.ListActive()
	if err != nil {
		e.logger.Error("timeout sweep failed", zap.Error(err))
		return
	}
	now := e.clock.Now()
	for _, rx := range active {
		if now.Sub(rx.StartedAt) <= e.cfg.HardTimeout {
			continue
		}
		timeoutErr := appErrors.NewTimeout("replay "+rx.ID, e.cfg.HardTimeout)
		if _, err := e.fail(rx, timeoutErr.Error()); err != nil {
			e.logger.Error("failed to time out replay",
				zap.String("replay_id", rx.ID), zap.Error(err))
		}
	}
}

func (e *Engine) fail(rx *model.ReplayExecution, reason string) (*model.ReplayExecution, error) {
	rx.Status = model.ReplayFailed
	rx.FailureReason = reason
	ended := e.clock.Now()
	rx.EndedAt = &ended
	if err := e.replays.Update(rx); err != nil {
		return nil, err
	}
	e.logger.Warn("replay failed",
		zap.String("replay_id", rx.ID),
		zap.String("reason", reason))
	return rx, nil
}

// feedBack reports the replay outcome into the timing knowledge base so the
// learning loop closes even for simulated runs.
func (e *Engine) feedBack(rx *model.ReplayExecution) {
	if e.kb == nil || len(rx.Plan.TargetAudience.Segments) == 0 {
		return
	}
	conversion := rx.Performance.Actual / 100
	if conversion < 0 {
		conversion = 0
	}
	if conversion > 1 {
		conversion = 1
	}
	perf := model.PerformanceMetrics{
		ConversionRate: conversion,
		Confidence:     0.3 + rx.Performance.Variance*0.1,
		SampleSize:     rx.Plan.TargetAudience.Size,
	}
	if _, err := e.kb.RecordOutcome(rx.Plan.TargetAudience.Segments[0], rx.Plan.ContentType, rx.StartedAt, perf); err != nil {
		e.logger.Warn("failed to feed replay outcome back", zap.String("replay_id", rx.ID), zap.Error(err))
	}
}

func (e *Engine) storeLearnings(rx *model.ReplayExecution) {
	if e.memory == nil {
		return
	}
	entry := map[string]any{
		"pattern_id": rx.PatternID,
		"variance":   rx.Performance.Variance,
		"learnings":  rx.Learnings,
	}
	if err := e.memory.Store(learningsNamespace, rx.ID, entry, []string{"replay", rx.PatternID}); err != nil {
		e.logger.Warn("failed to store replay learnings", zap.Error(err))
	}
}

// deriveLearnings turns the outcome into free-text heuristics.
func deriveLearnings(rx *model.ReplayExecution) []string {
	var learnings []string
	v := rx.Performance.Variance

	hasMod := func(t model.ModificationType) bool {
		for _, m := range rx.Modifications {
			if m.Type == t {
				return true
			}
		}
		return false
	}

	switch {
	case v > 0.1:
		learnings = append(learnings, fmt.Sprintf("replay exceeded prediction by %.0f%%", v*100))
		if hasMod(model.ModContent) {
			learnings = append(learnings, "content modifications correlated with exceeding prediction")
		}
		if hasMod(model.ModTiming) {
			learnings = append(learnings, "timing optimization correlated with exceeding prediction")
		}
	case v < -0.1:
		learnings = append(learnings, fmt.Sprintf("replay underperformed prediction by %.0f%%", -v*100))
		if len(rx.Modifications) > 1 {
			learnings = append(learnings, "multiple modifications on one replay make attribution hard; consider isolating changes")
		}
	default:
		learnings = append(learnings, "replay performed close to prediction; pattern remains reliable")
	}
	return learnings
}
