package replay

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/KofiRusu/Neon-v2.2-sub005/internal/model"
)

// InMemoryPatternStore is a settable pattern source for simulation mode and
// tests. Production deployments inject a remote store instead.
type InMemoryPatternStore struct {
	mu       sync.RWMutex
	patterns []model.CampaignPattern
}

func NewInMemoryPatternStore(patterns ...model.CampaignPattern) *InMemoryPatternStore {
	return &InMemoryPatternStore{patterns: patterns}
}

func (s *InMemoryPatternStore) Add(p model.CampaignPattern) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = append(s.patterns, p)
}

func (s *InMemoryPatternStore) GetPatternsByScore(ctx context.Context, minScore float64) ([]model.CampaignPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.CampaignPattern
	for _, p := range s.patterns {
		if p.Score >= minScore {
			out = append(out, p)
		}
	}
	return out, nil
}

// SpecPlanGenerator derives the replay plan directly from the pattern's
// recorded spec, renaming it so the clone is distinguishable.
type SpecPlanGenerator struct{}

func (SpecPlanGenerator) DerivePlan(ctx context.Context, pattern model.CampaignPattern) (model.CampaignSpec, error) {
	if pattern.Spec.Goal == "" {
		return model.CampaignSpec{}, fmt.Errorf("pattern %s carries no spec", pattern.ID)
	}
	plan := pattern.Spec
	plan.Name = pattern.Spec.Name + "-replay"
	return plan, nil
}

// SimulatedContentGenerator synthesizes content variants from a seedable
// source so simulated replays are reproducible.
type SimulatedContentGenerator struct {
	Rand *rand.Rand
}

func (g *SimulatedContentGenerator) GenerateContent(ctx context.Context, req ContentRequest) (ContentResult, error) {
	variant := fmt.Sprintf("%s refresh #%d (%s tone)", req.CampaignName, g.Rand.Intn(1000), req.Tone)
	return ContentResult{
		Variants:   []string{variant},
		Confidence: 0.6 + g.Rand.Float64()*0.3,
	}, nil
}

// SimulatedBrandChecker returns a bounded random compliance score.
type SimulatedBrandChecker struct {
	Rand *rand.Rand
}

func (b *SimulatedBrandChecker) AnalyzeBrandCompliance(ctx context.Context, req BrandRequest) (BrandResult, error) {
	score := 0.7 + b.Rand.Float64()*0.3
	res := BrandResult{Score: score, Confidence: 0.8}
	if score < 0.85 {
		res.Suggestions = []string{fmt.Sprintf("soften the %s tone for brand consistency", req.Tone)}
	}
	return res, nil
}

var (
	_ PatternStore     = (*InMemoryPatternStore)(nil)
	_ PlanGenerator    = SpecPlanGenerator{}
	_ ContentGenerator = (*SimulatedContentGenerator)(nil)
	_ BrandChecker     = (*SimulatedBrandChecker)(nil)
)
