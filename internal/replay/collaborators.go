package replay

import (
	"context"
	"time"

	appErrors "github.com/KofiRusu/Neon-v2.2-sub005/internal/errors"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/model"
)

// PatternStore is the read-only source of replay opportunities.
type PatternStore interface {
	GetPatternsByScore(ctx context.Context, minScore float64) ([]model.CampaignPattern, error)
}

// PlanGenerator derives a runnable campaign plan from a historical pattern.
type PlanGenerator interface {
	DerivePlan(ctx context.Context, pattern model.CampaignPattern) (model.CampaignSpec, error)
}

// ContentRequest asks the content collaborator for refreshed variants.
type ContentRequest struct {
	CampaignName string   `json:"campaign_name"`
	ContentType  string   `json:"content_type"`
	Tone         string   `json:"tone"`
	Segments     []string `json:"segments"`
}

// ContentResult is the content collaborator's response.
type ContentResult struct {
	Variants   []string `json:"variants"`
	Confidence float64  `json:"confidence"`
}

// ContentGenerator is the synchronous content collaborator contract.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, req ContentRequest) (ContentResult, error)
}

// BrandRequest asks the brand collaborator to score a plan.
type BrandRequest struct {
	CampaignName string `json:"campaign_name"`
	Goal         string `json:"goal"`
	Tone         string `json:"tone"`
}

// BrandResult is the brand collaborator's response.
type BrandResult struct {
	Score       float64  `json:"score"`
	Suggestions []string `json:"suggestions"`
	Confidence  float64  `json:"confidence"`
}

// BrandChecker is the synchronous brand-compliance collaborator contract.
type BrandChecker interface {
	AnalyzeBrandCompliance(ctx context.Context, req BrandRequest) (BrandResult, error)
}

// withTimeout invokes a collaborator call under a bounded deadline and wraps
// any failure as a CollaboratorError. A failed collaborator degrades the
// cycle (modification skipped), it never aborts it.
func withTimeout[T any](ctx context.Context, name string, timeout time.Duration, call func(context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := call(cctx)
	if err != nil {
		var zero T
		return zero, appErrors.NewCollaborator(name, err)
	}
	return out, nil
}
