package coordinator

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/KofiRusu/Neon-v2.2-sub005/internal/model"
)

// StepResult is what a step executor reports back. MetricsDelta is folded
// into the execution's accumulator on success.
type StepResult struct {
	MetricsDelta model.ExecutionMetrics
	Detail       string
}

// StepExecutor runs one step and returns synchronously. Implementations
// must not rely on elapsed wall time to signal completion.
type StepExecutor interface {
	ExecuteStep(step model.ExecutionStep, spec model.CampaignSpec) (StepResult, error)
}

// buildSteps derives the ordered step list for a campaign spec: one content
// pass, one brand check, then a send and a metrics collection per channel.
// Steps declare dependencies but always run sequentially.
func buildSteps(spec model.CampaignSpec) []model.ExecutionStep {
	steps := []model.ExecutionStep{
		{
			ID:      uuid.New().String(),
			AgentID: "content-agent",
			Action:  "generate_content",
			Status:  model.StepPending,
		},
		{
			ID:      uuid.New().String(),
			AgentID: "brand-agent",
			Action:  "validate_brand_voice",
			Status:  model.StepPending,
		},
	}
	steps[1].DependsOn = []string{steps[0].ID}

	brandID := steps[1].ID
	for _, channel := range spec.Channels {
		send := model.ExecutionStep{
			ID:        uuid.New().String(),
			AgentID:   channel + "-agent",
			Action:    fmt.Sprintf("send_%s", channel),
			DependsOn: []string{brandID},
			Status:    model.StepPending,
		}
		collect := model.ExecutionStep{
			ID:        uuid.New().String(),
			AgentID:   "analytics-agent",
			Action:    fmt.Sprintf("collect_%s_metrics", channel),
			DependsOn: []string{send.ID},
			Status:    model.StepPending,
		}
		steps = append(steps, send, collect)
	}
	return steps
}

// SimulatedStepExecutor synthesizes step outcomes from a seedable source so
// runs are reproducible in tests. Send steps produce delivery metrics
// proportional to the target audience size.
type SimulatedStepExecutor struct {
	Rand        *rand.Rand
	FailureRate float64
}

func NewSimulatedStepExecutor(src rand.Source, failureRate float64) *SimulatedStepExecutor {
	return &SimulatedStepExecutor{Rand: rand.New(src), FailureRate: failureRate}
}

func (e *SimulatedStepExecutor) ExecuteStep(step model.ExecutionStep, spec model.CampaignSpec) (StepResult, error) {
	if e.FailureRate > 0 && e.Rand.Float64() < e.FailureRate {
		return StepResult{}, fmt.Errorf("simulated %s failure", step.Action)
	}

	var delta model.ExecutionMetrics
	if len(step.Action) > 5 && step.Action[:5] == "send_" {
		size := spec.TargetAudience.Size
		if size <= 0 {
			size = 100
		}
		delivered := int(float64(size) * (0.9 + e.Rand.Float64()*0.1))
		opened := int(float64(delivered) * (0.15 + e.Rand.Float64()*0.25))
		clicked := int(float64(opened) * (0.1 + e.Rand.Float64()*0.2))
		converted := int(float64(clicked) * (0.05 + e.Rand.Float64()*0.15))
		delta = model.ExecutionMetrics{
			Delivered: delivered,
			Opened:    opened,
			Clicked:   clicked,
			Converted: converted,
			Revenue:   float64(converted) * (20 + e.Rand.Float64()*80),
		}
	}
	return StepResult{MetricsDelta: delta, Detail: step.Action + " ok"}, nil
}

var _ StepExecutor = (*SimulatedStepExecutor)(nil)
