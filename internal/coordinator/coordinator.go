// Package coordinator implements the campaign execution state machine:
// validated scheduling, capacity-bounded sequential step execution, health
// monitoring on a periodic tick, and recurrence handling.
package coordinator

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KofiRusu/Neon-v2.2-sub005/internal/clock"
	appErrors "github.com/KofiRusu/Neon-v2.2-sub005/internal/errors"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/model"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/queue"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/repository"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/scheduler"
)

const (
	// OutcomeTopic is where terminal execution outcomes are published.
	OutcomeTopic = "campaign_outcomes"

	auditNamespace = "execution_audit"
)

// Config bounds and tunes the coordinator.
type Config struct {
	MaxConcurrent   int
	StuckAfter      time.Duration
	EngagementFloor float64
	BounceCeiling   float64
	MinHealthSample int
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrent:   10,
		StuckAfter:      10 * time.Minute,
		EngagementFloor: 0.05,
		BounceCeiling:   0.9,
		MinHealthSample: 100,
	}
}

// ScheduleOptions carries optional scheduling parameters.
type ScheduleOptions struct {
	Priority   int
	Recurrence *model.Recurrence
}

// ScheduleResult pairs the persisted schedule with validation warnings and
// recommendations. Warnings never block scheduling.
type ScheduleResult struct {
	Schedule        *model.CampaignSchedule `json:"schedule"`
	Warnings        []string                `json:"warnings,omitempty"`
	Recommendations []string                `json:"recommendations,omitempty"`
}

// Coordinator owns all campaign executions and pending schedules. It is
// designed for a single active instance; its concurrency bound is an
// in-memory counter, not a distributed lock.
type Coordinator struct {
	executions repository.ExecutionRepository
	schedules  repository.ScheduleRepository
	generator  *scheduler.Generator
	executor   StepExecutor
	templates  *TemplateRegistry
	bus        queue.Queue
	memory     repository.MemoryStore
	clock      clock.Clock
	logger     *zap.Logger
	cfg        Config
}

func New(
	executions repository.ExecutionRepository,
	schedules repository.ScheduleRepository,
	generator *scheduler.Generator,
	executor StepExecutor,
	bus queue.Queue,
	memory repository.MemoryStore,
	clk clock.Clock,
	logger *zap.Logger,
	cfg Config,
) *Coordinator {
	if clk == nil {
		clk = clock.Real{}
	}
	if cfg.MaxConcurrent <= 0 {
		cfg = DefaultConfig()
	}
	return &Coordinator{
		executions: executions,
		schedules:  schedules,
		generator:  generator,
		executor:   executor,
		templates:  DefaultTemplates(),
		bus:        bus,
		memory:     memory,
		clock:      clk,
		logger:     logger,
		cfg:        cfg,
	}
}

// Schedule validates the spec and persists a CampaignSchedule. Validation
// failures reject synchronously before any state object is created; template
// and plausibility findings are warnings only. A zero `when` asks the
// schedule generator for the best slot.
func (c *Coordinator) Schedule(spec model.CampaignSpec, when time.Time, opts ScheduleOptions) (*ScheduleResult, error) {
	if spec.Goal == "" {
		return nil, appErrors.NewValidation("goal", "must not be empty")
	}
	if len(spec.Channels) == 0 {
		return nil, appErrors.NewValidation("channels", "at least one channel required")
	}
	if len(spec.TargetAudience.Segments) == 0 {
		return nil, appErrors.NewValidation("target_audience", "at least one segment required")
	}
	if opts.Recurrence != nil {
		switch opts.Recurrence.Interval {
		case model.RecurDaily, model.RecurWeekly, model.RecurMonthly:
		default:
			return nil, appErrors.NewValidation("recurrence.interval",
				fmt.Sprintf("unknown interval %q", opts.Recurrence.Interval))
		}
	}

	var warnings, recommendations []string
	if tpl := c.templates.Match(spec.Goal); tpl != nil {
		if unsupported := tpl.UnsupportedChannels(spec.Channels); len(unsupported) > 0 {
			warnings = append(warnings, fmt.Sprintf(
				"template %q does not support channels %v", tpl.Name, unsupported))
		}
	}
	warnings, recommendations = c.checkPlausibility(spec, warnings, recommendations)

	now := c.clock.Now()
	if when.IsZero() {
		generated, err := c.generator.Generate(model.ScheduleRequest{
			CampaignID:     spec.Name,
			TargetAudience: spec.TargetAudience,
			ContentType:    spec.ContentType,
			Urgency:        model.UrgencyMedium,
		})
		if err != nil {
			return nil, err
		}
		if len(generated.Recommended) > 0 {
			when = generated.Recommended[0].Timestamp
		} else {
			when = now.Add(time.Hour)
		}
	}

	sched := &model.CampaignSchedule{
		ID:            uuid.New().String(),
		CampaignID:    spec.Name,
		Spec:          spec,
		ScheduledTime: when,
		Status:        model.ScheduleActive,
		Priority:      opts.Priority,
		Recurrence:    opts.Recurrence,
		CreatedAt:     now,
	}
	if err := c.schedules.Create(sched); err != nil {
		return nil, err
	}

	c.auditStore("schedule_created", sched.ID, map[string]any{
		"campaign":       spec.Name,
		"scheduled_time": when,
		"priority":       opts.Priority,
		"warnings":       warnings,
	})
	c.logger.Info("campaign scheduled",
		zap.String("schedule_id", sched.ID),
		zap.String("campaign", spec.Name),
		zap.Time("at", when),
		zap.Int("warnings", len(warnings)))

	return &ScheduleResult{Schedule: sched, Warnings: warnings, Recommendations: recommendations}, nil
}

func (c *Coordinator) checkPlausibility(spec model.CampaignSpec, warnings, recommendations []string) ([]string, []string) {
	if spec.Budget <= 0 {
		warnings = append(warnings, "budget is zero; paid channels will be skipped by downstream agents")
	}
	if spec.TargetAudience.Size <= 0 {
		warnings = append(warnings, "target audience size is zero or unknown")
		recommendations = append(recommendations, "resolve segment sizes before launch for meaningful health checks")
	} else if spec.Budget > 0 {
		perHead := spec.Budget / float64(spec.TargetAudience.Size)
		if perHead < 0.01 {
			warnings = append(warnings, fmt.Sprintf(
				"budget works out to %.4f per recipient; engagement may suffer", perHead))
			recommendations = append(recommendations, "narrow the audience or raise the budget")
		}
	}
	return warnings, recommendations
}

// Execute launches the campaign immediately. It is rejected with
// CapacityExceeded when the running count is at the configured maximum.
// Steps run strictly sequentially; a failing step is flagged failed but does
// not abort the rest, and the execution still completes once every step has
// been attempted.
func (c *Coordinator) Execute(spec model.CampaignSpec) (*model.CampaignExecution, error) {
	if spec.Goal == "" {
		return nil, appErrors.NewValidation("goal", "must not be empty")
	}
	if len(spec.Channels) == 0 {
		return nil, appErrors.NewValidation("channels", "at least one channel required")
	}

	running, err := c.executions.CountRunning()
	if err != nil {
		return nil, err
	}
	if running >= c.cfg.MaxConcurrent {
		return nil, appErrors.NewCapacityExceeded(running, c.cfg.MaxConcurrent)
	}

	now := c.clock.Now()
	exec := &model.CampaignExecution{
		ID:         uuid.New().String(),
		CampaignID: spec.Name,
		Spec:       spec,
		Status:     model.ExecutionRunning,
		Steps:      buildSteps(spec),
		StartedAt:  now,
	}
	c.logActivity(exec, "info", fmt.Sprintf("execution started with %d steps", len(exec.Steps)))
	if err := c.executions.Create(exec); err != nil {
		return nil, err
	}

	c.runSteps(exec)
	return c.executions.GetByID(exec.ID)
}

// runSteps drives the ordered step list to completion. Cancellation intent
// is honored between steps; a step is never preempted mid-flight.
func (c *Coordinator) runSteps(exec *model.CampaignExecution) {
	total := len(exec.Steps)
	failedSteps := 0

	for i := range exec.Steps {
		if c.cancelRequested(exec.ID) {
			exec.CancelWanted = true
			for j := i; j < total; j++ {
				exec.Steps[j].Status = model.StepSkipped
			}
			c.finish(exec, model.ExecutionCancelled, "cancelled by request")
			return
		}

		step := &exec.Steps[i]
		started := c.clock.Now()
		step.Status = model.StepRunning
		step.StartedAt = &started

		result, err := c.executor.ExecuteStep(*step, exec.Spec)
		ended := c.clock.Now()
		step.EndedAt = &ended

		if err != nil {
			// Lenient policy: the step is flagged failed, the execution
			// carries on and still completes.
			step.Status = model.StepFailed
			stepErr := appErrors.NewStepExecution(step.ID, step.AgentID, err)
			step.Error = stepErr.Error()
			failedSteps++
			c.logActivity(exec, "error", stepErr.Error())
			c.logger.Warn("execution step failed",
				zap.String("execution_id", exec.ID),
				zap.String("agent", step.AgentID),
				zap.Error(err))
		} else {
			step.Status = model.StepCompleted
			exec.Metrics.Delivered += result.MetricsDelta.Delivered
			exec.Metrics.Opened += result.MetricsDelta.Opened
			exec.Metrics.Clicked += result.MetricsDelta.Clicked
			exec.Metrics.Converted += result.MetricsDelta.Converted
			exec.Metrics.Revenue += result.MetricsDelta.Revenue
			c.logActivity(exec, "info", fmt.Sprintf("step %s completed: %s", step.Action, result.Detail))
		}

		// Progress is monotonic non-decreasing while running.
		progress := (i + 1) * 100 / total
		if progress > exec.Progress {
			exec.Progress = progress
		}
		// Re-read cancel intent so the local copy never clobbers a flag
		// set while the step was running.
		if c.cancelRequested(exec.ID) {
			exec.CancelWanted = true
		}
		if err := c.executions.Update(exec); err != nil {
			c.logger.Error("failed to persist step progress",
				zap.String("execution_id", exec.ID), zap.Error(err))
		}
	}

	summary := fmt.Sprintf("all %d steps attempted, %d failed", total, failedSteps)
	c.finish(exec, model.ExecutionCompleted, summary)
}

func (c *Coordinator) cancelRequested(id string) bool {
	current, err := c.executions.GetByID(id)
	if err != nil {
		return false
	}
	return current.CancelWanted
}

// finish moves an execution into a terminal state, publishes its outcome
// and records an audit summary. Terminal executions are never mutated again.
func (c *Coordinator) finish(exec *model.CampaignExecution, status model.ExecutionStatus, note string) {
	now := c.clock.Now()
	exec.Status = status
	exec.EndedAt = &now
	if status == model.ExecutionCompleted {
		exec.Progress = 100
	}
	c.logActivity(exec, "info", note)
	if err := c.executions.Update(exec); err != nil {
		c.logger.Error("failed to persist terminal execution",
			zap.String("execution_id", exec.ID), zap.Error(err))
		return
	}

	c.publishOutcome(exec)
	c.auditStore("execution_finished", exec.ID, map[string]any{
		"campaign": exec.CampaignID,
		"status":   status,
		"metrics":  exec.Metrics,
		"note":     note,
	})
	c.logger.Info("execution finished",
		zap.String("execution_id", exec.ID),
		zap.String("status", string(status)),
		zap.Int("delivered", exec.Metrics.Delivered))
}

func (c *Coordinator) publishOutcome(exec *model.CampaignExecution) {
	if c.bus == nil {
		return
	}
	perf := outcomePerformance(exec.Metrics)
	segment := ""
	if len(exec.Spec.TargetAudience.Segments) > 0 {
		segment = exec.Spec.TargetAudience.Segments[0]
	}
	event := model.OutcomeEvent{
		ExecutionID:  exec.ID,
		CampaignID:   exec.CampaignID,
		Segment:      segment,
		ContentType:  exec.Spec.ContentType,
		ObservedTime: exec.StartedAt,
		Performance:  perf,
		Status:       exec.Status,
	}
	if err := c.bus.Publish(OutcomeTopic, event); err != nil {
		c.logger.Warn("failed to publish outcome event",
			zap.String("execution_id", exec.ID), zap.Error(err))
	}
}

// outcomePerformance converts raw counters into rates for the knowledge base.
func outcomePerformance(m model.ExecutionMetrics) model.PerformanceMetrics {
	perf := model.PerformanceMetrics{SampleSize: m.Delivered}
	if m.Delivered > 0 {
		perf.OpenRate = float64(m.Opened) / float64(m.Delivered)
		perf.ClickRate = float64(m.Clicked) / float64(m.Delivered)
		perf.ConversionRate = float64(m.Converted) / float64(m.Delivered)
	}
	return perf
}

// CancelSchedule removes a not-yet-due schedule from the pending set.
func (c *Coordinator) CancelSchedule(id string) error {
	sched, err := c.schedules.GetByID(id)
	if err != nil {
		return err
	}
	if sched.Status != model.ScheduleActive {
		return appErrors.NewValidation("status",
			fmt.Sprintf("schedule is %s, only scheduled ones can be cancelled", sched.Status))
	}
	sched.Status = model.ScheduleCancelled
	now := c.clock.Now()
	sched.UpdatedAt = &now
	if err := c.schedules.Update(sched); err != nil {
		return err
	}
	c.logger.Info("schedule cancelled", zap.String("schedule_id", id))
	return nil
}

// CancelExecution sets cancel intent on a running execution. Step execution
// is not preemptible mid-step; the intent takes effect at the next step
// boundary.
func (c *Coordinator) CancelExecution(id string) error {
	exec, err := c.executions.GetByID(id)
	if err != nil {
		return err
	}
	if exec.Status.Terminal() {
		return appErrors.NewValidation("status",
			fmt.Sprintf("execution already %s", exec.Status))
	}
	exec.CancelWanted = true
	c.logActivity(exec, "warn", "cancellation requested")
	return c.executions.Update(exec)
}

func (c *Coordinator) logActivity(exec *model.CampaignExecution, level, msg string) {
	exec.Activity = append(exec.Activity, model.ActivityEntry{
		At:      c.clock.Now(),
		Level:   level,
		Message: msg,
	})
}

func (c *Coordinator) auditStore(key, id string, value map[string]any) {
	if c.memory == nil {
		return
	}
	if err := c.memory.Store(auditNamespace, key+":"+id, value, []string{"coordinator", key}); err != nil {
		c.logger.Warn("failed to record coordinator audit entry", zap.Error(err))
	}
}

// GetExecution returns one execution by id.
func (c *Coordinator) GetExecution(id string) (*model.CampaignExecution, error) {
	return c.executions.GetByID(id)
}

// GetSchedule returns one schedule by id.
func (c *Coordinator) GetSchedule(id string) (*model.CampaignSchedule, error) {
	return c.schedules.GetByID(id)
}

// ListSchedules returns schedules in the given status.
func (c *Coordinator) ListSchedules(status model.ScheduleStatus) ([]*model.CampaignSchedule, error) {
	return c.schedules.ListByStatus(status)
}
