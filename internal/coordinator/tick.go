package coordinator

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/KofiRusu/Neon-v2.2-sub005/internal/errors"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/model"
)

// Tick runs the periodic health pass over running executions. All three
// checks only log and flag; none auto-aborts. Per-execution failures are
// caught so one bad record never halts the loop.
func (c *Coordinator) Tick() {
	running, err := c.executions.ListByStatus(model.ExecutionRunning)
	if err != nil {
		c.logger.Error("tick: failed to list running executions", zap.Error(err))
		return
	}
	now := c.clock.Now()

	for _, exec := range running {
		age := now.Sub(exec.StartedAt)

		// Stuck progress: zero progress past the age threshold triggers a
		// logged recovery attempt without changing state.
		if exec.Progress == 0 && age > c.cfg.StuckAfter {
			c.logActivity(exec, "warn", fmt.Sprintf(
				"recovery attempted: no progress after %s", age.Round(c.cfg.StuckAfter/10)))
			c.logger.Warn("tick: execution stuck, recovery attempted",
				zap.String("execution_id", exec.ID),
				zap.Duration("age", age))
		}

		m := exec.Metrics
		if m.Delivered >= c.cfg.MinHealthSample {
			openRate := float64(m.Opened) / float64(m.Delivered)
			if openRate < c.cfg.EngagementFloor {
				c.logActivity(exec, "warn", fmt.Sprintf(
					"low engagement: open rate %.3f below floor %.3f", openRate, c.cfg.EngagementFloor))
				c.logger.Warn("tick: low engagement",
					zap.String("execution_id", exec.ID),
					zap.Float64("open_rate", openRate))
			}
			bounceRate := float64(m.Delivered-m.Opened) / float64(m.Delivered)
			if bounceRate > c.cfg.BounceCeiling {
				c.logActivity(exec, "warn", fmt.Sprintf(
					"high bounce: %.3f above ceiling %.3f", bounceRate, c.cfg.BounceCeiling))
				c.logger.Warn("tick: high bounce",
					zap.String("execution_id", exec.ID),
					zap.Float64("bounce_rate", bounceRate))
			}
		}

		if err := c.executions.Update(exec); err != nil {
			c.logger.Error("tick: failed to persist health flags",
				zap.String("execution_id", exec.ID), zap.Error(err))
		}
	}
}

// ProcessDue attempts every due schedule in priority order. A schedule that
// cannot run because capacity is full stays scheduled and is retried next
// sweep: deferred, not failed. On successful completion of a recurring
// schedule the next occurrence is re-enqueued unless past its end date.
func (c *Coordinator) ProcessDue() {
	now := c.clock.Now()
	due, err := c.schedules.ListDue(now)
	if err != nil {
		c.logger.Error("processDue: failed to list due schedules", zap.Error(err))
		return
	}

	for _, sched := range due {
		if err := c.processSchedule(sched); err != nil {
			if appErrors.IsRetryable(err) {
				c.logger.Info("processDue: capacity full, deferring schedule",
					zap.String("schedule_id", sched.ID))
				continue
			}
			c.logger.Error("processDue: schedule failed",
				zap.String("schedule_id", sched.ID), zap.Error(err))
		}
	}
}

func (c *Coordinator) processSchedule(sched *model.CampaignSchedule) error {
	exec, err := c.Execute(sched.Spec)
	if err != nil {
		return err
	}

	now := c.clock.Now()
	sched.Status = model.ScheduleExecuted
	sched.UpdatedAt = &now
	if err := c.schedules.Update(sched); err != nil {
		return err
	}

	if sched.Recurrence != nil && exec.Status == model.ExecutionCompleted {
		next := sched.Recurrence.Next(sched.ScheduledTime)
		if sched.Recurrence.EndDate != nil && next.After(*sched.Recurrence.EndDate) {
			c.logger.Info("recurrence finished",
				zap.String("schedule_id", sched.ID),
				zap.Time("end_date", *sched.Recurrence.EndDate))
			return nil
		}
		// Fresh id per occurrence keeps the executed record intact.
		renewed := &model.CampaignSchedule{
			ID:            uuid.New().String(),
			CampaignID:    sched.CampaignID,
			Spec:          sched.Spec,
			ScheduledTime: next,
			Status:        model.ScheduleActive,
			Priority:      sched.Priority,
			Recurrence:    sched.Recurrence,
			CreatedAt:     now,
		}
		if err := c.schedules.Create(renewed); err != nil {
			return err
		}
		c.logger.Info("recurring schedule re-enqueued",
			zap.String("schedule_id", renewed.ID),
			zap.Time("next", next))
	}
	return nil
}

// CampaignStatus is the structured summary for the dashboard surface.
type CampaignStatus struct {
	ActiveExecutions int                           `json:"active_executions"`
	MaxConcurrent    int                           `json:"max_concurrent"`
	Utilization      float64                       `json:"utilization"`
	ScheduledBacklog int                           `json:"scheduled_backlog"`
	StatusCounts     map[model.ExecutionStatus]int `json:"status_counts"`
	Executions       []ExecutionSummary            `json:"executions"`
}

// ExecutionSummary is one row of the status report.
type ExecutionSummary struct {
	ID       string                 `json:"id"`
	Campaign string                 `json:"campaign"`
	Status   model.ExecutionStatus  `json:"status"`
	Progress int                    `json:"progress"`
	Metrics  model.ExecutionMetrics `json:"metrics"`
}

// GetCampaignStatus reports counts, utilization and per-execution progress.
func (c *Coordinator) GetCampaignStatus() (*CampaignStatus, error) {
	all, err := c.executions.ListAll()
	if err != nil {
		return nil, err
	}
	pending, err := c.schedules.ListByStatus(model.ScheduleActive)
	if err != nil {
		return nil, err
	}

	status := &CampaignStatus{
		MaxConcurrent:    c.cfg.MaxConcurrent,
		ScheduledBacklog: len(pending),
		StatusCounts:     make(map[model.ExecutionStatus]int),
	}
	for _, exec := range all {
		status.StatusCounts[exec.Status]++
		if exec.Status == model.ExecutionRunning {
			status.ActiveExecutions++
		}
		status.Executions = append(status.Executions, ExecutionSummary{
			ID:       exec.ID,
			Campaign: exec.CampaignID,
			Status:   exec.Status,
			Progress: exec.Progress,
			Metrics:  exec.Metrics,
		})
	}
	if c.cfg.MaxConcurrent > 0 {
		status.Utilization = float64(status.ActiveExecutions) / float64(c.cfg.MaxConcurrent)
	}
	return status, nil
}
