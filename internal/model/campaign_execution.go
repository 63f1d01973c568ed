package model

import "time"

// ExecutionStatus is the lifecycle state of a campaign execution.
// Transitions are one-directional: scheduled -> running -> terminal.
type ExecutionStatus string

const (
	ExecutionScheduled ExecutionStatus = "scheduled"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// Terminal reports whether no further status mutation is allowed.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed || s == ExecutionCancelled
}

// CampaignSpec is the inbound campaign specification supplied by the caller.
type CampaignSpec struct {
	Name           string         `json:"name"`
	Goal           string         `json:"goal"`
	Channels       []string       `json:"channels"`
	TargetAudience TargetAudience `json:"target_audience"`
	ContentType    string         `json:"content_type"`
	Budget         float64        `json:"budget"`
	Tone           string         `json:"tone"`
	Priority       int            `json:"priority"`
}

// StepStatus is the outcome of one execution step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// ExecutionStep is one unit of work inside a campaign execution. Steps run
// strictly sequentially even when DependsOn would allow parallelism.
type ExecutionStep struct {
	ID        string     `json:"id"`
	AgentID   string     `json:"agent_id"`
	Action    string     `json:"action"`
	DependsOn []string   `json:"depends_on,omitempty"`
	Status    StepStatus `json:"status"`
	Error     string     `json:"error,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// ExecutionMetrics accumulates delivery and engagement counters while an
// execution runs.
type ExecutionMetrics struct {
	Delivered int     `json:"delivered"`
	Opened    int     `json:"opened"`
	Clicked   int     `json:"clicked"`
	Converted int     `json:"converted"`
	Revenue   float64 `json:"revenue"`
}

// ActivityEntry is one line of an execution's ordered activity log.
type ActivityEntry struct {
	At      time.Time `json:"at"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// CampaignExecution is the coordinator-owned record of one running or
// finished campaign. Progress is 0-100 and monotonic while running.
type CampaignExecution struct {
	ID           string           `json:"id"`
	CampaignID   string           `json:"campaign_id"`
	Spec         CampaignSpec     `json:"spec"`
	Status       ExecutionStatus  `json:"status"`
	Progress     int              `json:"progress"`
	Steps        []ExecutionStep  `json:"steps"`
	Metrics      ExecutionMetrics `json:"metrics"`
	Activity     []ActivityEntry  `json:"activity"`
	CancelWanted bool             `json:"cancel_wanted"`
	StartedAt    time.Time        `json:"started_at"`
	EndedAt      *time.Time       `json:"ended_at,omitempty"`
}
