package model

import "time"

// CampaignPattern is a scored historical configuration eligible for replay.
// Patterns are read-only input fetched from an external pattern store.
type CampaignPattern struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Score           float64      `json:"score"`
	WinningVariants []string     `json:"winning_variants,omitempty"`
	Segments        []string     `json:"segments,omitempty"`
	Spec            CampaignSpec `json:"spec"`
	ObservedROI     float64      `json:"observed_roi"`
	LastSeenAt      time.Time    `json:"last_seen_at"`
}

// ReplayStatus is the lifecycle state of a replay execution.
type ReplayStatus string

const (
	ReplayQueued    ReplayStatus = "queued"
	ReplayRunning   ReplayStatus = "running"
	ReplayCompleted ReplayStatus = "completed"
	ReplayFailed    ReplayStatus = "failed"
	ReplayCancelled ReplayStatus = "cancelled"
)

// Terminal reports whether the replay reached a final state.
func (s ReplayStatus) Terminal() bool {
	return s == ReplayCompleted || s == ReplayFailed || s == ReplayCancelled
}

// ModificationType enumerates the kinds of changes a replay may apply to a
// cloned pattern.
type ModificationType string

const (
	ModContent       ModificationType = "content"
	ModTiming        ModificationType = "timing"
	ModAudience      ModificationType = "audience"
	ModBudget        ModificationType = "budget"
	ModAgentSequence ModificationType = "agent_sequence"
)

// Modification records one change applied while deriving a replay plan.
type Modification struct {
	Type       ModificationType `json:"type"`
	Before     string           `json:"before"`
	After      string           `json:"after"`
	Rationale  string           `json:"rationale"`
	Confidence float64          `json:"confidence"`
}

// ReplayPerformance compares what a replay achieved against what the source
// pattern predicted. Variance = (actual - predicted) / predicted.
type ReplayPerformance struct {
	Predicted float64 `json:"predicted"`
	Actual    float64 `json:"actual"`
	Variance  float64 `json:"variance"`
}

// ReplayExecution tracks one cloned-and-mutated run of a historical pattern.
type ReplayExecution struct {
	ID            string            `json:"id"`
	PatternID     string            `json:"pattern_id"`
	Plan          CampaignSpec      `json:"plan"`
	Status        ReplayStatus      `json:"status"`
	Modifications []Modification    `json:"modifications"`
	Performance   ReplayPerformance `json:"performance"`
	Learnings     []string          `json:"learnings,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
	StartedAt     time.Time         `json:"started_at"`
	EndedAt       *time.Time        `json:"ended_at,omitempty"`
}

// ReplayAnalytics aggregates replay outcomes over a window.
type ReplayAnalytics struct {
	Window           time.Duration            `json:"window"`
	TotalReplays     int                      `json:"total_replays"`
	SuccessRate      float64                  `json:"success_rate"`
	MeanROI          float64                  `json:"mean_roi"`
	TopPatterns      []PatternROI             `json:"top_patterns"`
	ModificationFreq map[ModificationType]int `json:"modification_freq"`
	Recommendations  []string                 `json:"recommendations"`
}

// PatternROI ranks one pattern by its mean replay ROI.
type PatternROI struct {
	PatternID string  `json:"pattern_id"`
	MeanROI   float64 `json:"mean_roi"`
	Replays   int     `json:"replays"`
}
