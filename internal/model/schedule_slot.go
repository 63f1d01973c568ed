package model

import "time"

// Urgency controls how aggressively the generator projects an abstract
// optimal time onto the calendar.
type Urgency string

const (
	UrgencyLow       Urgency = "low"
	UrgencyMedium    Urgency = "medium"
	UrgencyHigh      Urgency = "high"
	UrgencyImmediate Urgency = "immediate"
)

// SlotPriority tiers a slot inside a generated schedule.
type SlotPriority string

const (
	SlotPrimary   SlotPriority = "primary"
	SlotSecondary SlotPriority = "secondary"
	SlotFallback  SlotPriority = "fallback"
)

// AudienceRef identifies the audience a slot targets.
type AudienceRef struct {
	Segment            string  `json:"segment"`
	Size               int     `json:"size"`
	ExpectedEngagement float64 `json:"expected_engagement"`
}

// SlotPerformance pairs the historical rates a slot was derived from with
// the generator's prediction for it.
type SlotPerformance struct {
	Historical PerformanceMetrics `json:"historical"`
	Predicted  PerformanceMetrics `json:"predicted"`
}

// ScheduleSlot is a concrete, ready-to-act send recommendation. Slots are
// ephemeral: generated per request and discarded once the caller acts.
type ScheduleSlot struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Timezone    string          `json:"timezone"`
	Audience    AudienceRef     `json:"audience"`
	Priority    SlotPriority    `json:"priority"`
	Performance SlotPerformance `json:"performance"`
}

// TargetAudience describes who a schedule request is for.
type TargetAudience struct {
	Segments []string `json:"segments"`
	Timezone string   `json:"timezone"`
	Size     int      `json:"size"`
}

// ScheduleConstraints restricts which timestamps are acceptable. A slot
// violating any constraint is excluded outright, never degraded.
type ScheduleConstraints struct {
	BusinessHoursOnly bool        `json:"business_hours_only"`
	WeekendsAllowed   bool        `json:"weekends_allowed"`
	BlackoutDates     []time.Time `json:"blackout_dates,omitempty"`
	MaxSendsPerDay    int         `json:"max_sends_per_day"`
}

// ScheduleRequest is the input to ScheduleGenerator.Generate.
type ScheduleRequest struct {
	CampaignID     string               `json:"campaign_id"`
	TargetAudience TargetAudience       `json:"target_audience"`
	ContentType    string               `json:"content_type"`
	Urgency        Urgency              `json:"urgency"`
	Constraints    *ScheduleConstraints `json:"constraints,omitempty"`
}

// AlternativeStrategy is one of the conservative/aggressive/balanced slates
// produced alongside the primary recommendation.
type AlternativeStrategy struct {
	Name      string         `json:"name"`
	Slots     []ScheduleSlot `json:"slots"`
	Rationale string         `json:"rationale"`
}

// GeneratedSchedule is the full output of one Generate call.
type GeneratedSchedule struct {
	CampaignID      string                `json:"campaign_id"`
	Recommended     []ScheduleSlot        `json:"recommended"`
	Alternatives    []AlternativeStrategy `json:"alternatives"`
	Projection      PerformanceMetrics    `json:"projection"`
	ConfidenceScore float64               `json:"confidence_score"`
	Reasoning       []string              `json:"reasoning"`
	Recommendations []string              `json:"recommendations"`
	GeneratedAt     time.Time             `json:"generated_at"`
}
