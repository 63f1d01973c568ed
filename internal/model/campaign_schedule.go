package model

import "time"

// ScheduleStatus is the lifecycle state of a pending campaign schedule.
type ScheduleStatus string

const (
	ScheduleActive    ScheduleStatus = "scheduled"
	ScheduleExecuted  ScheduleStatus = "executed"
	ScheduleCancelled ScheduleStatus = "cancelled"
	ScheduleExpired   ScheduleStatus = "expired"
)

// RecurrenceInterval enumerates supported recurrence periods.
type RecurrenceInterval string

const (
	RecurDaily   RecurrenceInterval = "daily"
	RecurWeekly  RecurrenceInterval = "weekly"
	RecurMonthly RecurrenceInterval = "monthly"
)

// Recurrence re-enqueues a schedule after each successful run until EndDate.
// A nil EndDate recurs indefinitely.
type Recurrence struct {
	Interval RecurrenceInterval `json:"interval"`
	EndDate  *time.Time         `json:"end_date,omitempty"`
}

// Next returns the occurrence following from.
func (r Recurrence) Next(from time.Time) time.Time {
	switch r.Interval {
	case RecurDaily:
		return from.AddDate(0, 0, 1)
	case RecurWeekly:
		return from.AddDate(0, 0, 7)
	case RecurMonthly:
		return from.AddDate(0, 1, 0)
	}
	return from
}

// CampaignSchedule is a persisted intent to execute a campaign at a time.
type CampaignSchedule struct {
	ID            string         `json:"id"`
	CampaignID    string         `json:"campaign_id"`
	Spec          CampaignSpec   `json:"spec"`
	ScheduledTime time.Time      `json:"scheduled_time"`
	Status        ScheduleStatus `json:"status"`
	Priority      int            `json:"priority"`
	Recurrence    *Recurrence    `json:"recurrence,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     *time.Time     `json:"updated_at,omitempty"`
}
