package model

import "time"

// OutcomeEvent is published on the outcome bus when an execution reaches a
// terminal state. The worker feeds it back into the timing knowledge base,
// closing the learning loop.
type OutcomeEvent struct {
	ExecutionID  string             `json:"execution_id"`
	CampaignID   string             `json:"campaign_id"`
	Segment      string             `json:"segment"`
	ContentType  string             `json:"content_type"`
	ObservedTime time.Time          `json:"observed_time"`
	Performance  PerformanceMetrics `json:"performance"`
	Status       ExecutionStatus    `json:"status"`
}
