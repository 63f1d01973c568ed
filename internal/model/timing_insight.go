package model

import "time"

// Season buckets used for read-time multipliers.
type Season string

const (
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonFall   Season = "fall"
	SeasonWinter Season = "winter"
)

// SeasonOf maps a timestamp to its meteorological season.
func SeasonOf(t time.Time) Season {
	switch t.Month() {
	case time.March, time.April, time.May:
		return SeasonSpring
	case time.June, time.July, time.August:
		return SeasonSummer
	case time.September, time.October, time.November:
		return SeasonFall
	default:
		return SeasonWinter
	}
}

// OptimalTime is the abstract send time an insight recommends, independent
// of any concrete calendar date.
type OptimalTime struct {
	DayOfWeek time.Weekday `json:"day_of_week"`
	Hour      int          `json:"hour"`
	Timezone  string       `json:"timezone"`
}

// PerformanceMetrics holds the observed engagement rates for an insight or
// an execution outcome. Rates are fractions in [0,1].
type PerformanceMetrics struct {
	OpenRate       float64 `json:"open_rate"`
	ClickRate      float64 `json:"click_rate"`
	ConversionRate float64 `json:"conversion_rate"`
	Confidence     float64 `json:"confidence"`
	SampleSize     int     `json:"sample_size"`
}

// TimingInsight is the knowledge base record for one
// (segment, content type, weekday, hour) cell.
//
// SampleSize only grows, via merge. Confidence only shrinks via decay or
// grows when a new positive observation is merged in.
type TimingInsight struct {
	ID              string             `json:"id"`
	AudienceSegment string             `json:"audience_segment"`
	ContentType     string             `json:"content_type"`
	OptimalTime     OptimalTime        `json:"optimal_time"`
	Performance     PerformanceMetrics `json:"performance"`
	Seasonal        map[Season]float64 `json:"seasonal,omitempty"`
	LastUpdated     time.Time          `json:"last_updated"`
}

// SeasonalMultiplier returns the read-time multiplier for the given season,
// defaulting to 1.0 when no trend has been recorded. It never mutates the
// stored averages.
func (i *TimingInsight) SeasonalMultiplier(s Season) float64 {
	if i.Seasonal == nil {
		return 1.0
	}
	if m, ok := i.Seasonal[s]; ok && m > 0 {
		return m
	}
	return 1.0
}
