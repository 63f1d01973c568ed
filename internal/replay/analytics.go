package replay

import (
	"fmt"
	"sort"
	"time"

	"github.com/KofiRusu/Neon-v2.2-sub005/internal/model"
)

// GetReplay returns one replay execution by id.
func (e *Engine) GetReplay(id string) (*model.ReplayExecution, error) {
	return e.replays.GetByID(id)
}

// GetAnalytics aggregates replay outcomes over the trailing window: success
// rate, mean ROI, top patterns, modification frequency and recommendations.
func (e *Engine) GetAnalytics(window time.Duration) (*model.ReplayAnalytics, error) {
	since := e.clock.Now().Add(-window)
	replays, err := e.replays.ListSince(since)
	if err != nil {
		return nil, err
	}

	analytics := &model.ReplayAnalytics{
		Window:           window,
		TotalReplays:     len(replays),
		ModificationFreq: make(map[model.ModificationType]int),
	}
	if len(replays) == 0 {
		analytics.Recommendations = []string{"no replays in window; lower the confidence threshold or widen the freshness window"}
		return analytics, nil
	}

	var completed int
	var roiSum float64
	perPattern := make(map[string][]float64)

	for _, rx := range replays {
		if rx.Status == model.ReplayCompleted {
			completed++
			roiSum += rx.Performance.Actual
			perPattern[rx.PatternID] = append(perPattern[rx.PatternID], rx.Performance.Actual)
			for _, m := range rx.Modifications {
				analytics.ModificationFreq[m.Type]++
			}
		}
	}

	analytics.SuccessRate = float64(completed) / float64(len(replays))
	if completed > 0 {
		analytics.MeanROI = roiSum / float64(completed)
	}

	for patternID, rois := range perPattern {
		var sum float64
		for _, r := range rois {
			sum += r
		}
		analytics.TopPatterns = append(analytics.TopPatterns, model.PatternROI{
			PatternID: patternID,
			MeanROI:   sum / float64(len(rois)),
			Replays:   len(rois),
		})
	}
	sort.Slice(analytics.TopPatterns, func(i, j int) bool {
		return analytics.TopPatterns[i].MeanROI > analytics.TopPatterns[j].MeanROI
	})
	if len(analytics.TopPatterns) > 5 {
		analytics.TopPatterns = analytics.TopPatterns[:5]
	}

	analytics.Recommendations = buildRecommendations(analytics)
	return analytics, nil
}

func buildRecommendations(a *model.ReplayAnalytics) []string {
	var recs []string
	if a.SuccessRate < 0.5 {
		recs = append(recs, fmt.Sprintf("success rate %.0f%% is low; raise the confidence threshold", a.SuccessRate*100))
	}
	if a.MeanROI > 1.5 {
		recs = append(recs, "mean ROI is strong; consider raising max concurrent replays")
	}
	var topMod model.ModificationType
	var topCount int
	for t, n := range a.ModificationFreq {
		if n > topCount {
			topMod, topCount = t, n
		}
	}
	if topCount > 0 {
		recs = append(recs, fmt.Sprintf("%s modifications appear most often in successful replays; keep applying them", topMod))
	}
	if len(a.TopPatterns) > 0 {
		recs = append(recs, fmt.Sprintf("pattern %s leads on mean ROI; prioritize it in the next scan", a.TopPatterns[0].PatternID))
	}
	return recs
}
