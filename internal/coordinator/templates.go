package coordinator

import "strings"

// CampaignTemplate declares which channels a campaign archetype supports.
// Template mismatches produce warnings, never hard failures.
type CampaignTemplate struct {
	Name              string
	GoalKeywords      []string
	SupportedChannels []string
}

// TemplateRegistry is a small in-memory lookup of campaign archetypes.
type TemplateRegistry struct {
	templates []CampaignTemplate
}

// DefaultTemplates covers the common campaign archetypes.
func DefaultTemplates() *TemplateRegistry {
	return &TemplateRegistry{templates: []CampaignTemplate{
		{
			Name:              "product-launch",
			GoalKeywords:      []string{"launch", "release", "announce"},
			SupportedChannels: []string{"email", "social", "sms", "push"},
		},
		{
			Name:              "retention",
			GoalKeywords:      []string{"retention", "winback", "re-engage", "churn"},
			SupportedChannels: []string{"email", "push"},
		},
		{
			Name:              "promotion",
			GoalKeywords:      []string{"sale", "discount", "promo", "offer"},
			SupportedChannels: []string{"email", "sms", "social"},
		},
	}}
}

// Match finds the first template whose goal keywords appear in the goal.
func (r *TemplateRegistry) Match(goal string) *CampaignTemplate {
	lower := strings.ToLower(goal)
	for i := range r.templates {
		for _, kw := range r.templates[i].GoalKeywords {
			if strings.Contains(lower, kw) {
				return &r.templates[i]
			}
		}
	}
	return nil
}

// UnsupportedChannels lists the requested channels a template cannot serve.
func (t *CampaignTemplate) UnsupportedChannels(channels []string) []string {
	supported := make(map[string]bool, len(t.SupportedChannels))
	for _, c := range t.SupportedChannels {
		supported[c] = true
	}
	var out []string
	for _, c := range channels {
		if !supported[c] {
			out = append(out, c)
		}
	}
	return out
}
