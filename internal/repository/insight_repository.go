package repository

import (
	"sort"
	"sync"
	"time"

	"github.com/KofiRusu/Neon-v2.2-sub005/internal/model"
)

// InsightRepository stores timing insights for the knowledge base. The
// knowledge base is the single writer; the mutex only guards against
// concurrent readers on the status surface.
type InsightRepository interface {
	Find(segment, contentType string, day time.Weekday, hour int) (*model.TimingInsight, error)
	Upsert(ins *model.TimingInsight) error
	Delete(id string) error
	ListAll() ([]*model.TimingInsight, error)
	ListFor(segment, contentType string) ([]*model.TimingInsight, error)
}

type InMemoryInsightRepository struct {
	mu       sync.RWMutex
	insights map[string]*model.TimingInsight
}

func NewInMemoryInsightRepository() *InMemoryInsightRepository {
	return &InMemoryInsightRepository{insights: make(map[string]*model.TimingInsight)}
}

func (r *InMemoryInsightRepository) Find(segment, contentType string, day time.Weekday, hour int) (*model.TimingInsight, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ins := range r.insights {
		if ins.AudienceSegment == segment && ins.ContentType == contentType &&
			ins.OptimalTime.DayOfWeek == day && ins.OptimalTime.Hour == hour {
			cp := *ins
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *InMemoryInsightRepository) Upsert(ins *model.TimingInsight) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *ins
	r.insights[ins.ID] = &cp
	return nil
}

func (r *InMemoryInsightRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.insights, id)
	return nil
}

func (r *InMemoryInsightRepository) ListAll() ([]*model.TimingInsight, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.TimingInsight, 0, len(r.insights))
	for _, ins := range r.insights {
		cp := *ins
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *InMemoryInsightRepository) ListFor(segment, contentType string) ([]*model.TimingInsight, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.TimingInsight
	for _, ins := range r.insights {
		if ins.AudienceSegment == segment && ins.ContentType == contentType {
			cp := *ins
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ InsightRepository = (*InMemoryInsightRepository)(nil)
