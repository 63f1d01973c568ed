package repository

import (
	"sort"
	"sync"
	"time"

	appErrors "github.com/KofiRusu/Neon-v2.2-sub005/internal/errors"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/model"
)

// ScheduleRepository stores pending campaign schedules for the coordinator.
type ScheduleRepository interface {
	Create(s *model.CampaignSchedule) error
	GetByID(id string) (*model.CampaignSchedule, error)
	Update(s *model.CampaignSchedule) error
	Delete(id string) error
	// ListDue returns schedules with status scheduled and scheduledTime <= now,
	// ordered by priority descending then scheduled time ascending.
	ListDue(now time.Time) ([]*model.CampaignSchedule, error)
	ListByStatus(status model.ScheduleStatus) ([]*model.CampaignSchedule, error)
}

type InMemoryScheduleRepository struct {
	mu        sync.RWMutex
	schedules map[string]*model.CampaignSchedule
}

func NewInMemoryScheduleRepository() *InMemoryScheduleRepository {
	return &InMemoryScheduleRepository{schedules: make(map[string]*model.CampaignSchedule)}
}

func (r *InMemoryScheduleRepository) Create(s *model.CampaignSchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *s
	r.schedules[s.ID] = &cp
	return nil
}

func (r *InMemoryScheduleRepository) GetByID(id string) (*model.CampaignSchedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.schedules[id]
	if !ok {
		return nil, appErrors.NewNotFound("schedule", id)
	}
	cp := *s
	return &cp, nil
}

func (r *InMemoryScheduleRepository) Update(s *model.CampaignSchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.schedules[s.ID]; !ok {
		return appErrors.NewNotFound("schedule", s.ID)
	}
	cp := *s
	r.schedules[s.ID] = &cp
	return nil
}

func (r *InMemoryScheduleRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.schedules[id]; !ok {
		return appErrors.NewNotFound("schedule", id)
	}
	delete(r.schedules, id)
	return nil
}

func (r *InMemoryScheduleRepository) ListDue(now time.Time) ([]*model.CampaignSchedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var due []*model.CampaignSchedule
	for _, s := range r.schedules {
		if s.Status == model.ScheduleActive && !s.ScheduledTime.After(now) {
			cp := *s
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority > due[j].Priority
		}
		return due[i].ScheduledTime.Before(due[j].ScheduledTime)
	})
	return due, nil
}

func (r *InMemoryScheduleRepository) ListByStatus(status model.ScheduleStatus) ([]*model.CampaignSchedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.CampaignSchedule
	for _, s := range r.schedules {
		if s.Status == status {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.Before(out[j].ScheduledTime) })
	return out, nil
}

var _ ScheduleRepository = (*InMemoryScheduleRepository)(nil)
