package repository

import (
	"sort"
	"sync"
	"time"

	appErrors "github.com/KofiRusu/Neon-v2.2-sub005/internal/errors"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/model"
)

// ReplayRepository stores replay executions for the pattern replay engine.
type ReplayRepository interface {
	Create(r *model.ReplayExecution) error
	GetByID(id string) (*model.ReplayExecution, error)
	Update(r *model.ReplayExecution) error
	ListActive() ([]*model.ReplayExecution, error)
	// ListSince returns replays started at or after t, newest first.
	ListSince(t time.Time) ([]*model.ReplayExecution, error)
	// LastForPattern returns the most recent replay of the pattern, or nil.
	LastForPattern(patternID string) (*model.ReplayExecution, error)
}

type InMemoryReplayRepository struct {
	mu      sync.RWMutex
	replays map[string]*model.ReplayExecution
}

func NewInMemoryReplayRepository() *InMemoryReplayRepository {
	return &InMemoryReplayRepository{replays: make(map[string]*model.ReplayExecution)}
}

func copyReplay(r *model.ReplayExecution) *model.ReplayExecution {
	cp := *r
	cp.Modifications = append([]model.Modification(nil), r.Modifications...)
	cp.Learnings = append([]string(nil), r.Learnings...)
	return &cp
}

func (s *InMemoryReplayRepository) Create(r *model.ReplayExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.replays[r.ID] = copyReplay(r)
	return nil
}

func (s *InMemoryReplayRepository) GetByID(id string) (*model.ReplayExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.replays[id]
	if !ok {
		return nil, appErrors.NewNotFound("replay", id)
	}
	return copyReplay(r), nil
}

func (s *InMemoryReplayRepository) Update(r *model.ReplayExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.replays[r.ID]; !ok {
		return appErrors.NewNotFound("replay", r.ID)
	}
	s.replays[r.ID] = copyReplay(r)
	return nil
}

func (s *InMemoryReplayRepository) ListActive() ([]*model.ReplayExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.ReplayExecution
	for _, r := range s.replays {
		if !r.Status.Terminal() {
			out = append(out, copyReplay(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (s *InMemoryReplayRepository) ListSince(t time.Time) ([]*model.ReplayExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.ReplayExecution
	for _, r := range s.replays {
		if !r.StartedAt.Before(t) {
			out = append(out, copyReplay(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (s *InMemoryReplayRepository) LastForPattern(patternID string) (*model.ReplayExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *model.ReplayExecution
	for _, r := range s.replays {
		if r.PatternID != patternID {
			continue
		}
		if last == nil || r.StartedAt.After(last.StartedAt) {
			last = r
		}
	}
	if last == nil {
		return nil, nil
	}
	return copyReplay(last), nil
}

var _ ReplayRepository = (*InMemoryReplayRepository)(nil)
