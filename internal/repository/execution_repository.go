package repository

import (
	"sort"
	"sync"

	appErrors "github.com/KofiRusu/Neon-v2.2-sub005/internal/errors"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/model"
)

// ExecutionRepository stores campaign executions. The coordinator is the
// only writer; terminal executions are never mutated again.
type ExecutionRepository interface {
	Create(e *model.CampaignExecution) error
	GetByID(id string) (*model.CampaignExecution, error)
	Update(e *model.CampaignExecution) error
	ListByStatus(status model.ExecutionStatus) ([]*model.CampaignExecution, error)
	ListAll() ([]*model.CampaignExecution, error)
	CountRunning() (int, error)
}

type InMemoryExecutionRepository struct {
	mu         sync.RWMutex
	executions map[string]*model.CampaignExecution
}

func NewInMemoryExecutionRepository() *InMemoryExecutionRepository {
	return &InMemoryExecutionRepository{executions: make(map[string]*model.CampaignExecution)}
}

func copyExecution(e *model.CampaignExecution) *model.CampaignExecution {
	cp := *e
	cp.Steps = append([]model.ExecutionStep(nil), e.Steps...)
	cp.Activity = append([]model.ActivityEntry(nil), e.Activity...)
	return &cp
}

func (r *InMemoryExecutionRepository) Create(e *model.CampaignExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.executions[e.ID] = copyExecution(e)
	return nil
}

func (r *InMemoryExecutionRepository) GetByID(id string) (*model.CampaignExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.executions[id]
	if !ok {
		return nil, appErrors.NewNotFound("execution", id)
	}
	return copyExecution(e), nil
}

func (r *InMemoryExecutionRepository) Update(e *model.CampaignExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.executions[e.ID]; !ok {
		return appErrors.NewNotFound("execution", e.ID)
	}
	r.executions[e.ID] = copyExecution(e)
	return nil
}

func (r *InMemoryExecutionRepository) ListByStatus(status model.ExecutionStatus) ([]*model.CampaignExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.CampaignExecution
	for _, e := range r.executions {
		if e.Status == status {
			out = append(out, copyExecution(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (r *InMemoryExecutionRepository) ListAll() ([]*model.CampaignExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.CampaignExecution, 0, len(r.executions))
	for _, e := range r.executions {
		out = append(out, copyExecution(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (r *InMemoryExecutionRepository) CountRunning() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, e := range r.executions {
		if e.Status == model.ExecutionRunning {
			count++
		}
	}
	return count, nil
}

var _ ExecutionRepository = (*InMemoryExecutionRepository)(nil)
