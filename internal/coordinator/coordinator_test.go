package coordinator

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KofiRusu/Neon-v2.2-sub005/internal/clock"
	appErrors "github.com/KofiRusu/Neon-v2.2-sub005/internal/errors"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/knowledge"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/model"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/repository"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/scheduler"
)

// captureBus records published events synchronously.
type captureBus struct {
	mu     sync.Mutex
	events map[string][]any
}

func newCaptureBus() *captureBus {
	return &captureBus{events: make(map[string][]any)}
}

func (b *captureBus) Publish(topic string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[topic] = append(b.events[topic], payload)
	return nil
}

func (b *captureBus) Subscribe(string, func(any) error) error { return nil }

func (b *captureBus) published(topic string) []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]any(nil), b.events[topic]...)
}

// scriptedExecutor fails the actions it is told to fail and records the
// order steps were attempted in.
type scriptedExecutor struct {
	failActions map[string]bool
	calls       []string
	onStep      func(step model.ExecutionStep)
}

func (e *scriptedExecutor) ExecuteStep(step model.ExecutionStep, spec model.CampaignSpec) (StepResult, error) {
	e.calls = append(e.calls, spec.Name+"/"+step.Action)
	if e.onStep != nil {
		e.onStep(step)
	}
	if e.failActions[step.Action] {
		return StepResult{}, errors.New("agent refused")
	}
	delta := model.ExecutionMetrics{}
	if len(step.Action) > 5 && step.Action[:5] == "send_" {
		delta = model.ExecutionMetrics{Delivered: 100, Opened: 30, Clicked: 6, Converted: 2, Revenue: 80}
	}
	return StepResult{MetricsDelta: delta, Detail: step.Action + " ok"}, nil
}

type coordFixture struct {
	coord      *Coordinator
	executions repository.ExecutionRepository
	schedules  repository.ScheduleRepository
	bus        *captureBus
	clk        *clock.Fixed
	executor   *scriptedExecutor
	memory     *repository.InMemoryMemoryStore
}

func newCoordFixture(t *testing.T, cfg Config) *coordFixture {
	t.Helper()
	clk := clock.NewFixed(time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC))
	executions := repository.NewInMemoryExecutionRepository()
	schedules := repository.NewInMemoryScheduleRepository()
	memory := repository.NewInMemoryMemoryStore()
	bus := newCaptureBus()
	executor := &scriptedExecutor{failActions: map[string]bool{}}

	kb := knowledge.New(repository.NewInMemoryInsightRepository(), zap.NewNop(),
		knowledge.WithClock(clk))
	gen := scheduler.NewGenerator(kb, memory, clk, zap.NewNop())

	f := &coordFixture{
		executions: executions,
		schedules:  schedules,
		bus:        bus,
		clk:        clk,
		executor:   executor,
		memory:     memory,
	}
	f.coord = New(executions, schedules, gen, executor, bus, memory, clk, zap.NewNop(), cfg)
	return f
}

func validSpec(name string) model.CampaignSpec {
	return model.CampaignSpec{
		Name:     name,
		Goal:     "announce the spring product launch",
		Channels: []string{"email", "social"},
		TargetAudience: model.TargetAudience{
			Segments: []string{"premium_users"},
			Size:     2000,
		},
		ContentType: "email",
		Budget:      500,
	}
}

func (f *coordFixture) seedRunning(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := f.executions.Create(&model.CampaignExecution{
			ID:         uuid.New().String(),
			CampaignID: "occupant",
			Status:     model.ExecutionRunning,
			StartedAt:  f.clk.Now(),
		})
		require.NoError(t, err)
	}
}

func TestScheduleRejectsInvalidSpecBeforeAnyState(t *testing.T) {
	f := newCoordFixture(t, DefaultConfig())

	cases := []struct {
		name string
		spec model.CampaignSpec
		opts ScheduleOptions
	}{
		{"empty goal", model.CampaignSpec{Channels: []string{"email"}}, ScheduleOptions{}},
		{"no channels", model.CampaignSpec{Goal: "launch"}, ScheduleOptions{}},
		{"no segments", model.CampaignSpec{Goal: "launch", Channels: []string{"email"}}, ScheduleOptions{}},
		{"bad recurrence", validSpec("c"), ScheduleOptions{Recurrence: &model.Recurrence{Interval: "fortnightly"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.coord.Schedule(tc.spec, f.clk.Now().Add(time.Hour), tc.opts)
			assert.True(t, appErrors.IsValidation(err))
		})
	}

	pending, err := f.schedules.ListByStatus(model.ScheduleActive)
	require.NoError(t, err)
	assert.Empty(t, pending, "rejected specs must not leave schedules behind")
}

func TestScheduleWarningsDoNotBlock(t *testing.T) {
	f := newCoordFixture(t, DefaultConfig())

	spec := validSpec("retention-push")
	spec.Goal = "winback lapsed customers"
	spec.Channels = []string{"email", "sms"} // retention template has no sms
	spec.Budget = 0

	result, err := f.coord.Schedule(spec, f.clk.Now().Add(time.Hour), ScheduleOptions{})
	require.NoError(t, err)
	require.NotNil(t, result.Schedule)
	assert.Equal(t, model.ScheduleActive, result.Schedule.Status)
	assert.NotEmpty(t, result.Warnings)

	pending, err := f.schedules.ListByStatus(model.ScheduleActive)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestScheduleZeroTimeAsksGenerator(t *testing.T) {
	f := newCoordFixture(t, DefaultConfig())

	result, err := f.coord.Schedule(validSpec("auto-timed"), time.Time{}, ScheduleOptions{})
	require.NoError(t, err)

	// No timing history yet, so the generator's default slot wins.
	at := result.Schedule.ScheduledTime
	assert.Equal(t, time.Tuesday, at.Weekday())
	assert.Equal(t, 10, at.Hour())
	assert.True(t, at.After(f.clk.Now()))
}

func TestExecuteRejectedAtCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrent = 2
	f := newCoordFixture(t, cfg)
	f.seedRunning(t, 2)

	_, err := f.coord.Execute(validSpec("overflow"))
	require.Error(t, err)
	assert.True(t, appErrors.IsRetryable(err))

	var capErr *appErrors.CapacityExceededError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 2, capErr.Active)
	assert.Equal(t, 2, capErr.Limit)
}

func TestExecuteRunsAllStepsAndPublishesOutcome(t *testing.T) {
	f := newCoordFixture(t, DefaultConfig())

	exec, err := f.coord.Execute(validSpec("full-run"))
	require.NoError(t, err)

	assert.Equal(t, model.ExecutionCompleted, exec.Status)
	assert.Equal(t, 100, exec.Progress)
	// content + brand + (send+collect) per channel
	require.Len(t, exec.Steps, 6)
	for _, step := range exec.Steps {
		assert.Equal(t, model.StepCompleted, step.Status)
		assert.NotNil(t, step.StartedAt)
		assert.NotNil(t, step.EndedAt)
	}
	// Two send steps at 100 delivered each.
	assert.Equal(t, 200, exec.Metrics.Delivered)
	assert.Equal(t, 60, exec.Metrics.Opened)

	events := f.bus.published(OutcomeTopic)
	require.Len(t, events, 1)
	outcome, ok := events[0].(model.OutcomeEvent)
	require.True(t, ok)
	assert.Equal(t, exec.ID, outcome.ExecutionID)
	assert.Equal(t, "premium_users", outcome.Segment)
	assert.Equal(t, model.ExecutionCompleted, outcome.Status)
	assert.InDelta(t, 0.3, outcome.Performance.OpenRate, 0.0001)
	assert.Equal(t, 200, outcome.Performance.SampleSize)
}

func TestFailedStepDoesNotFailExecution(t *testing.T) {
	f := newCoordFixture(t, DefaultConfig())
	f.executor.failActions["validate_brand_voice"] = true

	exec, err := f.coord.Execute(validSpec("lenient"))
	require.NoError(t, err)

	assert.Equal(t, model.ExecutionCompleted, exec.Status,
		"a failed step flags the step, not the execution")
	assert.Equal(t, 100, exec.Progress)

	var failed, completed int
	for _, step := range exec.Steps {
		switch step.Status {
		case model.StepFailed:
			failed++
			assert.Contains(t, step.Error, "brand-agent")
		case model.StepCompleted:
			completed++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 5, completed)

	events := f.bus.published(OutcomeTopic)
	require.Len(t, events, 1, "outcome is published even with a failed step")
}

func TestCancellationTakesEffectAtStepBoundary(t *testing.T) {
	f := newCoordFixture(t, DefaultConfig())

	// Request cancellation while the first step is in flight.
	f.executor.onStep = func(step model.ExecutionStep) {
		if step.Action != "generate_content" {
			return
		}
		running, err := f.executions.ListByStatus(model.ExecutionRunning)
		require.NoError(t, err)
		require.Len(t, running, 1)
		require.NoError(t, f.coord.CancelExecution(running[0].ID))
	}

	exec, err := f.coord.Execute(validSpec("cancel-me"))
	require.NoError(t, err)

	assert.Equal(t, model.ExecutionCancelled, exec.Status)
	assert.True(t, exec.CancelWanted)
	assert.Equal(t, model.StepCompleted, exec.Steps[0].Status,
		"the in-flight step is never preempted")
	for _, step := range exec.Steps[1:] {
		assert.Equal(t, model.StepSkipped, step.Status)
	}
	assert.Len(t, f.executor.calls, 1)
}

func TestCancelExecutionRejectsTerminal(t *testing.T) {
	f := newCoordFixture(t, DefaultConfig())

	exec, err := f.coord.Execute(validSpec("done"))
	require.NoError(t, err)
	require.True(t, exec.Status.Terminal())

	err = f.coord.CancelExecution(exec.ID)
	assert.True(t, appErrors.IsValidation(err))
}

func TestCancelScheduleOnlyWhilePending(t *testing.T) {
	f := newCoordFixture(t, DefaultConfig())

	result, err := f.coord.Schedule(validSpec("pending"), f.clk.Now().Add(time.Hour), ScheduleOptions{})
	require.NoError(t, err)

	require.NoError(t, f.coord.CancelSchedule(result.Schedule.ID))
	err = f.coord.CancelSchedule(result.Schedule.ID)
	assert.True(t, appErrors.IsValidation(err), "a cancelled schedule cannot be cancelled again")

	err = f.coord.CancelSchedule("missing")
	assert.True(t, appErrors.IsNotFound(err))
}

func TestProgressIsMonotonicWhileRunning(t *testing.T) {
	f := newCoordFixture(t, DefaultConfig())

	var observed []int
	f.executor.onStep = func(model.ExecutionStep) {
		running, err := f.executions.ListByStatus(model.ExecutionRunning)
		require.NoError(t, err)
		if len(running) == 1 {
			observed = append(observed, running[0].Progress)
		}
	}

	exec, err := f.coord.Execute(validSpec("progress"))
	require.NoError(t, err)
	require.Equal(t, 100, exec.Progress)

	for i := 1; i < len(observed); i++ {
		assert.GreaterOrEqual(t, observed[i], observed[i-1])
	}
}

func TestSimulatedExecutorIsReproducible(t *testing.T) {
	spec := validSpec("simulated")
	step := model.ExecutionStep{Action: "send_email"}

	a := NewSimulatedStepExecutor(rand.NewSource(42), 0)
	b := NewSimulatedStepExecutor(rand.NewSource(42), 0)

	ra, err := a.ExecuteStep(step, spec)
	require.NoError(t, err)
	rb, err := b.ExecuteStep(step, spec)
	require.NoError(t, err)
	assert.Equal(t, ra.MetricsDelta, rb.MetricsDelta)
	assert.Greater(t, ra.MetricsDelta.Delivered, 0)
}

func TestExecutionAuditTrailIsRetained(t *testing.T) {
	f := newCoordFixture(t, DefaultConfig())

	_, err := f.coord.Execute(validSpec("audited"))
	require.NoError(t, err)

	entries, err := f.memory.RetrieveRecent("execution_audit", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Key, "execution_finished")
}
