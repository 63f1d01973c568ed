package controller_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/KofiRusu/Neon-v2.2-sub005/internal/clock"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/controller"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/coordinator"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/knowledge"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/model"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/queue"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/repository"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/scheduler"
)

type okExecutor struct{}

func (okExecutor) ExecuteStep(step model.ExecutionStep, spec model.CampaignSpec) (coordinator.StepResult, error) {
	delta := model.ExecutionMetrics{}
	if len(step.Action) > 5 && step.Action[:5] == "send_" {
		delta = model.ExecutionMetrics{Delivered: 50, Opened: 10}
	}
	return coordinator.StepResult{MetricsDelta: delta, Detail: "ok"}, nil
}

func newTestRouter(t *testing.T) (*chi.Mux, *coordinator.Coordinator) {
	t.Helper()
	clk := clock.NewFixed(time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC))
	memory := repository.NewInMemoryMemoryStore()
	kb := knowledge.New(repository.NewInMemoryInsightRepository(), zap.NewNop(),
		knowledge.WithClock(clk))
	gen := scheduler.NewGenerator(kb, memory, clk, zap.NewNop())
	coord := coordinator.New(
		repository.NewInMemoryExecutionRepository(),
		repository.NewInMemoryScheduleRepository(),
		gen,
		okExecutor{},
		queue.NewInMemoryQueue(zap.NewNop()),
		memory,
		clk,
		zap.NewNop(),
		coordinator.DefaultConfig(),
	)

	ctrl := &controller.CampaignController{Coordinator: coord, Generator: gen}
	r := chi.NewRouter()
	r.Post("/campaigns/schedule", ctrl.CreateSchedule)
	r.Post("/campaigns/schedule/generate", ctrl.GenerateSchedule)
	r.Post("/campaigns/execute", ctrl.ExecuteCampaign)
	r.Get("/campaigns/executions/{id}", ctrl.GetExecution)
	r.Post("/campaigns/executions/{id}/cancel", ctrl.CancelExecution)
	r.Get("/campaigns/schedules", ctrl.ListSchedules)
	r.Get("/campaigns/status", ctrl.GetStatus)
	return r, coord
}

func validSpecBody() map[string]any {
	return map[string]any{
		"name":     "spring-launch",
		"goal":     "announce the spring launch",
		"channels": []string{"email"},
		"target_audience": map[string]any{
			"segments": []string{"premium_users"},
			"size":     1000,
		},
		"content_type": "email",
		"budget":       250,
	}
}

func TestCreateScheduleEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	body, _ := json.Marshal(map[string]any{
		"spec":           validSpecBody(),
		"scheduled_time": "2026-01-06T10:00:00Z",
		"priority":       3,
	})
	req := httptest.NewRequest("POST", "/campaigns/schedule", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var res struct {
		Schedule model.CampaignSchedule `json:"schedule"`
	}
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if res.Schedule.ID == "" {
		t.Error("expected a schedule id")
	}
	if res.Schedule.Status != model.ScheduleActive {
		t.Errorf("expected status scheduled, got %s", res.Schedule.Status)
	}
}

func TestCreateScheduleRejectsBadInput(t *testing.T) {
	router, _ := newTestRouter(t)

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", "{"},
		{"bad timestamp", `{"spec":{"goal":"launch","channels":["email"],"target_audience":{"segments":["a"]}},"scheduled_time":"tomorrow"}`},
		{"missing goal", `{"spec":{"channels":["email"],"target_audience":{"segments":["a"]}}}`},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("POST", "/campaigns/schedule", bytes.NewReader([]byte(tc.body)))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, w.Code)
		}
	}
}

func TestGenerateScheduleEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	body, _ := json.Marshal(map[string]any{
		"campaign_id": "c1",
		"target_audience": map[string]any{
			"segments": []string{"premium_users"},
		},
		"content_type": "email",
		"urgency":      "medium",
	})
	req := httptest.NewRequest("POST", "/campaigns/schedule/generate", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var schedule model.GeneratedSchedule
	if err := json.NewDecoder(w.Body).Decode(&schedule); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(schedule.Recommended) == 0 {
		t.Error("expected at least the default slot")
	}
	if len(schedule.Alternatives) != 3 {
		t.Errorf("expected 3 alternative strategies, got %d", len(schedule.Alternatives))
	}
}

func TestExecuteAndFetchExecution(t *testing.T) {
	router, _ := newTestRouter(t)

	body, _ := json.Marshal(validSpecBody())
	req := httptest.NewRequest("POST", "/campaigns/execute", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var exec model.CampaignExecution
	if err := json.NewDecoder(w.Body).Decode(&exec); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if exec.Status != model.ExecutionCompleted {
		t.Errorf("expected completed, got %s", exec.Status)
	}

	req = httptest.NewRequest("GET", "/campaigns/executions/"+exec.ID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/campaigns/executions/missing", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown execution, got %d", w.Code)
	}
}

func TestCancelFinishedExecutionIsRejected(t *testing.T) {
	router, coord := newTestRouter(t)

	exec, err := coord.Execute(model.CampaignSpec{
		Name:     "done",
		Goal:     "launch",
		Channels: []string{"email"},
		TargetAudience: model.TargetAudience{
			Segments: []string{"premium_users"},
			Size:     100,
		},
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	req := httptest.NewRequest("POST", "/campaigns/executions/"+exec.ID+"/cancel", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 cancelling a terminal execution, got %d", w.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	router, coord := newTestRouter(t)

	if _, err := coord.Execute(model.CampaignSpec{
		Name:     "one",
		Goal:     "launch",
		Channels: []string{"email"},
		TargetAudience: model.TargetAudience{
			Segments: []string{"premium_users"},
			Size:     100,
		},
	}); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/campaigns/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var status coordinator.CampaignStatus
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if status.MaxConcurrent == 0 {
		t.Error("expected max_concurrent to be set")
	}
	if len(status.Executions) != 1 {
		t.Errorf("expected one execution row, got %d", len(status.Executions))
	}
	if status.StatusCounts[model.ExecutionCompleted] != 1 {
		t.Errorf("expected one completed execution, got %d", status.StatusCounts[model.ExecutionCompleted])
	}
}
