// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/KofiRusu/Neon-v2.2-sub005/internal/coordinator"
	appErrors "github.com/KofiRusu/Neon-v2.2-sub005/internal/errors"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/model"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/scheduler"
)

type CampaignController struct {
	Coordinator *coordinator.Coordinator
	Generator   *scheduler.Generator
}

// CreateSchedule validates and persists a campaign schedule. A missing
// scheduled_time asks the generator for the best slot.
func (c *CampaignController) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Spec          model.CampaignSpec `json:"spec"`
		ScheduledTime *string            `json:"scheduled_time"`
		Priority      int                `json:"priority"`
		Recurrence    *model.Recurrence  `json:"recurrence"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, appErrors.NewValidation("body", "invalid JSON"))
		return
	}

	var when time.Time
	if body.ScheduledTime != nil {
		t, err := time.Parse(time.RFC3339, *body.ScheduledTime)
		if err != nil {
			writeError(w, appErrors.NewValidation("scheduled_time", "must be RFC3339"))
			return
		}
		when = t
	}

	result, err := c.Coordinator.Schedule(body.Spec, when, coordinator.ScheduleOptions{
		Priority:   body.Priority,
		Recurrence: body.Recurrence,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// GenerateSchedule returns ranked slots and alternative strategies without
// persisting anything.
func (c *CampaignController) GenerateSchedule(w http.ResponseWriter, r *http.Request) {
	var req model.ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, appErrors.NewValidation("body", "invalid JSON"))
		return
	}

	schedule, err := c.Generator.Generate(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

// ExecuteCampaign launches a campaign immediately, subject to capacity.
func (c *CampaignController) ExecuteCampaign(w http.ResponseWriter, r *http.Request) {
	var spec model.CampaignSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, appErrors.NewValidation("body", "invalid JSON"))
		return
	}

	exec, err := c.Coordinator.Execute(spec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, exec)
}

func (c *CampaignController) GetExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := c.Coordinator.GetExecution(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

func (c *CampaignController) CancelExecution(w http.ResponseWriter, r *http.Request) {
	if err := c.Coordinator.CancelExecution(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancellation requested"})
}

func (c *CampaignController) ListSchedules(w http.ResponseWriter, r *http.Request) {
	status := model.ScheduleStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = model.ScheduleActive
	}
	schedules, err := c.Coordinator.ListSchedules(status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": schedules})
}

func (c *CampaignController) CancelSchedule(w http.ResponseWriter, r *http.Request) {
	if err := c.Coordinator.CancelSchedule(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// GetStatus is the dashboard summary surface.
func (c *CampaignController) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := c.Coordinator.GetCampaignStatus()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
