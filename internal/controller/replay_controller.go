// internal/controller/replay_controller.go
package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/KofiRusu/Neon-v2.2-sub005/internal/replay"
	"github.com/KofiRusu/Neon-v2.2-sub005/internal/repository"
)

type ReplayController struct {
	Engine *replay.Engine
	Memory repository.MemoryStore
}

// TriggerScan runs one scan-and-replay cycle immediately.
func (c *ReplayController) TriggerScan(w http.ResponseWriter, r *http.Request) {
	c.Engine.RunCycle(r.Context())
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cycle complete"})
}

func (c *ReplayController) GetReplay(w http.ResponseWriter, r *http.Request) {
	rx, err := c.Engine.GetReplay(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rx)
}

// GetAnalytics aggregates replay outcomes over ?window_hours (default 168).
func (c *ReplayController) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	hours := 168
	if v := r.URL.Query().Get("window_hours"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			hours = parsed
		}
	}

	analytics, err := c.Engine.GetAnalytics(time.Duration(hours) * time.Hour)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

// GetAuditLog exposes recent memory-log entries for a namespace; a debug
// surface for the dashboard.
func (c *ReplayController) GetAuditLog(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")
	n := 50
	if v := r.URL.Query().Get("n"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}

	entries, err := c.Memory.RetrieveRecent(namespace, n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entries})
}
