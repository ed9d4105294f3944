package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/growth-engine/internal/models"
	"github.com/growth-engine/internal/scheduler"
	"github.com/growth-engine/internal/types"
)

const (
	defaultActionLimit = 50
	maxActionLimit     = 500
	defaultSummaryDays = 7
)

// handleStart handles POST /api/v1/engine/start
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	state, err := s.engine.Start(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// handleStop handles POST /api/v1/engine/stop
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	state, err := s.engine.Stop(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// handleStatus handles GET /api/v1/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.Status(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// handleQueueStats handles GET /api/v1/queue/stats
func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.QueueStats(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// handleListActions handles GET /api/v1/actions
//
// Query parameters: target, action, success=true, since (RFC3339), limit.
func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := models.ActionLogQuery{
		TargetID: q.Get("target"),
		Limit:    defaultActionLimit,
	}

	if action := q.Get("action"); action != "" {
		kind := types.ActionKind(action)
		if !kind.Valid() {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "unknown action kind", map[string]interface{}{
				"action": action,
			})
			return
		}
		query.Action = kind
	}

	if success := q.Get("success"); success != "" {
		v, err := strconv.ParseBool(success)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "success must be a boolean", nil)
			return
		}
		query.SuccessOnly = v
	}

	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "since must be an RFC3339 timestamp", nil)
			return
		}
		query.Since = t
	}

	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 || n > maxActionLimit {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "limit must be between 1 and 500", nil)
			return
		}
		query.Limit = n
	}

	entries, err := s.actions.Query(r.Context(), query)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.ActionLogEntry{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"actions": entries,
		"count":   len(entries),
	})
}

// handleDailyAnalytics handles GET /api/v1/analytics/daily
//
// Defaults to the last seven days when from/to are omitted.
func (s *Server) handleDailyAnalytics(w http.ResponseWriter, r *http.Request) {
	if s.analytics == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "analytics store is not configured", nil)
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -defaultSummaryDays)
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "from must be an RFC3339 timestamp", nil)
			return
		}
		from = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "to must be an RFC3339 timestamp", nil)
			return
		}
		to = t
	}
	if !from.Before(to) {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "from must be before to", nil)
		return
	}

	summary, err := s.analytics.DailySummary(r.Context(), from, to)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"from": from,
		"to":   to,
		"days": summary,
	})
}

// handleListAlarms handles GET /api/v1/alarms
func (s *Server) handleListAlarms(w http.ResponseWriter, r *http.Request) {
	if s.alarms == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "scheduler is not configured", nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"alarms": s.alarms.Alarms(),
	})
}

// handleFireAlarm handles POST /api/v1/alarms/{name}/fire
func (s *Server) handleFireAlarm(w http.ResponseWriter, r *http.Request) {
	if s.alarms == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "scheduler is not configured", nil)
		return
	}
	name := mux.Vars(r)["name"]

	if err := s.alarms.Fire(r.Context(), name); err != nil {
		if errors.Is(err, scheduler.ErrUnknownAlarm) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "alarm not found", map[string]interface{}{
				"alarm": name,
			})
			return
		}
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"alarm":  name,
		"status": "ran",
	})
}
