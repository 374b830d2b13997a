package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/myorg/homeiqsim/internal/kernelerr"
	"github.com/myorg/homeiqsim/internal/state"
)

// entityStateWire is the wire form for an EntityState per spec.md §6.
type entityStateWire struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
	Context     contextWire    `json:"context"`
}

type contextWire struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}

func toWire(rec *state.EntityState) entityStateWire {
	w := entityStateWire{
		EntityID:    rec.EntityID,
		State:       rec.State,
		Attributes:  rec.Attributes,
		LastChanged: rec.LastChanged,
		LastUpdated: rec.LastUpdated,
	}
	if rec.Context != nil {
		w.Context = contextWire{ID: rec.Context.ID, ParentID: rec.Context.ParentID, UserID: rec.Context.UserID}
	}
	return w
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func statusFor(err error) int {
	switch {
	case kernelerr.IsNotFound(err):
		return http.StatusNotFound
	case kernelerr.IsInvalidArgument(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleListStates(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")
	var recs []*state.EntityState
	if domain != "" {
		recs = s.store.GetStatesByDomain(domain)
	} else {
		recs = s.store.GetAllStates()
	}

	out := make([]entityStateWire, len(recs))
	for i, rec := range recs {
		out[i] = toWire(rec)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.store.GetState(id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toWire(rec))
}

// parseRFC3339Query parses query parameter name as an RFC3339 timestamp,
// returning the zero time (an open bound) when the parameter is absent.
func parseRFC3339Query(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	start, err := parseRFC3339Query(r, "start")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start: "+err.Error())
		return
	}
	end, err := parseRFC3339Query(r, "end")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end: "+err.Error())
		return
	}

	history, err := s.store.GetHistory(id, start, end)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	out := make([]entityStateWire, len(history))
	for i, rec := range history {
		out[i] = toWire(rec)
	}
	writeJSON(w, http.StatusOK, out)
}

type serviceCallRequest struct {
	EntityID []string       `json:"entity_id"`
	Data     map[string]any `json:"data"`
}

type serviceResultWire struct {
	EntityID string `json:"entity_id"`
	OK       bool   `json:"ok"`
	Reason   string `json:"reason,omitempty"`
}

func (s *Server) handleCallService(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	service := chi.URLParam(r, "service")

	var req serviceCallRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
	}

	results := s.registry.CallService(domain, service, req.EntityID, req.Data)
	out := make([]serviceResultWire, len(results))
	for i, res := range results {
		out[i] = serviceResultWire{EntityID: res.EntityID, OK: res.OK, Reason: res.Reason}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"context_id": uuid.New().String(),
		"results":    out,
	})
}

type setTimeRequest struct {
	Time time.Time `json:"time"`
}

func (s *Server) handleClockSetTime(w http.ResponseWriter, r *http.Request) {
	var req setTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	s.clk.SetTime(req.Time)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type setSpeedRequest struct {
	Speed float64 `json:"speed"`
}

func (s *Server) handleClockSetSpeed(w http.ResponseWriter, r *http.Request) {
	var req setSpeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if !s.clk.SetSpeed(req.Speed) {
		writeError(w, http.StatusBadRequest, "speed must be > 0")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleClockPause(w http.ResponseWriter, r *http.Request) {
	s.clk.Pause()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleClockResume(w http.ResponseWriter, r *http.Request) {
	s.clk.Resume()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
