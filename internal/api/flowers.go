package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/flower-core/internal/flower"
)

// flowerRequest is the payload for creating or updating a unit.
type flowerRequest struct {
	ID       int             `json:"id"`
	Category flower.Category `json:"category"`
	BusID    string          `json:"bus_id"`
	Priority int             `json:"priority"`
}

func (s *Server) handleListFlowers(w http.ResponseWriter, r *http.Request) {
	units := s.registry.All()
	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })
	writeJSON(w, http.StatusOK, units)
}

func (s *Server) handleGetFlower(w http.ResponseWriter, r *http.Request) {
	id, ok := flowerIDParam(w, r)
	if !ok {
		return
	}

	unit, err := s.registry.Get(id)
	if err != nil {
		writeNotFound(w, "flower not found")
		return
	}
	writeJSON(w, http.StatusOK, unit)
}

func (s *Server) handleCreateFlower(w http.ResponseWriter, r *http.Request) {
	var req flowerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	unit := flower.Unit{
		ID:       req.ID,
		Category: req.Category,
		BusID:    req.BusID,
		Priority: req.Priority,
	}
	if err := flower.Validate(&unit); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if _, err := s.registry.Get(unit.ID); err == nil {
		writeConflict(w, "flower ID already in use")
		return
	}

	if err := s.registry.Add(r.Context(), unit); err != nil {
		if errors.Is(err, flower.ErrPriorityTaken) {
			writeConflict(w, "priority key already in use")
			return
		}
		s.logger.Error("creating flower", "id", unit.ID, "error", err)
		writeInternalError(w, "failed to create flower")
		return
	}

	created, _ := s.registry.Get(unit.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateFlower(w http.ResponseWriter, r *http.Request) {
	id, ok := flowerIDParam(w, r)
	if !ok {
		return
	}

	current, err := s.registry.Get(id)
	if err != nil {
		writeNotFound(w, "flower not found")
		return
	}

	// Partial update: absent fields keep their current values.
	req := flowerRequest{
		Category: current.Category,
		BusID:    current.BusID,
		Priority: current.Priority,
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	updated := flower.Unit{
		ID:       id,
		Category: req.Category,
		BusID:    req.BusID,
		Priority: req.Priority,
	}
	if err := flower.Validate(&updated); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.registry.UpdateStatic(r.Context(), updated); err != nil {
		if errors.Is(err, flower.ErrPriorityTaken) {
			writeConflict(w, "priority key already in use")
			return
		}
		s.logger.Error("updating flower", "id", id, "error", err)
		writeInternalError(w, "failed to update flower")
		return
	}

	fresh, _ := s.registry.Get(id)
	writeJSON(w, http.StatusOK, fresh)
}

func (s *Server) handleDeleteFlower(w http.ResponseWriter, r *http.Request) {
	id, ok := flowerIDParam(w, r)
	if !ok {
		return
	}

	if _, err := s.registry.Get(id); err != nil {
		writeNotFound(w, "flower not found")
		return
	}

	if err := s.registry.Delete(r.Context(), id); err != nil {
		s.logger.Error("deleting flower", "id", id, "error", err)
		writeInternalError(w, "failed to delete flower")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// flowerIDParam parses the {id} route parameter. A false return means
// the error response has already been written.
func flowerIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		writeBadRequest(w, "invalid flower ID")
		return 0, false
	}
	return id, true
}
