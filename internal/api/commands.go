package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/flower-core/internal/command"
	"github.com/nerrad567/flower-core/internal/flower"
)

// commandRequest is the payload for dispatching a command to a unit or
// to the broadcast address of a bus.
type commandRequest struct {
	CommandID string       `json:"command_id"`
	Args      command.Args `json:"args,omitempty"`

	// BusID selects the target bus for broadcast dispatch. Ignored for
	// per-unit dispatch, where the unit's assignment wins.
	BusID string `json:"bus_id,omitempty"`
}

// commandResult is the settled exchange returned to the caller.
type commandResult struct {
	FlowerID  int             `json:"flower_id"`
	CommandID string          `json:"command_id"`
	Outcome   command.Outcome `json:"outcome"`
}

// catalogEntry describes one available command.
type catalogEntry struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	Categories  []flower.Category `json:"categories,omitempty"`
	Defaults    command.Args      `json:"defaults,omitempty"`
}

// handleListCommands returns the command catalog, optionally filtered
// by ?category=.
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	var defs []command.Definition
	if cat := r.URL.Query().Get("category"); cat != "" {
		c := flower.Category(cat)
		if !flower.ValidCategory(c) {
			writeBadRequest(w, "unknown category")
			return
		}
		defs = command.ForCategory(c)
	} else {
		defs = command.All()
	}

	entries := make([]catalogEntry, 0, len(defs))
	for _, def := range defs {
		entries = append(entries, catalogEntry{
			ID:          def.ID,
			DisplayName: def.DisplayName,
			Categories:  def.Categories,
			Defaults:    def.Defaults,
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleDispatchCommand builds a command against a unit, enqueues it
// and waits for the settled outcome.
func (s *Server) handleDispatchCommand(w http.ResponseWriter, r *http.Request) {
	id, ok := flowerIDParam(w, r)
	if !ok {
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	unit, err := s.registry.Get(id)
	if err != nil {
		writeNotFound(w, "flower not found")
		return
	}

	built, err := s.builder.Build(unit, req.CommandID, req.Args)
	if err != nil {
		writeBuildError(w, err)
		return
	}

	result, err := s.queue.Enqueue(built)
	if err != nil {
		writeInternalError(w, "dispatcher unavailable")
		return
	}

	select {
	case outcome := <-result:
		writeJSON(w, http.StatusOK, commandResult{
			FlowerID:  id,
			CommandID: built.CommandID,
			Outcome:   outcome,
		})
	case <-r.Context().Done():
		// The exchange continues and settles in the background.
	}
}

// handleBroadcast dispatches a command to the broadcast address of a
// bus, fire-and-forget.
func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.BusID == "" {
		writeBadRequest(w, "bus_id is required")
		return
	}

	built, err := s.builder.BuildBroadcast(req.BusID, req.CommandID, req.Args)
	if err != nil {
		writeBuildError(w, err)
		return
	}

	if _, err := s.queue.Enqueue(built); err != nil {
		writeInternalError(w, "dispatcher unavailable")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"bus_id":     req.BusID,
		"command_id": built.CommandID,
		"status":     "queued",
	})
}

// writeBuildError maps builder errors to API responses.
func writeBuildError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, command.ErrUnknownCommand):
		writeNotFound(w, "unknown command")
	case errors.Is(err, command.ErrUnsupportedCategory):
		writeBadRequest(w, "command not supported by this flower's category")
	default:
		writeBadRequest(w, err.Error())
	}
}
