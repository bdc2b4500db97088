package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/flower-core/internal/bus"
)

// connectBusRequest selects a bus to connect. Either a full config is
// supplied inline, or just an ID referencing a persisted config.
type connectBusRequest struct {
	ID     string      `json:"id"`
	Config *bus.Config `json:"config,omitempty"`

	// Persist saves an inline config before connecting, so the bus
	// comes back after a restart.
	Persist bool `json:"persist,omitempty"`
}

func (s *Server) handleListBuses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.buses.List())
}

func (s *Server) handleConnectBus(w http.ResponseWriter, r *http.Request) {
	var req connectBusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	cfg := req.Config
	if cfg == nil {
		if req.ID == "" {
			writeBadRequest(w, "id or config is required")
			return
		}
		stored, err := s.busRepo.GetByID(r.Context(), req.ID)
		if err != nil {
			if errors.Is(err, bus.ErrBusNotFound) {
				writeNotFound(w, "no stored config for bus")
				return
			}
			s.logger.Error("loading bus config", "bus", req.ID, "error", err)
			writeInternalError(w, "failed to load bus config")
			return
		}
		cfg = stored
	}

	if err := cfg.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if req.Persist && req.Config != nil {
		if err := s.busRepo.Save(r.Context(), *cfg); err != nil {
			s.logger.Error("saving bus config", "bus", cfg.ID, "error", err)
			writeInternalError(w, "failed to save bus config")
			return
		}
	}

	if err := s.buses.Connect(r.Context(), *cfg); err != nil {
		s.logger.Error("connecting bus", "bus", cfg.ID, "error", err)
		writeError(w, http.StatusBadGateway, CodeInternalError, "bus connection failed")
		return
	}

	writeJSON(w, http.StatusOK, bus.Status{ID: cfg.ID, Type: cfg.Type, Open: s.buses.IsOpen(cfg.ID)})
}

func (s *Server) handleDisconnectBus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeBadRequest(w, "bus ID is required")
		return
	}

	if err := s.buses.Disconnect(r.Context(), id); err != nil {
		if errors.Is(err, bus.ErrBusNotFound) {
			writeNotFound(w, "bus not connected")
			return
		}
		s.logger.Error("disconnecting bus", "bus", id, "error", err)
		writeInternalError(w, "failed to disconnect bus")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTestBus probes a Modbus gateway without registering it.
func (s *Server) handleTestBus(w http.ResponseWriter, r *http.Request) {
	var cfg bus.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if cfg.Type != bus.TypeModbusTCP {
		writeBadRequest(w, "connection test is only supported for modbus_tcp buses")
		return
	}
	if err := cfg.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := bus.TestConnection(cfg.Modbus); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"reachable": false,
			"error":     err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reachable": true})
}
