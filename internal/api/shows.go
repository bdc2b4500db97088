package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/flower-core/internal/show"
)

func (s *Server) handleListShows(w http.ResponseWriter, r *http.Request) {
	projects, err := s.showStore.List(r.Context())
	if err != nil {
		s.logger.Error("listing shows", "error", err)
		writeInternalError(w, "failed to list shows")
		return
	}
	if projects == nil {
		projects = []show.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleGetShow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	project, err := s.showStore.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, show.ErrNotFound) {
			writeNotFound(w, "show not found")
			return
		}
		s.logger.Error("loading show", "show", id, "error", err)
		writeInternalError(w, "failed to load show")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleSaveShow(w http.ResponseWriter, r *http.Request) {
	var project show.Project
	if err := json.NewDecoder(r.Body).Decode(&project); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.showStore.Save(r.Context(), project); err != nil {
		if errors.Is(err, show.ErrInvalidProject) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("saving show", "show", project.ID, "error", err)
		writeInternalError(w, "failed to save show")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleDeleteShow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.showStore.Delete(r.Context(), id); err != nil {
		if errors.Is(err, show.ErrNotFound) {
			writeNotFound(w, "show not found")
			return
		}
		s.logger.Error("deleting show", "show", id, "error", err)
		writeInternalError(w, "failed to delete show")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlayShow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	project, err := s.showStore.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, show.ErrNotFound) {
			writeNotFound(w, "show not found")
			return
		}
		s.logger.Error("loading show", "show", id, "error", err)
		writeInternalError(w, "failed to load show")
		return
	}

	if err := s.player.Play(*project); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	// Status fan-out to the WebSocket feed and MQTT happens through the
	// player's status hook, not here, so natural completion is reported
	// the same way.
	writeJSON(w, http.StatusOK, s.player.Status())
}

func (s *Server) handleStopShow(w http.ResponseWriter, r *http.Request) {
	if err := s.player.Stop(); err != nil {
		if errors.Is(err, show.ErrNotPlaying) {
			writeConflict(w, "no show is playing")
			return
		}
		writeInternalError(w, "failed to stop show")
		return
	}

	writeJSON(w, http.StatusOK, s.player.Status())
}

func (s *Server) handleShowStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.player.Status())
}
