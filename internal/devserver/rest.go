package devserver

import (
	"encoding/json"
	"net/http"

	"github.com/uday68/commandgrid-sub003/internal/model"
)

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	offline := s.offline
	s.mu.Unlock()

	w.Header().Set("Cache-Control", "no-store")
	if offline {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if _, err := s.authenticate(r); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}
	msgs := s.History(r.PathValue("room"))
	if msgs == nil {
		msgs = []model.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// handleReplay accepts an offline operation once per idempotency key.
func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	if _, err := s.authenticate(r); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}

	var op model.OfflineOperation
	if err := json.NewDecoder(r.Body).Decode(&op); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed operation"})
		return
	}
	if op.Type != model.OpData && op.Type != model.OpUpload {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "unsupported operation type " + op.Type})
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		key = op.ID.String()
	}

	s.mu.Lock()
	dup := s.opIDs[key]
	if !dup {
		s.opIDs[key] = true
		s.ops = append(s.ops, op)
	}
	s.mu.Unlock()

	s.logger.Debug("offline operation received", "id", op.ID, "type", op.Type, "duplicate", dup)
	writeJSON(w, http.StatusOK, map[string]any{"id": op.ID, "duplicate": dup})
}
