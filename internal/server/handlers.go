package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"shapelab/internal/logging"
	"shapelab/internal/store"
	"shapelab/internal/trainer"
)

// errBadRequest marks malformed request bodies.
var errBadRequest = errors.New("bad request")

// SaveRequest is the body of POST /saved-models.
type SaveRequest struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req trainer.TrainRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.trainer.Train(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefit(w http.ResponseWriter, r *http.Request) {
	var req trainer.RefitRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.trainer.Refit(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleList(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := st.List(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"models": names})
	}
}

func (s *Server) handleGet(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := st.Read(r.Context(), r.PathValue("name"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	name, err := store.SanitizeName(req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var pretty bytes.Buffer
	if len(req.Payload) == 0 || json.Indent(&pretty, req.Payload, "", "  ") != nil {
		s.writeError(w, r, fmt.Errorf("%w: payload must be a JSON value", errBadRequest))
		return
	}
	if err := s.saved.Write(r.Context(), name, pretty.Bytes()); err != nil {
		s.writeError(w, r, err)
		return
	}

	logging.Audit(logging.AuditModelSaved, zap.String("name", name), zap.Int("bytes", pretty.Len()))
	writeJSON(w, http.StatusOK, map[string]string{"saved": name + ".json"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest), errors.Is(err, store.ErrMissingName), trainer.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request error",
			zap.String("request_id", w.Header().Get(RequestIDHeader)),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}

// writeJSON encodes v before the status line goes out; a value that cannot be
// encoded is answered with a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		logging.Get(logging.CategoryHTTP).Error("failed to encode response",
			zap.String("request_id", w.Header().Get(RequestIDHeader)),
			zap.Error(err))
		status = http.StatusInternalServerError
		buf.Reset()
		json.NewEncoder(&buf).Encode(map[string]string{"detail": fmt.Sprintf("failed to encode response: %v", err)})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
