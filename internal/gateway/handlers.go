package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"procura/internal/correlation"
	"procura/internal/request"
	"procura/internal/types"
)

const streamClosedMarker = "[STREAM CLOSED]"

type procureRequest struct {
	// Text is a free-form requirement sentence; when set it is parsed
	// and the structured fields are ignored.
	Text        string             `json:"text,omitempty"`
	Requirement *types.Requirement `json:"requirement,omitempty"`
}

type procureResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

func (s *Server) handleProcure(w http.ResponseWriter, r *http.Request) {
	var in procureRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var req types.Requirement
	switch {
	case in.Text != "":
		req = request.Parse(in.Text)
	case in.Requirement != nil:
		req = *in.Requirement
	default:
		s.writeError(w, http.StatusBadRequest, "provide either text or requirement")
		return
	}

	id, err := s.driver.Submit(r.Context(), req, "http:"+r.RemoteAddr)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.writeJSON(w, http.StatusAccepted, procureResponse{RequestID: id, Status: "accepted"})
}

// handleStream serves the id's event stream as SSE. Each event is one
// data line; the stream ends with a closed marker after the terminal
// event.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.notifier.Subscribe(id)
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-ch:
			if !open {
				fmt.Fprintf(w, "data: %s\n\n", streamClosedMarker)
				flusher.Flush()
				return
			}
			fmt.Fprintf(w, "data: [%s] %s\n\n", ev.At.Format(time.RFC3339), ev.Message)
			flusher.Flush()
		}
	}
}

type statusResponse struct {
	RequestID  string                    `json:"request_id"`
	State      types.State               `json:"state"`
	Terminal   bool                      `json:"terminal"`
	Candidates int                       `json:"candidates"`
	Ranked     []types.RankedCandidate   `json:"ranked,omitempty"`
	Outcome    *types.NegotiationOutcome `json:"outcome,omitempty"`
	CreatedAt  time.Time                 `json:"created_at"`
	UpdatedAt  time.Time                 `json:"updated_at"`
}

func (s *Server) handleRequestStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entry, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, correlation.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "unknown request id")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	s.writeJSON(w, http.StatusOK, statusResponse{
		RequestID:  entry.RequestID,
		State:      entry.State,
		Terminal:   entry.Terminal,
		Candidates: len(entry.Candidates),
		Ranked:     entry.Ranked,
		Outcome:    entry.Outcome,
		CreatedAt:  entry.CreatedAt,
		UpdatedAt:  entry.UpdatedAt,
	})
}

type notifyRequest struct {
	RequestID string `json:"request_id"`
	Message   string `json:"message"`
	Done      bool   `json:"done"`
	Error     bool   `json:"error"`
}

// handleNotify lets out-of-process collaborators publish events onto a
// request's stream. In-process collaborators publish directly.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	var in notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.RequestID == "" || in.Message == "" {
		s.writeError(w, http.StatusBadRequest, "request_id and message are required")
		return
	}

	s.notifier.Publish(in.RequestID, in.Message, in.Done, in.Error)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) handleLaptops(w http.ResponseWriter, r *http.Request) {
	laptops, err := s.catalog.All(r.Context())
	if err != nil {
		s.logger.Error("catalog dump failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "catalog unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(laptops),
		"laptops": laptops,
	})
}

type scoreRequest struct {
	Candidates []types.Candidate `json:"candidates"`
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var in scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(in.Candidates) == 0 {
		s.writeError(w, http.StatusBadRequest, "candidates are required")
		return
	}

	scored, err := s.compute.Score(r.Context(), in.Candidates)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "scoring failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"results": scored})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"entries": s.store.Len(),
		"streams": s.notifier.Streams(),
		"dropped": s.notifier.Dropped(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
