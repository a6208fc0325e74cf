package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/alantheprice/refactord/pkg/planner"
	"github.com/alantheprice/refactord/pkg/refactor"
	"github.com/alantheprice/refactord/pkg/utils"
)

const maxBodyBytes = 64 << 20

// decodeBody reads a JSON body into v. Failures are body validation errors
// and map to 422.
func decodeBody(r io.Reader, v any) error {
	dec := json.NewDecoder(io.LimitReader(r, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return utils.NewValidationError("malformed request body", err)
	}
	return nil
}

func requireRequestID(id string) error {
	if strings.TrimSpace(id) == "" {
		return utils.NewValidationError("request_id is required", nil)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	s.metrics.planRequests.Inc()

	var req planner.PlanRequest
	if err := decodeBody(r.Body, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if err := requireRequestID(req.RequestID); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	res, err := s.planner.Plan(ctx, &req)
	if err != nil {
		s.logger.With(req.RequestID).LogError(err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRefactor(w http.ResponseWriter, r *http.Request) {
	s.metrics.refactorRequest.Inc()

	var req refactor.BatchRequest
	if err := decodeBody(r.Body, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if err := requireRequestID(req.RequestID); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	batch, err := s.orchestrator.Refactor(ctx, &req)
	if err != nil {
		s.logger.With(req.RequestID).LogError(err)
		writeError(w, statusFor(err), err)
		return
	}
	s.logger.With(req.RequestID).LogEvent("refactor_completed", map[string]any{
		"files":  len(batch.Results),
		"branch": batch.Branch,
		"digest": batch.BatchDigest,
	})
	writeJSON(w, http.StatusOK, batch)
}

// streamMessage is one frame of the /refactor/stream protocol.
type streamMessage struct {
	Type    string           `json:"type"`
	Index   *int             `json:"index,omitempty"`
	Result  *refactor.Result `json:"result,omitempty"`
	Batch   *refactor.Batch  `json:"batch,omitempty"`
	Error   string           `json:"error,omitempty"`
	Message string           `json:"message,omitempty"`
}

func errorFrame(err error) streamMessage {
	return streamMessage{Type: "error", Error: utils.CodeOf(err), Message: err.Error()}
}

func (s *Server) handleRefactorStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Logf("websocket upgrade failed: %v", err)
		return
	}
	sc := newSafeConn(conn)
	defer sc.Close()

	s.metrics.refactorRequest.Inc()

	_, data, err := conn.ReadMessage()
	if err != nil {
		s.logger.Logf("websocket read failed: %v", err)
		return
	}
	var req refactor.BatchRequest
	if err := decodeBody(bytes.NewReader(data), &req); err != nil {
		_ = sc.WriteJSON(errorFrame(err))
		return
	}
	if err := requireRequestID(req.RequestID); err != nil {
		_ = sc.WriteJSON(errorFrame(err))
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	batch, err := s.orchestrator.RefactorStream(ctx, &req, func(i int, res refactor.Result) {
		if werr := sc.WriteJSON(streamMessage{Type: "result", Index: &i, Result: &res}); werr != nil {
			s.logger.Logf("websocket write failed: %v", werr)
		}
	})
	if err != nil {
		_ = sc.WriteJSON(errorFrame(err))
		return
	}
	if err := sc.WriteJSON(streamMessage{Type: "batch", Batch: batch}); err != nil {
		s.logger.LogError(fmt.Errorf("websocket write failed: %w", err))
	}
}
