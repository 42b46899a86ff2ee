package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/goliatone/go-mailmerge/pkg/form"
	"github.com/goliatone/go-mailmerge/pkg/session"
	"github.com/goliatone/go-mailmerge/pkg/submission"
)

type errorBody struct {
	Error string             `json:"error"`
	Kind  string             `json:"kind,omitempty"`
	Forms *form.ErrorMapping `json:"errors,omitempty"`
}

type templateSummary struct {
	ID        string   `json:"id"`
	Name      string   `json:"name,omitempty"`
	Subject   string   `json:"subject"`
	Variables []string `json:"variables"`
}

type sendRequest struct {
	Forms []form.Entry `json:"forms"`
}

type sendResponse struct {
	AttemptID string                   `json:"attempt_id"`
	Message   string                   `json:"message"`
	Succeeded bool                     `json:"succeeded"`
	Results   []submission.EntryResult `json:"results"`
}

type statusResponse struct {
	State                 string `json:"state"`
	InFlight              bool   `json:"in_flight"`
	IsAcquiringCredential bool   `json:"is_acquiring_credential"`
	IsDispatching         bool   `json:"is_dispatching"`
	AttemptID             string `json:"attempt_id,omitempty"`
	Error                 string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	ids := s.store.IDs()
	out := make([]templateSummary, 0, len(ids))
	for _, id := range ids {
		tpl, _ := s.store.Get(id)
		out = append(out, templateSummary{
			ID:        tpl.ID,
			Name:      tpl.Name,
			Subject:   tpl.Subject,
			Variables: tpl.PlaceholderNames(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, tpl.WithVariables(tpl.PlaceholderNames()...))
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	tpl, ok := s.lookup(w, r)
	if !ok {
		return
	}
	snd, err := s.senderFor(tpl)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snd.schema.OpenAPI())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	tpl, ok := s.lookup(w, r)
	if !ok {
		return
	}
	snd, err := s.senderFor(tpl)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := snd.orchestrator.Status()
	body := statusResponse{
		State:                 status.State.String(),
		InFlight:              status.InFlight,
		IsAcquiringCredential: status.IsAcquiringCredential,
		IsDispatching:         status.IsDispatching,
		AttemptID:             status.AttemptID,
	}
	if status.Err != nil {
		body.Error = status.Err.Message
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	tpl, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req sendRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be JSON: "+err.Error())
		return
	}
	for i := range req.Forms {
		if req.Forms[i].Variables == nil {
			req.Forms[i].Variables = form.VariableMap{}
		}
	}

	snd, err := s.senderFor(tpl)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	batch := submission.Batch{Template: tpl.WithVariables(snd.schema.Names()...), Entries: req.Forms}
	outcome, err := snd.orchestrator.Submit(r.Context(), batch)
	if err != nil {
		s.writeSendError(w, err)
		return
	}

	status := snd.orchestrator.Status()
	writeJSON(w, http.StatusOK, sendResponse{
		AttemptID: status.AttemptID,
		Message:   session.SuccessMessage,
		Succeeded: outcome.Succeeded,
		Results:   outcome.Results,
	})
}

func (s *Server) writeSendError(w http.ResponseWriter, err error) {
	if verrs, ok := form.AsValidationErrors(err); ok {
		mapping := verrs.Mapping()
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "validation failed", Forms: &mapping})
		return
	}
	if errors.Is(err, form.ErrStaleSchema) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errors.Is(err, submission.ErrInFlight) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if failure, ok := submission.AsError(err); ok {
		message := failure.Message
		if message == "" {
			message = session.FallbackErrorMessage
		}
		writeJSON(w, http.StatusBadGateway, errorBody{Error: message, Kind: string(failure.Kind)})
		return
	}
	s.logger.Error("send failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, session.FallbackErrorMessage)
}
