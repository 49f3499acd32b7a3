package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"reel/internal/failure"
	"reel/internal/logging"
	"reel/internal/merge"
	"reel/internal/preflight"
	"reel/internal/workflow"
)

const maxRequestBody = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	statuses := preflight.CheckSystemDeps(s.cfg)
	resp := HealthResponse{Status: "ok", Dependencies: make([]DependencyStatus, len(statuses))}
	for i, dep := range statuses {
		resp.Dependencies[i] = DependencyStatus{
			Name:      dep.Name,
			Command:   dep.Command,
			Available: dep.Available,
			Detail:    dep.Detail,
		}
		if !dep.Available && !dep.Optional {
			resp.Status = "degraded"
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, err := s.manager.Scan(req.Root)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJob(w, r, http.StatusAccepted, id)
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, err := s.manager.Merge(r.Context(), merge.Request{
		Inputs:            req.Inputs,
		Output:            req.Output,
		AllowIncompatible: req.AllowIncompatible,
		Sort:              req.Sort,
	})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJob(w, r, http.StatusAccepted, id)
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	snaps := s.manager.List()
	resp := JobListResponse{Jobs: make([]Job, len(snaps))}
	for i, snap := range snaps {
		resp.Jobs[i] = FromSnapshot(snap)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	s.writeJob(w, r, http.StatusOK, chi.URLParam(r, "id"))
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.manager.Cancel(id); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJob(w, r, http.StatusAccepted, id)
}

func (s *Server) handleForgetJob(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Forget(chi.URLParam(r, "id")); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJob(w http.ResponseWriter, r *http.Request, status int, id string) {
	snap, err := s.manager.Status(id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, status, FromSnapshot(snap))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:          "invalid request body: " + err.Error(),
			Classification: failure.ClassInvalidInput,
		})
		return false
	}
	return true
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, workflow.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrShuttingDown):
		return http.StatusServiceUnavailable
	}
	switch failure.Classify(err) {
	case failure.ClassInvalidInput:
		return http.StatusBadRequest
	case failure.ClassAccessDenied:
		return http.StatusForbidden
	case failure.ClassToolUnavailable:
		return http.StatusServiceUnavailable
	case failure.ClassAlreadyRunning, failure.ClassIncompatibleInputs:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error(), Classification: failure.Classify(err)}
	if errors.Is(err, workflow.ErrJobNotFound) {
		resp.Classification = "not_found"
	}
	if status >= http.StatusInternalServerError {
		logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check server logs and tool availability"),
		)
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if err := enc.Encode(payload); err != nil {
		s.logger.Debug("write api response failed", logging.Error(err))
	}
}
