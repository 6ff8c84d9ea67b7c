package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/progression-engine/internal/models"
)

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	var req models.CompleteTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.CandidateID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "candidate_id is required")
		return
	}
	if req.TaskID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "task_id is required")
		return
	}

	res, err := s.progress.RecordTaskCompletion(r.Context(), req.CandidateID, req.TaskID)
	if err != nil {
		s.respondServiceError(w, r, err, "complete task")
		return
	}

	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleSubmitAssessment(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitAssessmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.progress.SubmitAssessment(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, r, err, "submit assessment")
		return
	}

	status := http.StatusCreated
	if res.Status == models.StatusAlreadyCompleted {
		status = http.StatusOK
	}
	respondJSON(w, status, res)
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	candidateID := chi.URLParam(r, "candidateID")

	matches, err := s.matches.Matches(r.Context(), candidateID)
	if err != nil {
		s.respondServiceError(w, r, err, "list matches")
		return
	}
	if matches == nil {
		matches = []*models.JobMatch{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"matches": matches,
		"total":   len(matches),
	})
}
