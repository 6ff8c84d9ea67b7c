package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	candidateID := r.URL.Query().Get("candidate_id")

	courses, err := s.courses.ListCourses(r.Context(), candidateID)
	if err != nil {
		s.respondServiceError(w, r, err, "list courses")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"courses": courses,
		"total":   len(courses),
	})
}

func (s *Server) handleGetCourseView(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseID")
	candidateID := r.URL.Query().Get("candidate_id")
	if candidateID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "candidate_id is required")
		return
	}

	view, err := s.courses.GetCourseView(r.Context(), courseID, candidateID)
	if err != nil {
		s.respondServiceError(w, r, err, "get course")
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.courses.GetTask(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		s.respondServiceError(w, r, err, "get task")
		return
	}

	respondJSON(w, http.StatusOK, task)
}
