package adapthttp

import (
	"net/http"

	"weighttracker/internal/app"
)

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.goals.List(r.Context(), userFromContext(r).ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"goals": goals})
}

func (s *Server) handleAddGoal(w http.ResponseWriter, r *http.Request) {
	var in app.GoalInput
	if err := parseJSON(r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	g, err := s.goals.Create(r.Context(), userFromContext(r).ID, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}
