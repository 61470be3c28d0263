package server

import (
	"context"
	"errors"
	"net/http"

	"macro-tracker-api/internal/nutrition"
	"macro-tracker-api/internal/store"
)

// dailyTargets returns the active targets, or nil when none are set.
func (s *Server) dailyTargets(ctx context.Context) (*nutrition.DailyTargets, error) {
	if d, ok := s.targets.Get(targetsKey); ok {
		return d, nil
	}
	gen := s.targets.Generation()
	d, err := s.store.GetDailyTargets(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.targets.SetIfCurrent(targetsKey, nil, gen)
		return nil, nil
	case err != nil:
		return nil, err
	}
	s.targets.SetIfCurrent(targetsKey, &d, gen)
	return &d, nil
}

func (s *Server) getDailyTargets(w http.ResponseWriter, r *http.Request) {
	d, err := s.dailyTargets(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if d == nil {
		writeErr(w, http.StatusNotFound, store.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) createDailyTargets(w http.ResponseWriter, r *http.Request) {
	var d nutrition.DailyTargets
	if err := decode(w, r, &d); err != nil {
		s.fail(w, r, err)
		return
	}
	created, err := s.store.CreateDailyTargets(r.Context(), d)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.targets.Delete(targetsKey)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) updateDailyTargets(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var d nutrition.DailyTargets
	if err := decode(w, r, &d); err != nil {
		s.fail(w, r, err)
		return
	}
	updated, err := s.store.UpdateDailyTargets(r.Context(), id, d)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.targets.Delete(targetsKey)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteDailyTargets(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.DeleteDailyTargets(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.targets.Delete(targetsKey)
	w.WriteHeader(http.StatusNoContent)
}
