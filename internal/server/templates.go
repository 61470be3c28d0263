package server

import (
	"context"
	"net/http"

	"macro-tracker-api/internal/nutrition"
)

// ingredientTemplates serves the template list from cache when it is fresh.
// A list loaded while a write invalidated the cache is returned but not kept.
func (s *Server) ingredientTemplates(ctx context.Context) ([]nutrition.IngredientTemplate, error) {
	if list, ok := s.templates.Get(templatesKey); ok {
		return list, nil
	}
	gen := s.templates.Generation()
	list, err := s.store.ListIngredientTemplates(ctx)
	if err != nil {
		return nil, err
	}
	s.templates.SetIfCurrent(templatesKey, list, gen)
	return list, nil
}

func (s *Server) listIngredientTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := s.ingredientTemplates(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getIngredientTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	t, err := s.store.GetIngredientTemplate(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) createIngredientTemplate(w http.ResponseWriter, r *http.Request) {
	var t nutrition.IngredientTemplate
	if err := decode(w, r, &t); err != nil {
		s.fail(w, r, err)
		return
	}
	created, err := s.store.CreateIngredientTemplate(r.Context(), t)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.templates.Delete(templatesKey)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) updateIngredientTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var t nutrition.IngredientTemplate
	if err := decode(w, r, &t); err != nil {
		s.fail(w, r, err)
		return
	}
	updated, err := s.store.UpdateIngredientTemplate(r.Context(), id, t)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.templates.Delete(templatesKey)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteIngredientTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.DeleteIngredientTemplate(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.templates.Delete(templatesKey)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listMealTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListMealTemplates(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getMealTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	t, err := s.store.GetMealTemplate(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) createMealTemplate(w http.ResponseWriter, r *http.Request) {
	var t nutrition.MealTemplate
	if err := decode(w, r, &t); err != nil {
		s.fail(w, r, err)
		return
	}
	created, err := s.store.CreateMealTemplate(r.Context(), t)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) updateMealTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var t nutrition.MealTemplate
	if err := decode(w, r, &t); err != nil {
		s.fail(w, r, err)
		return
	}
	updated, err := s.store.UpdateMealTemplate(r.Context(), id, t)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteMealTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.DeleteMealTemplate(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// createMealFromTemplate logs a meal built from a template at the given
// datetime, or now when the body is empty.
func (s *Server) createMealFromTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req struct {
		DateTime string `json:"datetime"`
	}
	if err := decodeOptional(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	at := s.now().In(s.loc)
	if req.DateTime != "" {
		if at, err = nutrition.ParseDateTime(req.DateTime, s.loc); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	t, err := s.store.GetMealTemplate(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	created, err := s.store.CreateMeal(r.Context(), t.Instantiate(at))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}
