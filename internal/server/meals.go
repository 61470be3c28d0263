package server

import (
	"net/http"

	"macro-tracker-api/internal/nutrition"
	"macro-tracker-api/internal/store"
)

// mealRequest carries datetime as text so zone-less values can be read in
// the configured location.
type mealRequest struct {
	Name        string                 `json:"name"`
	DateTime    string                 `json:"datetime"`
	Ingredients []nutrition.Ingredient `json:"ingredients"`
}

func (s *Server) toMeal(req mealRequest) (nutrition.Meal, error) {
	if req.DateTime == "" {
		return nutrition.Meal{}, &nutrition.ValidationError{Field: "datetime", Reason: "is required"}
	}
	at, err := nutrition.ParseDateTime(req.DateTime, s.loc)
	if err != nil {
		return nutrition.Meal{}, err
	}
	return nutrition.Meal{Name: req.Name, DateTime: at, Ingredients: req.Ingredients}, nil
}

// mealFilter reads the inclusive from/to dates of a listing.
func (s *Server) mealFilter(r *http.Request) (store.MealFilter, error) {
	var f store.MealFilter
	if v := r.URL.Query().Get("from"); v != "" {
		d, err := nutrition.ParseDate(v, s.loc)
		if err != nil {
			return f, &nutrition.ValidationError{Field: "from", Reason: "must be YYYY-MM-DD"}
		}
		f.From, _ = nutrition.DayBounds(d, s.loc)
	}
	if v := r.URL.Query().Get("to"); v != "" {
		d, err := nutrition.ParseDate(v, s.loc)
		if err != nil {
			return f, &nutrition.ValidationError{Field: "to", Reason: "must be YYYY-MM-DD"}
		}
		_, f.To = nutrition.DayBounds(d, s.loc)
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return f, &nutrition.ValidationError{Field: "from", Reason: "must not be after to"}
	}
	return f, nil
}

func (s *Server) listMeals(w http.ResponseWriter, r *http.Request) {
	f, err := s.mealFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	meals, err := s.store.ListMeals(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meals)
}

func (s *Server) getMeal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	meal, err := s.store.GetMeal(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meal)
}

func (s *Server) createMeal(w http.ResponseWriter, r *http.Request) {
	var req mealRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	meal, err := s.toMeal(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	created, err := s.store.CreateMeal(r.Context(), meal)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) updateMeal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req mealRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	meal, err := s.toMeal(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	updated, err := s.store.UpdateMeal(r.Context(), id, meal)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteMeal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.DeleteMeal(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listIngredients(w http.ResponseWriter, r *http.Request) {
	ings, err := s.store.ListIngredients(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ings)
}

func (s *Server) createIngredient(w http.ResponseWriter, r *http.Request) {
	var ing nutrition.Ingredient
	if err := decode(w, r, &ing); err != nil {
		s.fail(w, r, err)
		return
	}
	created, err := s.store.CreateIngredient(r.Context(), ing)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}
