package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
	"go.uber.org/zap"

	"macro-tracker-api/internal/backup"
	"macro-tracker-api/internal/export"
	"macro-tracker-api/internal/nutrition"
	"macro-tracker-api/internal/store"
)

type dayView struct {
	nutrition.DayGroup
	Progress nutrition.TargetsProgressView `json:"progress"`
}

type summaryView struct {
	Date     string                        `json:"date"`
	Label    string                        `json:"label"`
	Meals    int                           `json:"meals"`
	Totals   nutrition.Macros              `json:"totals"`
	Targets  *nutrition.DailyTargets       `json:"targets"`
	Progress nutrition.TargetsProgressView `json:"progress"`
}

// loadDays fetches meals and targets concurrently and groups the meals.
func (s *Server) loadDays(r *http.Request, f store.MealFilter) ([]nutrition.DayGroup, *nutrition.DailyTargets, error) {
	var (
		meals   []nutrition.Meal
		targets *nutrition.DailyTargets
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		meals, err = s.store.ListMeals(ctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		targets, err = s.dailyTargets(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return nutrition.GroupByDay(meals, s.now(), s.loc), targets, nil
}

func (s *Server) listDays(w http.ResponseWriter, r *http.Request) {
	f, err := s.mealFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	days, targets, err := s.loadDays(r, f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]dayView, 0, len(days))
	for _, d := range days {
		out = append(out, dayView{DayGroup: d, Progress: targets.Progress(d.Totals).View()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	day := now.In(s.loc)
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := nutrition.ParseDate(v, s.loc)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		day = d
	}
	from, to := nutrition.DayBounds(day, s.loc)
	days, targets, err := s.loadDays(r, store.MealFilter{From: from, To: to})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	view := summaryView{
		Date:    from.Format(nutrition.DateLayout),
		Label:   nutrition.DayLabel(from, now, s.loc),
		Targets: targets,
	}
	if len(days) > 0 {
		view.Meals = len(days[0].Meals)
		view.Totals = days[0].Totals
	}
	view.Progress = targets.Progress(view.Totals).View()
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "json"
	}
	contentType := export.ContentType(format)
	if contentType == "" {
		s.fail(w, r, &nutrition.ValidationError{Field: "format", Reason: "must be json, csv or pdf"})
		return
	}
	f, err := s.mealFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	days, targets, err := s.loadDays(r, f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	data, err := export.Export(export.Report{Days: days, Targets: targets, Location: s.loc}, format)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="meals.`+format+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) runBackup(w http.ResponseWriter, r *http.Request) {
	if s.backup == nil || !s.backup.Enabled() {
		writeErr(w, http.StatusServiceUnavailable, backup.ErrDisabled)
		return
	}
	meals, err := s.store.ListMeals(r.Context(), store.MealFilter{})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	n, err := s.backup.Sync(r.Context(), meals)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("backup complete", zap.Int("files", n), zap.Int("meals", len(meals)))
	writeJSON(w, http.StatusOK, map[string]int{"files": n, "meals": len(meals)})
}

// fetchBackup returns the meals stored in one month file of the backup.
func (s *Server) fetchBackup(w http.ResponseWriter, r *http.Request) {
	if s.backup == nil || !s.backup.Enabled() {
		writeErr(w, http.StatusServiceUnavailable, backup.ErrDisabled)
		return
	}
	vars := mux.Vars(r)
	year, _ := strconv.Atoi(vars["year"])
	month, _ := strconv.Atoi(vars["month"])
	if month < 1 || month > 12 {
		s.fail(w, r, &nutrition.ValidationError{Field: "month", Reason: "must be between 1 and 12"})
		return
	}
	meals, err := s.backup.Fetch(r.Context(), year, time.Month(month))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meals)
}
