package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"macro-tracker-api/internal/cache"
	"macro-tracker-api/internal/nutrition"
	"macro-tracker-api/internal/store"
)

// Store is the persistence the handlers need.
type Store interface {
	ListMeals(ctx context.Context, f store.MealFilter) ([]nutrition.Meal, error)
	GetMeal(ctx context.Context, id int64) (nutrition.Meal, error)
	CreateMeal(ctx context.Context, meal nutrition.Meal) (nutrition.Meal, error)
	UpdateMeal(ctx context.Context, id int64, meal nutrition.Meal) (nutrition.Meal, error)
	DeleteMeal(ctx context.Context, id int64) error

	ListIngredients(ctx context.Context) ([]nutrition.Ingredient, error)
	CreateIngredient(ctx context.Context, ing nutrition.Ingredient) (nutrition.Ingredient, error)

	ListIngredientTemplates(ctx context.Context) ([]nutrition.IngredientTemplate, error)
	GetIngredientTemplate(ctx context.Context, id int64) (nutrition.IngredientTemplate, error)
	CreateIngredientTemplate(ctx context.Context, t nutrition.IngredientTemplate) (nutrition.IngredientTemplate, error)
	UpdateIngredientTemplate(ctx context.Context, id int64, t nutrition.IngredientTemplate) (nutrition.IngredientTemplate, error)
	DeleteIngredientTemplate(ctx context.Context, id int64) error

	ListMealTemplates(ctx context.Context) ([]nutrition.MealTemplate, error)
	GetMealTemplate(ctx context.Context, id int64) (nutrition.MealTemplate, error)
	CreateMealTemplate(ctx context.Context, t nutrition.MealTemplate) (nutrition.MealTemplate, error)
	UpdateMealTemplate(ctx context.Context, id int64, t nutrition.MealTemplate) (nutrition.MealTemplate, error)
	DeleteMealTemplate(ctx context.Context, id int64) error

	GetDailyTargets(ctx context.Context) (nutrition.DailyTargets, error)
	CreateDailyTargets(ctx context.Context, d nutrition.DailyTargets) (nutrition.DailyTargets, error)
	UpdateDailyTargets(ctx context.Context, id int64, d nutrition.DailyTargets) (nutrition.DailyTargets, error)
	DeleteDailyTargets(ctx context.Context, id int64) error

	Ping(ctx context.Context) error
}

// Backup pushes meals somewhere durable and reads a month back.
type Backup interface {
	Enabled() bool
	Sync(ctx context.Context, meals []nutrition.Meal) (int, error)
	Fetch(ctx context.Context, year int, month time.Month) ([]nutrition.Meal, error)
}

type Options struct {
	AllowedOrigins []string
	StaticDir      string
	Location       *time.Location
	CacheTTL       time.Duration
	Backup         Backup
	Logger         *zap.Logger
	Now            func() time.Time
}

type Server struct {
	store     Store
	backup    Backup
	log       *zap.Logger
	loc       *time.Location
	now       func() time.Time
	origins   []string
	staticDir string

	templates *cache.Memory[[]nutrition.IngredientTemplate]
	targets   *cache.Memory[*nutrition.DailyTargets]
}

const (
	templatesKey = "ingredient-templates"
	targetsKey   = "daily-targets"
)

func New(st Store, opts Options) *Server {
	s := &Server{
		store:     st,
		backup:    opts.Backup,
		log:       opts.Logger,
		loc:       opts.Location,
		now:       opts.Now,
		origins:   opts.AllowedOrigins,
		staticDir: opts.StaticDir,
		templates: cache.NewMemory[[]nutrition.IngredientTemplate](opts.CacheTTL),
		targets:   cache.NewMemory[*nutrition.DailyTargets](opts.CacheTTL),
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Handler returns the routed API wrapped in CORS and request logging.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/meals", s.listMeals).Methods(http.MethodGet)
	api.HandleFunc("/meals", s.createMeal).Methods(http.MethodPost)
	api.HandleFunc("/meals/{id}", s.getMeal).Methods(http.MethodGet)
	api.HandleFunc("/meals/{id}", s.updateMeal).Methods(http.MethodPut)
	api.HandleFunc("/meals/{id}", s.deleteMeal).Methods(http.MethodDelete)

	api.HandleFunc("/days", s.listDays).Methods(http.MethodGet)
	api.HandleFunc("/summary", s.summary).Methods(http.MethodGet)

	api.HandleFunc("/ingredients", s.listIngredients).Methods(http.MethodGet)
	api.HandleFunc("/ingredients", s.createIngredient).Methods(http.MethodPost)

	api.HandleFunc("/ingredient-templates", s.listIngredientTemplates).Methods(http.MethodGet)
	api.HandleFunc("/ingredient-templates", s.createIngredientTemplate).Methods(http.MethodPost)
	api.HandleFunc("/ingredient-templates/{id}", s.getIngredientTemplate).Methods(http.MethodGet)
	api.HandleFunc("/ingredient-templates/{id}", s.updateIngredientTemplate).Methods(http.MethodPut)
	api.HandleFunc("/ingredient-templates/{id}", s.deleteIngredientTemplate).Methods(http.MethodDelete)

	api.HandleFunc("/meal-templates", s.listMealTemplates).Methods(http.MethodGet)
	api.HandleFunc("/meal-templates", s.createMealTemplate).Methods(http.MethodPost)
	api.HandleFunc("/meal-templates/{id}", s.getMealTemplate).Methods(http.MethodGet)
	api.HandleFunc("/meal-templates/{id}", s.updateMealTemplate).Methods(http.MethodPut)
	api.HandleFunc("/meal-templates/{id}", s.deleteMealTemplate).Methods(http.MethodDelete)
	api.HandleFunc("/meal-templates/{id}/meals", s.createMealFromTemplate).Methods(http.MethodPost)

	api.HandleFunc("/daily-targets", s.getDailyTargets).Methods(http.MethodGet)
	api.HandleFunc("/daily-targets", s.createDailyTargets).Methods(http.MethodPost)
	api.HandleFunc("/daily-targets/{id}", s.updateDailyTargets).Methods(http.MethodPut)
	api.HandleFunc("/daily-targets/{id}", s.deleteDailyTargets).Methods(http.MethodDelete)

	api.HandleFunc("/export", s.export).Methods(http.MethodGet)
	api.HandleFunc("/backup", s.runBackup).Methods(http.MethodPost)
	api.HandleFunc("/backup/{year:[0-9]{4}}/{month:[0-9]{1,2}}", s.fetchBackup).Methods(http.MethodGet)

	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusNotFound, errors.New("no such endpoint"))
	})
	if s.staticDir != "" {
		r.PathPrefix("/").Handler(spaHandler{dir: s.staticDir})
	}

	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposedHeaders: []string{requestIDHeader},
	})
	return c.Handler(s.loggingMiddleware(r))
}

// ListenAndServe serves until ctx is cancelled, then drains connections.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("server starting", zap.String("addr", addr))
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("server stopped")
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeErr(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
