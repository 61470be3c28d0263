package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"macro-tracker-api/internal/backup"
	"macro-tracker-api/internal/export"
	"macro-tracker-api/internal/nutrition"
	"macro-tracker-api/internal/report"
	"macro-tracker-api/internal/server"
	"macro-tracker-api/internal/store"
)

var (
	exportFormat string
	exportOut    string
	exportFrom   string
	exportTo     string

	reportDays int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write meals grouped by day as JSON, CSV or PDF",
	RunE:  runExport,
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Push every meal to the configured GitHub repository",
	RunE:  runBackup,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print recent days with totals and target progress",
	RunE:  runReport,
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func openStore(ctx context.Context) (*store.Store, error) {
	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.URL,
		store.WithLogger(logger),
		store.WithSeed(cfg.Database.SeedTemplates))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Database.Driver, err)
	}
	return st, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	gh := backup.New(cfg.GitHub, loc, logger)
	if !gh.Enabled() {
		logger.Info("github backup disabled")
	}
	srv := server.New(st, server.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		StaticDir:      cfg.StaticDir,
		Location:       loc,
		CacheTTL:       cfg.CacheTTL,
		Backup:         gh,
		Logger:         logger,
	})
	logger.Info("store ready", zap.String("driver", st.Driver()), zap.String("timezone", loc.String()))
	return srv.ListenAndServe(ctx, cfg.Addr())
}

// dayFilter turns inclusive YYYY-MM-DD bounds into a meal filter.
func dayFilter(from, to string, loc *time.Location) (store.MealFilter, error) {
	var f store.MealFilter
	if from != "" {
		d, err := nutrition.ParseDate(from, loc)
		if err != nil {
			return f, fmt.Errorf("--from: %w", err)
		}
		f.From, _ = nutrition.DayBounds(d, loc)
	}
	if to != "" {
		d, err := nutrition.ParseDate(to, loc)
		if err != nil {
			return f, fmt.Errorf("--to: %w", err)
		}
		_, f.To = nutrition.DayBounds(d, loc)
	}
	return f, nil
}

// loadReport reads the meals matching f and the active targets.
func loadReport(ctx context.Context, st *store.Store, f store.MealFilter, loc *time.Location) (export.Report, error) {
	meals, err := st.ListMeals(ctx, f)
	if err != nil {
		return export.Report{}, err
	}
	var targets *nutrition.DailyTargets
	d, err := st.GetDailyTargets(ctx)
	switch {
	case err == nil:
		targets = &d
	case !store.IsNotFound(err):
		return export.Report{}, err
	}
	return export.Report{
		Days:     nutrition.GroupByDay(meals, time.Now(), loc),
		Targets:  targets,
		Location: loc,
	}, nil
}

func runExport(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(exportFormat)
	if export.ContentType(format) == "" {
		return fmt.Errorf("unknown format %q, want json, csv or pdf", exportFormat)
	}
	ctx, cancel := signalContext()
	defer cancel()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	f, err := dayFilter(exportFrom, exportTo, loc)
	if err != nil {
		return err
	}
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	r, err := loadReport(ctx, st, f, loc)
	if err != nil {
		return err
	}
	data, err := export.Export(r, format)
	if err != nil {
		return err
	}
	if exportOut == "" || exportOut == "-" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(exportOut, data, 0o644); err != nil {
		return err
	}
	logger.Info("export written", zap.String("path", exportOut), zap.String("format", format), zap.Int("days", len(r.Days)))
	return nil
}

func runBackup(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	gh := backup.New(cfg.GitHub, loc, logger)
	if !gh.Enabled() {
		return fmt.Errorf("%w: set GITHUB_TOKEN and GITHUB_REPO", backup.ErrDisabled)
	}
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	meals, err := st.ListMeals(ctx, store.MealFilter{})
	if err != nil {
		return err
	}
	n, err := gh.Sync(ctx, meals)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Backed up %d meals to %d files in %s\n", len(meals), n, cfg.GitHub.Repo)
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	if reportDays < 1 {
		return fmt.Errorf("--days must be at least 1")
	}
	ctx, cancel := signalContext()
	defer cancel()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	start, end := nutrition.DayBounds(time.Now(), loc)
	r, err := loadReport(ctx, st, store.MealFilter{From: start.AddDate(0, 0, -(reportDays - 1)), To: end}, loc)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), report.Render(r.Days, r.Targets, r.Location))
	return nil
}
