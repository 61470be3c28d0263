package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"macro-tracker-api/internal/nutrition"
)

const targetColumns = "id, carbs_min, carbs_max, fat_min, fat_max, protein_min, protein_max, kcal_min, kcal_max, created_at, updated_at"

// GetDailyTargets returns the most recently created targets.
func (s *Store) GetDailyTargets(ctx context.Context) (nutrition.DailyTargets, error) {
	row := s.queryRow(ctx, s.db, "SELECT "+targetColumns+" FROM daily_targets ORDER BY id DESC LIMIT 1")
	d, err := scanTargets(row)
	if errors.Is(err, sql.ErrNoRows) {
		return d, fmt.Errorf("daily targets: %w", ErrNotFound)
	}
	if err != nil {
		return d, fmt.Errorf("get daily targets: %w", err)
	}
	return d, nil
}

func scanTargets(sc scanner) (nutrition.DailyTargets, error) {
	var (
		d                nutrition.DailyTargets
		b                [8]sql.NullFloat64
		created, updated string
	)
	if err := sc.Scan(&d.ID, &b[0], &b[1], &b[2], &b[3], &b[4], &b[5], &b[6], &b[7], &created, &updated); err != nil {
		return d, err
	}
	d.Carbs = toRange(b[0], b[1])
	d.Fat = toRange(b[2], b[3])
	d.Protein = toRange(b[4], b[5])
	d.Kcal = toRange(b[6], b[7])
	var err error
	if d.CreatedAt, err = parseTime(created); err != nil {
		return d, err
	}
	if d.UpdatedAt, err = parseTime(updated); err != nil {
		return d, err
	}
	return d, nil
}

func toRange(lo, hi sql.NullFloat64) *nutrition.Range {
	if !lo.Valid && !hi.Valid {
		return nil
	}
	r := &nutrition.Range{}
	if lo.Valid {
		v := lo.Float64
		r.Min = &v
	}
	if hi.Valid {
		v := hi.Float64
		r.Max = &v
	}
	return r
}

func bounds(r *nutrition.Range) (lo, hi any) {
	if r == nil {
		return nil, nil
	}
	if r.Min != nil {
		lo = *r.Min
	}
	if r.Max != nil {
		hi = *r.Max
	}
	return lo, hi
}

func targetArgs(d nutrition.DailyTargets) []any {
	args := make([]any, 0, 8)
	for _, r := range []*nutrition.Range{d.Carbs, d.Fat, d.Protein, d.Kcal} {
		lo, hi := bounds(r)
		args = append(args, lo, hi)
	}
	return args
}

func (s *Store) CreateDailyTargets(ctx context.Context, d nutrition.DailyTargets) (nutrition.DailyTargets, error) {
	if err := d.Validate(); err != nil {
		return d, err
	}
	now := s.now()
	args := append(targetArgs(d), formatTime(now), formatTime(now))
	id, err := s.insert(ctx, s.db, `INSERT INTO daily_targets (carbs_min, carbs_max, fat_min, fat_max, protein_min, protein_max, kcal_min, kcal_max, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return d, fmt.Errorf("create daily targets: %w", err)
	}
	d.ID = id
	d.CreatedAt, d.UpdatedAt = truncate(now), truncate(now)
	return d, nil
}

func (s *Store) UpdateDailyTargets(ctx context.Context, id int64, d nutrition.DailyTargets) (nutrition.DailyTargets, error) {
	if err := d.Validate(); err != nil {
		return d, err
	}
	row := s.queryRow(ctx, s.db, "SELECT "+targetColumns+" FROM daily_targets WHERE id = ?", id)
	current, err := scanTargets(row)
	if errors.Is(err, sql.ErrNoRows) {
		return d, fmt.Errorf("daily targets %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return d, fmt.Errorf("update daily targets %d: %w", id, err)
	}
	now := s.now()
	args := append(targetArgs(d), formatTime(now), id)
	if _, err := s.exec(ctx, s.db, `UPDATE daily_targets
SET carbs_min = ?, carbs_max = ?, fat_min = ?, fat_max = ?, protein_min = ?, protein_max = ?, kcal_min = ?, kcal_max = ?, updated_at = ?
WHERE id = ?`, args...); err != nil {
		return d, fmt.Errorf("update daily targets %d: %w", id, err)
	}
	d.ID = id
	d.CreatedAt = current.CreatedAt
	d.UpdatedAt = truncate(now)
	return d, nil
}

func (s *Store) DeleteDailyTargets(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, s.db, "DELETE FROM daily_targets WHERE id = ?", id)
	if err == nil {
		err = affected(res)
	}
	if err != nil {
		return fmt.Errorf("delete daily targets %d: %w", id, err)
	}
	return nil
}
