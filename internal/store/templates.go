package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"macro-tracker-api/internal/nutrition"
)

// DefaultIngredientTemplates seeds an empty catalog.
var DefaultIngredientTemplates = []nutrition.IngredientTemplate{
	{Name: "Chicken Breast", Carbs: 0, Fat: 3.6, Protein: 31, Kcal: 165, MacroUnit: nutrition.Per100g},
	{Name: "Brown Rice", Carbs: 23, Fat: 0.9, Protein: 2.7, Kcal: 111, MacroUnit: nutrition.Per100g},
	{Name: "Broccoli", Carbs: 7, Fat: 0.4, Protein: 2.8, Kcal: 34, MacroUnit: nutrition.Per100g},
	{Name: "Salmon", Carbs: 0, Fat: 13, Protein: 20, Kcal: 208, MacroUnit: nutrition.Per100g},
	{Name: "Sweet Potato", Carbs: 20, Fat: 0.1, Protein: 1.6, Kcal: 86, MacroUnit: nutrition.Per100g},
	{Name: "Eggs", Carbs: 1.1, Fat: 5.3, Protein: 6.3, Kcal: 74, MacroUnit: nutrition.PerUnit},
	{Name: "Greek Yogurt", Carbs: 3.6, Fat: 0.4, Protein: 10, Kcal: 59, MacroUnit: nutrition.Per100g},
	{Name: "Oatmeal", Carbs: 12, Fat: 1.8, Protein: 2.4, Kcal: 68, MacroUnit: nutrition.Per100g},
	{Name: "Banana", Carbs: 23, Fat: 0.3, Protein: 1.1, Kcal: 89, MacroUnit: nutrition.PerUnit},
	{Name: "Almonds", Carbs: 6, Fat: 49, Protein: 21, Kcal: 579, MacroUnit: nutrition.Per100g},
}

func (s *Store) seedTemplates(ctx context.Context) error {
	var count int
	if err := s.queryRow(ctx, s.db, "SELECT COUNT(*) FROM ingredient_templates").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, t := range DefaultIngredientTemplates {
		if _, err := s.CreateIngredientTemplate(ctx, t); err != nil {
			return err
		}
	}
	s.log.Info("seeded ingredient templates", zap.Int("count", len(DefaultIngredientTemplates)))
	return nil
}

const ingredientTemplateColumns = "id, name, carbs, fat, protein, kcal, macro_unit, default_quantity, created_at, updated_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanIngredientTemplate(sc scanner, prefix ...any) (nutrition.IngredientTemplate, error) {
	var (
		t                nutrition.IngredientTemplate
		unit             string
		created, updated string
	)
	dest := append(prefix, &t.ID, &t.Name, &t.Carbs, &t.Fat, &t.Protein, &t.Kcal, &unit, &t.DefaultQuantity, &created, &updated)
	if err := sc.Scan(dest...); err != nil {
		return t, err
	}
	t.MacroUnit = nutrition.MacroUnit(unit)
	var err error
	if t.CreatedAt, err = parseTime(created); err != nil {
		return t, err
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return t, err
	}
	return t, nil
}

func (s *Store) ListIngredientTemplates(ctx context.Context) ([]nutrition.IngredientTemplate, error) {
	rows, err := s.query(ctx, s.db, "SELECT "+ingredientTemplateColumns+" FROM ingredient_templates ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list ingredient templates: %w", err)
	}
	defer rows.Close()

	out := []nutrition.IngredientTemplate{}
	for rows.Next() {
		t, err := scanIngredientTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("list ingredient templates: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetIngredientTemplate(ctx context.Context, id int64) (nutrition.IngredientTemplate, error) {
	row := s.queryRow(ctx, s.db, "SELECT "+ingredientTemplateColumns+" FROM ingredient_templates WHERE id = ?", id)
	t, err := scanIngredientTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("ingredient template %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return t, fmt.Errorf("get ingredient template %d: %w", id, err)
	}
	return t, nil
}

func (s *Store) CreateIngredientTemplate(ctx context.Context, t nutrition.IngredientTemplate) (nutrition.IngredientTemplate, error) {
	if err := t.Validate(); err != nil {
		return t, err
	}
	now := s.now()
	id, err := s.insert(ctx, s.db, `INSERT INTO ingredient_templates (name, carbs, fat, protein, kcal, macro_unit, default_quantity, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, t.Name, t.Carbs, t.Fat, t.Protein, t.Kcal, string(t.MacroUnit), t.DefaultQuantity, formatTime(now), formatTime(now))
	if s.d.isDuplicate(err) {
		return t, fmt.Errorf("ingredient template %q: %w", t.Name, ErrConflict)
	}
	if err != nil {
		return t, fmt.Errorf("create ingredient template: %w", err)
	}
	t.ID = id
	t.CreatedAt, t.UpdatedAt = truncate(now), truncate(now)
	return t, nil
}

func (s *Store) UpdateIngredientTemplate(ctx context.Context, id int64, t nutrition.IngredientTemplate) (nutrition.IngredientTemplate, error) {
	if err := t.Validate(); err != nil {
		return t, err
	}
	current, err := s.GetIngredientTemplate(ctx, id)
	if err != nil {
		return t, err
	}
	now := s.now()
	_, err = s.exec(ctx, s.db, `UPDATE ingredient_templates
SET name = ?, carbs = ?, fat = ?, protein = ?, kcal = ?, macro_unit = ?, default_quantity = ?, updated_at = ?
WHERE id = ?`, t.Name, t.Carbs, t.Fat, t.Protein, t.Kcal, string(t.MacroUnit), t.DefaultQuantity, formatTime(now), id)
	if s.d.isDuplicate(err) {
		return t, fmt.Errorf("ingredient template %q: %w", t.Name, ErrConflict)
	}
	if err != nil {
		return t, fmt.Errorf("update ingredient template %d: %w", id, err)
	}
	t.ID = id
	t.CreatedAt = current.CreatedAt
	t.UpdatedAt = truncate(now)
	return t, nil
}

// DeleteIngredientTemplate also drops the template from any meal template
// that used it.
func (s *Store) DeleteIngredientTemplate(ctx context.Context, id int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.exec(ctx, tx, "DELETE FROM meal_template_ingredients WHERE ingredient_template_id = ?", id); err != nil {
			return err
		}
		res, err := s.exec(ctx, tx, "DELETE FROM ingredient_templates WHERE id = ?", id)
		if err != nil {
			return err
		}
		return affected(res)
	})
	if err != nil {
		return fmt.Errorf("delete ingredient template %d: %w", id, err)
	}
	return nil
}

const mealTemplateItemSelect = `SELECT mti.meal_template_id, mti.quantity,
       it.id, it.name, it.carbs, it.fat, it.protein, it.kcal, it.macro_unit, it.default_quantity, it.created_at, it.updated_at
FROM meal_template_ingredients mti
JOIN ingredient_templates it ON it.id = mti.ingredient_template_id`

func (s *Store) ListMealTemplates(ctx context.Context) ([]nutrition.MealTemplate, error) {
	templates, err := s.loadMealTemplates(ctx, "ORDER BY name, id", mealTemplateItemSelect+" ORDER BY mti.meal_template_id, mti.sort_order")
	if err != nil {
		return nil, fmt.Errorf("list meal templates: %w", err)
	}
	return templates, nil
}

func (s *Store) GetMealTemplate(ctx context.Context, id int64) (nutrition.MealTemplate, error) {
	templates, err := s.loadMealTemplates(ctx, "WHERE id = ?", mealTemplateItemSelect+" WHERE mti.meal_template_id = ? ORDER BY mti.sort_order", id)
	if err != nil {
		return nutrition.MealTemplate{}, fmt.Errorf("get meal template %d: %w", id, err)
	}
	if len(templates) == 0 {
		return nutrition.MealTemplate{}, fmt.Errorf("meal template %d: %w", id, ErrNotFound)
	}
	return templates[0], nil
}

func (s *Store) loadMealTemplates(ctx context.Context, where, itemQuery string, args ...any) ([]nutrition.MealTemplate, error) {
	rows, err := s.query(ctx, s.db, "SELECT id, name, description, created_at, updated_at FROM meal_templates "+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := []nutrition.MealTemplate{}
	index := map[int64]int{}
	for rows.Next() {
		var (
			t                nutrition.MealTemplate
			desc             sql.NullString
			created, updated string
		)
		if err := rows.Scan(&t.ID, &t.Name, &desc, &created, &updated); err != nil {
			return nil, err
		}
		t.Description = desc.String
		if t.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if t.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		t.Ingredients = []nutrition.MealTemplateItem{}
		index[t.ID] = len(templates)
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	items, err := s.query(ctx, s.db, itemQuery, args...)
	if err != nil {
		return nil, err
	}
	defer items.Close()
	for items.Next() {
		var templateID int64
		var qty float64
		it, err := scanIngredientTemplate(items, &templateID, &qty)
		if err != nil {
			return nil, err
		}
		if i, ok := index[templateID]; ok {
			templates[i].Ingredients = append(templates[i].Ingredients, nutrition.MealTemplateItem{IngredientTemplate: it, Quantity: qty})
		}
	}
	return templates, items.Err()
}

func (s *Store) CreateMealTemplate(ctx context.Context, t nutrition.MealTemplate) (nutrition.MealTemplate, error) {
	if err := t.Validate(); err != nil {
		return t, err
	}
	now := formatTime(s.now())
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = s.insert(ctx, tx, "INSERT INTO meal_templates (name, description, created_at, updated_at) VALUES (?, ?, ?, ?)", t.Name, t.Description, now, now)
		if err != nil {
			return err
		}
		return s.insertMealTemplateItems(ctx, tx, id, t.Ingredients)
	})
	if err != nil {
		return t, fmt.Errorf("create meal template: %w", err)
	}
	return s.GetMealTemplate(ctx, id)
}

func (s *Store) UpdateMealTemplate(ctx context.Context, id int64, t nutrition.MealTemplate) (nutrition.MealTemplate, error) {
	if err := t.Validate(); err != nil {
		return t, err
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := s.exists(ctx, tx, "meal_templates", id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		if _, err := s.exec(ctx, tx, "UPDATE meal_templates SET name = ?, description = ?, updated_at = ? WHERE id = ?", t.Name, t.Description, formatTime(s.now()), id); err != nil {
			return err
		}
		if _, err := s.exec(ctx, tx, "DELETE FROM meal_template_ingredients WHERE meal_template_id = ?", id); err != nil {
			return err
		}
		return s.insertMealTemplateItems(ctx, tx, id, t.Ingredients)
	})
	if err != nil {
		return t, fmt.Errorf("update meal template %d: %w", id, err)
	}
	return s.GetMealTemplate(ctx, id)
}

func (s *Store) DeleteMealTemplate(ctx context.Context, id int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.exec(ctx, tx, "DELETE FROM meal_template_ingredients WHERE meal_template_id = ?", id); err != nil {
			return err
		}
		res, err := s.exec(ctx, tx, "DELETE FROM meal_templates WHERE id = ?", id)
		if err != nil {
			return err
		}
		return affected(res)
	})
	if err != nil {
		return fmt.Errorf("delete meal template %d: %w", id, err)
	}
	return nil
}

func (s *Store) insertMealTemplateItems(ctx context.Context, q queryer, templateID int64, items []nutrition.MealTemplateItem) error {
	for n, item := range items {
		ok, err := s.exists(ctx, q, "ingredient_templates", item.ID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("ingredient template %d: %w", item.ID, ErrInvalid)
		}
		if _, err := s.exec(ctx, q, `INSERT INTO meal_template_ingredients (meal_template_id, sort_order, ingredient_template_id, quantity)
VALUES (?, ?, ?, ?)`, templateID, n, item.ID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// truncate matches the millisecond precision of stored timestamps.
func truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
