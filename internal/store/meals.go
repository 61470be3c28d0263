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

// MealFilter bounds a meal listing to [From, To). Zero values are open.
type MealFilter struct {
	From time.Time
	To   time.Time
}

const mealSelect = `SELECT m.id, m.name, m.eaten_at,
       i.id, i.name, i.quantity, i.carbs, i.fat, i.protein, i.kcal, i.macro_unit
FROM meals m
LEFT JOIN ingredients i ON i.meal_id = m.id`

// ListMeals returns meals newest first with their ingredients in entry order.
func (s *Store) ListMeals(ctx context.Context, f MealFilter) ([]nutrition.Meal, error) {
	query := mealSelect + " WHERE 1 = 1"
	var args []any
	if !f.From.IsZero() {
		query += " AND m.eaten_at >= ?"
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		query += " AND m.eaten_at < ?"
		args = append(args, formatTime(f.To))
	}
	query += " ORDER BY m.eaten_at DESC, m.id DESC, i.sort_order, i.id"

	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list meals: %w", err)
	}
	defer rows.Close()
	meals, err := scanMeals(rows)
	if err != nil {
		return nil, fmt.Errorf("list meals: %w", err)
	}
	return meals, nil
}

func (s *Store) GetMeal(ctx context.Context, id int64) (nutrition.Meal, error) {
	rows, err := s.query(ctx, s.db, mealSelect+" WHERE m.id = ? ORDER BY i.sort_order, i.id", id)
	if err != nil {
		return nutrition.Meal{}, fmt.Errorf("get meal %d: %w", id, err)
	}
	defer rows.Close()
	meals, err := scanMeals(rows)
	if err != nil {
		return nutrition.Meal{}, fmt.Errorf("get meal %d: %w", id, err)
	}
	if len(meals) == 0 {
		return nutrition.Meal{}, fmt.Errorf("meal %d: %w", id, ErrNotFound)
	}
	return meals[0], nil
}

// scanMeals folds the meal/ingredient join back into meals, keeping the
// row order of the query.
func scanMeals(rows *sql.Rows) ([]nutrition.Meal, error) {
	meals := []nutrition.Meal{}
	index := map[int64]int{}
	for rows.Next() {
		var (
			mealID                         int64
			mealName, eatenAt              string
			ingID                          sql.NullInt64
			ingName, unit                  sql.NullString
			qty, carbs, fat, protein, kcal sql.NullFloat64
		)
		if err := rows.Scan(&mealID, &mealName, &eatenAt, &ingID, &ingName, &qty, &carbs, &fat, &protein, &kcal, &unit); err != nil {
			return nil, err
		}
		i, ok := index[mealID]
		if !ok {
			at, err := parseTime(eatenAt)
			if err != nil {
				return nil, fmt.Errorf("meal %d: bad timestamp %q: %w", mealID, eatenAt, err)
			}
			i = len(meals)
			index[mealID] = i
			meals = append(meals, nutrition.Meal{ID: mealID, Name: mealName, DateTime: at, Ingredients: []nutrition.Ingredient{}})
		}
		if ingID.Valid {
			meals[i].Ingredients = append(meals[i].Ingredients, nutrition.Ingredient{
				ID:        ingID.Int64,
				Name:      ingName.String,
				Quantity:  qty.Float64,
				Carbs:     carbs.Float64,
				Fat:       fat.Float64,
				Protein:   protein.Float64,
				Kcal:      kcal.Float64,
				MacroUnit: nutrition.MacroUnit(unit.String),
			})
		}
	}
	return meals, rows.Err()
}

// CreateMeal stores the meal and its ingredients in one transaction and
// returns the stored copy with ids assigned.
func (s *Store) CreateMeal(ctx context.Context, meal nutrition.Meal) (nutrition.Meal, error) {
	if err := meal.Validate(); err != nil {
		return nutrition.Meal{}, err
	}
	meal.DateTime = truncate(meal.DateTime)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := s.insert(ctx, tx, "INSERT INTO meals (name, eaten_at) VALUES (?, ?)", meal.Name, formatTime(meal.DateTime))
		if err != nil {
			return err
		}
		meal.ID = id
		return s.insertIngredients(ctx, tx, id, meal.Ingredients)
	})
	if err != nil {
		return nutrition.Meal{}, fmt.Errorf("create meal: %w", err)
	}
	s.log.Debug("meal created", zap.Int64("id", meal.ID), zap.Int("ingredients", len(meal.Ingredients)))
	return meal, nil
}

// UpdateMeal replaces the meal's name, time and full ingredient list.
func (s *Store) UpdateMeal(ctx context.Context, id int64, meal nutrition.Meal) (nutrition.Meal, error) {
	if err := meal.Validate(); err != nil {
		return nutrition.Meal{}, err
	}
	meal.DateTime = truncate(meal.DateTime)
	meal.ID = id
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := s.exists(ctx, tx, "meals", id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		if _, err := s.exec(ctx, tx, "UPDATE meals SET name = ?, eaten_at = ? WHERE id = ?", meal.Name, formatTime(meal.DateTime), id); err != nil {
			return err
		}
		if _, err := s.exec(ctx, tx, "DELETE FROM ingredients WHERE meal_id = ?", id); err != nil {
			return err
		}
		return s.insertIngredients(ctx, tx, id, meal.Ingredients)
	})
	if err != nil {
		return nutrition.Meal{}, fmt.Errorf("update meal %d: %w", id, err)
	}
	return meal, nil
}

func (s *Store) DeleteMeal(ctx context.Context, id int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.exec(ctx, tx, "DELETE FROM ingredients WHERE meal_id = ?", id); err != nil {
			return err
		}
		res, err := s.exec(ctx, tx, "DELETE FROM meals WHERE id = ?", id)
		if err != nil {
			return err
		}
		return affected(res)
	})
	if err != nil {
		return fmt.Errorf("delete meal %d: %w", id, err)
	}
	return nil
}

func (s *Store) insertIngredients(ctx context.Context, q queryer, mealID int64, ingredients []nutrition.Ingredient) error {
	for n := range ingredients {
		ing := &ingredients[n]
		id, err := s.insert(ctx, q, `INSERT INTO ingredients (meal_id, sort_order, name, quantity, carbs, fat, protein, kcal, macro_unit)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, mealID, n, ing.Name, ing.Quantity, ing.Carbs, ing.Fat, ing.Protein, ing.Kcal, string(ing.MacroUnit))
		if err != nil {
			return err
		}
		ing.ID = id
	}
	return nil
}

// ListIngredients returns every stored ingredient, meal-bound or not,
// ordered by name.
func (s *Store) ListIngredients(ctx context.Context) ([]nutrition.Ingredient, error) {
	rows, err := s.query(ctx, s.db, "SELECT id, name, quantity, carbs, fat, protein, kcal, macro_unit FROM ingredients ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}
	defer rows.Close()

	out := []nutrition.Ingredient{}
	for rows.Next() {
		var ing nutrition.Ingredient
		var unit string
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.Quantity, &ing.Carbs, &ing.Fat, &ing.Protein, &ing.Kcal, &unit); err != nil {
			return nil, fmt.Errorf("list ingredients: %w", err)
		}
		ing.MacroUnit = nutrition.MacroUnit(unit)
		out = append(out, ing)
	}
	return out, rows.Err()
}

// CreateIngredient stores an ingredient that belongs to no meal.
func (s *Store) CreateIngredient(ctx context.Context, ing nutrition.Ingredient) (nutrition.Ingredient, error) {
	if err := ing.Validate(); err != nil {
		return nutrition.Ingredient{}, err
	}
	id, err := s.insert(ctx, s.db, `INSERT INTO ingredients (name, quantity, carbs, fat, protein, kcal, macro_unit)
VALUES (?, ?, ?, ?, ?, ?, ?)`, ing.Name, ing.Quantity, ing.Carbs, ing.Fat, ing.Protein, ing.Kcal, string(ing.MacroUnit))
	if err != nil {
		return nutrition.Ingredient{}, fmt.Errorf("create ingredient: %w", err)
	}
	ing.ID = id
	return ing, nil
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
