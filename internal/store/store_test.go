package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macro-tracker-api/internal/nutrition"
)

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	s, err := Open(context.Background(), "sqlite", ":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func fp(v float64) *float64 { return &v }

func TestOpenSeedsTemplatesOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	templates, err := s.ListIngredientTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, len(DefaultIngredientTemplates))
	assert.Equal(t, "Almonds", templates[0].Name)
	assert.Equal(t, 1.0, templates[0].DefaultQuantity)

	require.NoError(t, s.seedTemplates(ctx))
	templates, err = s.ListIngredientTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, templates, len(DefaultIngredientTemplates))

	// migrations are idempotent
	require.NoError(t, s.migrate(ctx))
}

func TestOpenWithoutSeed(t *testing.T) {
	s := newTestStore(t, WithSeed(false))
	templates, err := s.ListIngredientTemplates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, templates)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "x")
	assert.Error(t, err)
}

func TestMealLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithSeed(false))

	meal := nutrition.Meal{
		Name:     "Lunch",
		DateTime: time.Date(2024, 3, 15, 12, 30, 0, 0, time.UTC),
		Ingredients: []nutrition.Ingredient{
			{Name: "Rice", Quantity: 1.5, Carbs: 23, Fat: 0.9, Protein: 2.7, Kcal: 111, MacroUnit: nutrition.Per100g},
			{Name: "Eggs", Quantity: 2, Carbs: 1.1, Fat: 5.3, Protein: 6.3, Kcal: 74},
		},
	}
	created, err := s.CreateMeal(ctx, meal)
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	assert.NotZero(t, created.Ingredients[0].ID)
	assert.Equal(t, nutrition.PerUnit, created.Ingredients[1].MacroUnit)

	got, err := s.GetMeal(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lunch", got.Name)
	assert.True(t, got.DateTime.Equal(meal.DateTime))
	require.Len(t, got.Ingredients, 2)
	assert.Equal(t, "Rice", got.Ingredients[0].Name)
	assert.Equal(t, "Eggs", got.Ingredients[1].Name)
	assert.InDelta(t, created.Totals().Kcal, got.Totals().Kcal, 1e-9)

	update := nutrition.Meal{
		Name:        "Late lunch",
		DateTime:    meal.DateTime.Add(time.Hour),
		Ingredients: []nutrition.Ingredient{{Name: "Banana", Quantity: 1, Carbs: 23, Kcal: 89}},
	}
	_, err = s.UpdateMeal(ctx, created.ID, update)
	require.NoError(t, err)

	got, err = s.GetMeal(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Late lunch", got.Name)
	require.Len(t, got.Ingredients, 1)
	assert.Equal(t, "Banana", got.Ingredients[0].Name)

	ingredients, err := s.ListIngredients(ctx)
	require.NoError(t, err)
	assert.Len(t, ingredients, 1, "replaced ingredients are removed")

	require.NoError(t, s.DeleteMeal(ctx, created.ID))
	_, err = s.GetMeal(ctx, created.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, IsNotFound(s.DeleteMeal(ctx, created.ID)))

	ingredients, err = s.ListIngredients(ctx)
	require.NoError(t, err)
	assert.Empty(t, ingredients)
}

func TestMealWritesReturnStoredTime(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithSeed(false))
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	at := time.Date(2024, 3, 15, 8, 30, 0, 123456789, ny)
	created, err := s.CreateMeal(ctx, nutrition.Meal{Name: "Breakfast", DateTime: at})
	require.NoError(t, err)
	got, err := s.GetMeal(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, got.DateTime, created.DateTime)
	assert.Equal(t, time.UTC, created.DateTime.Location())
	assert.Equal(t, 123000000, created.DateTime.Nanosecond())
	assert.True(t, created.DateTime.Equal(at.Truncate(time.Millisecond)))

	updated, err := s.UpdateMeal(ctx, created.ID, nutrition.Meal{Name: "Breakfast", DateTime: at.Add(time.Hour)})
	require.NoError(t, err)
	got, err = s.GetMeal(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, got.DateTime, updated.DateTime)
}

func TestUpdateMissingMeal(t *testing.T) {
	s := newTestStore(t, WithSeed(false))
	_, err := s.UpdateMeal(context.Background(), 99, nutrition.Meal{Name: "x", DateTime: fixedNow})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateMealValidates(t *testing.T) {
	s := newTestStore(t, WithSeed(false))
	_, err := s.CreateMeal(context.Background(), nutrition.Meal{Name: "", DateTime: fixedNow})
	var verr *nutrition.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestListMealsOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithSeed(false))

	for i, day := range []int{13, 15, 14, 15} {
		_, err := s.CreateMeal(ctx, nutrition.Meal{
			Name:     "meal",
			DateTime: time.Date(2024, 3, day, 8+i, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}

	all, err := s.ListMeals(ctx, MealFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].DateTime.After(all[i-1].DateTime), "meals must be newest first")
	}
	assert.NotNil(t, all[0].Ingredients)

	from, to := nutrition.DayBounds(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), time.UTC)
	day, err := s.ListMeals(ctx, MealFilter{From: from, To: to})
	require.NoError(t, err)
	assert.Len(t, day, 2)

	before, err := s.ListMeals(ctx, MealFilter{To: from})
	require.NoError(t, err)
	assert.Len(t, before, 2)
}

func TestStandaloneIngredient(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithSeed(false))

	_, err := s.CreateIngredient(ctx, nutrition.Ingredient{Name: "Zucchini", Quantity: 1, Kcal: 17})
	require.NoError(t, err)
	created, err := s.CreateIngredient(ctx, nutrition.Ingredient{Name: "Apple", Quantity: 1, Kcal: 52, MacroUnit: nutrition.Per100g})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	list, err := s.ListIngredients(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Apple", list[0].Name)
	assert.Equal(t, nutrition.Per100g, list[0].MacroUnit)

	_, err = s.CreateIngredient(ctx, nutrition.Ingredient{Name: "Bad", Quantity: -1})
	assert.Error(t, err)
}

func TestIngredientTemplates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithSeed(false))

	created, err := s.CreateIngredientTemplate(ctx, nutrition.IngredientTemplate{Name: "Tofu", Protein: 8, Fat: 4.8, Carbs: 1.9, Kcal: 76, MacroUnit: nutrition.Per100g})
	require.NoError(t, err)
	assert.Equal(t, fixedNow, created.CreatedAt)
	assert.Equal(t, 1.0, created.DefaultQuantity)

	_, err = s.CreateIngredientTemplate(ctx, nutrition.IngredientTemplate{Name: "Tofu"})
	assert.ErrorIs(t, err, ErrConflict)

	other, err := s.CreateIngredientTemplate(ctx, nutrition.IngredientTemplate{Name: "Tempeh", Protein: 19})
	require.NoError(t, err)

	created.Protein = 9
	created.DefaultQuantity = 2
	updated, err := s.UpdateIngredientTemplate(ctx, created.ID, created)
	require.NoError(t, err)
	assert.Equal(t, 9.0, updated.Protein)

	got, err := s.GetIngredientTemplate(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.DefaultQuantity)
	assert.Equal(t, fixedNow, got.CreatedAt)

	other.Name = "Tofu"
	_, err = s.UpdateIngredientTemplate(ctx, other.ID, other)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = s.UpdateIngredientTemplate(ctx, 404, other)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeleteIngredientTemplate(ctx, created.ID))
	_, err = s.GetIngredientTemplate(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteIngredientTemplate(ctx, created.ID), ErrNotFound)
}

func TestMealTemplates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithSeed(false))

	oats, err := s.CreateIngredientTemplate(ctx, nutrition.IngredientTemplate{Name: "Oatmeal", Carbs: 12, Fat: 1.8, Protein: 2.4, Kcal: 68, MacroUnit: nutrition.Per100g})
	require.NoError(t, err)
	banana, err := s.CreateIngredientTemplate(ctx, nutrition.IngredientTemplate{Name: "Banana", Carbs: 23, Fat: 0.3, Protein: 1.1, Kcal: 89})
	require.NoError(t, err)

	tmpl := nutrition.MealTemplate{
		Name:        "Porridge",
		Description: "weekday breakfast",
		Ingredients: []nutrition.MealTemplateItem{
			{IngredientTemplate: nutrition.IngredientTemplate{ID: oats.ID}, Quantity: 0.5},
			{IngredientTemplate: nutrition.IngredientTemplate{ID: banana.ID}},
		},
	}
	created, err := s.CreateMealTemplate(ctx, tmpl)
	require.NoError(t, err)
	require.Len(t, created.Ingredients, 2)
	assert.Equal(t, "Oatmeal", created.Ingredients[0].Name)
	assert.Equal(t, 0.5, created.Ingredients[0].Quantity)
	assert.Equal(t, 1.0, created.Ingredients[1].Quantity)
	assert.InDelta(t, 34+89, created.Totals().Kcal, 1e-9)

	_, err = s.CreateMealTemplate(ctx, nutrition.MealTemplate{Name: "Empty"})
	require.NoError(t, err)

	list, err := s.ListMealTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Empty", list[0].Name)
	assert.Empty(t, list[0].Ingredients)
	assert.Len(t, list[1].Ingredients, 2)

	created.Ingredients = created.Ingredients[1:]
	updated, err := s.UpdateMealTemplate(ctx, created.ID, created)
	require.NoError(t, err)
	require.Len(t, updated.Ingredients, 1)
	assert.Equal(t, "Banana", updated.Ingredients[0].Name)

	bad := nutrition.MealTemplate{Name: "Ghost", Ingredients: []nutrition.MealTemplateItem{{IngredientTemplate: nutrition.IngredientTemplate{ID: 999}}}}
	_, err = s.CreateMealTemplate(ctx, bad)
	assert.ErrorIs(t, err, ErrInvalid)

	// deleting an ingredient template removes it from meal templates
	require.NoError(t, s.DeleteIngredientTemplate(ctx, banana.ID))
	got, err := s.GetMealTemplate(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Ingredients)

	require.NoError(t, s.DeleteMealTemplate(ctx, created.ID))
	_, err = s.GetMealTemplate(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.UpdateMealTemplate(ctx, created.ID, created)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDailyTargets(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithSeed(false))

	_, err := s.GetDailyTargets(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	created, err := s.CreateDailyTargets(ctx, nutrition.DailyTargets{
		Protein: &nutrition.Range{Min: fp(120)},
		Kcal:    &nutrition.Range{Min: fp(1800), Max: fp(2200)},
		Carbs:   &nutrition.Range{},
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	got, err := s.GetDailyTargets(ctx)
	require.NoError(t, err)
	assert.Nil(t, got.Carbs)
	assert.Nil(t, got.Fat)
	require.NotNil(t, got.Protein)
	assert.Equal(t, 120.0, *got.Protein.Min)
	assert.Nil(t, got.Protein.Max)
	assert.Equal(t, 2200.0, *got.Kcal.Max)

	got.Fat = &nutrition.Range{Max: fp(70)}
	_, err = s.UpdateDailyTargets(ctx, got.ID, got)
	require.NoError(t, err)
	got, err = s.GetDailyTargets(ctx)
	require.NoError(t, err)
	assert.Equal(t, 70.0, *got.Fat.Max)

	_, err = s.UpdateDailyTargets(ctx, got.ID, nutrition.DailyTargets{Fat: &nutrition.Range{Min: fp(10), Max: fp(5)}})
	var verr *nutrition.ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = s.UpdateDailyTargets(ctx, 404, got)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeleteDailyTargets(ctx, got.ID))
	_, err = s.GetDailyTargets(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteDailyTargets(ctx, got.ID), ErrNotFound)
}

func TestRebind(t *testing.T) {
	pg, err := lookupDialect("postgres")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	my, err := lookupDialect("MySQL")
	require.NoError(t, err)
	assert.Equal(t, "a = ?", my.rebind("a = ?"))
	assert.Contains(t, my.ddl("id {{pk}}"), "AUTO_INCREMENT")
	assert.True(t, my.isDuplicate(errors.New("Error 1062: Duplicate entry 'x' for key 'name'")))
	assert.False(t, my.isDuplicate(nil))
}
