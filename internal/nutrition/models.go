package nutrition

import (
	"fmt"
	"strings"
	"time"
)

type MacroUnit string

const (
	PerUnit MacroUnit = "per_unit"
	Per100g MacroUnit = "per_100g"
)

// Normalize maps the empty unit to PerUnit and rejects anything unknown.
func (u MacroUnit) Normalize() (MacroUnit, error) {
	switch u {
	case "":
		return PerUnit, nil
	case PerUnit, Per100g:
		return u, nil
	}
	return "", &ValidationError{Field: "macroUnit", Reason: fmt.Sprintf("unknown unit %q", string(u))}
}

type Macros struct {
	Carbs   float64 `json:"carbs"`
	Fat     float64 `json:"fat"`
	Protein float64 `json:"protein"`
	Kcal    float64 `json:"kcal"`
}

func (m Macros) Add(o Macros) Macros {
	return Macros{
		Carbs:   m.Carbs + o.Carbs,
		Fat:     m.Fat + o.Fat,
		Protein: m.Protein + o.Protein,
		Kcal:    m.Kcal + o.Kcal,
	}
}

func (m Macros) Scale(f float64) Macros {
	return Macros{
		Carbs:   m.Carbs * f,
		Fat:     m.Fat * f,
		Protein: m.Protein * f,
		Kcal:    m.Kcal * f,
	}
}

func (m Macros) validate() error {
	for _, v := range []struct {
		name string
		val  float64
	}{{"carbs", m.Carbs}, {"fat", m.Fat}, {"protein", m.Protein}, {"kcal", m.Kcal}} {
		if v.val < 0 {
			return &ValidationError{Field: v.name, Reason: "must not be negative"}
		}
	}
	return nil
}

type Ingredient struct {
	ID        int64     `json:"id,omitempty"`
	Name      string    `json:"name"`
	Quantity  float64   `json:"quantity"`
	Carbs     float64   `json:"carbs"`
	Fat       float64   `json:"fat"`
	Protein   float64   `json:"protein"`
	Kcal      float64   `json:"kcal"`
	MacroUnit MacroUnit `json:"macroUnit"`
}

func (i Ingredient) Macros() Macros {
	return Macros{Carbs: i.Carbs, Fat: i.Fat, Protein: i.Protein, Kcal: i.Kcal}
}

// Totals scales the stored values by quantity. A per_100g ingredient counts
// its quantity in 100 g portions, so both units share the same formula.
func (i Ingredient) Totals() Macros {
	return i.Macros().Scale(i.Quantity)
}

// Validate trims the name and fills in the default unit.
func (i *Ingredient) Validate() error {
	i.Name = strings.TrimSpace(i.Name)
	if i.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if i.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be greater than zero"}
	}
	if err := i.Macros().validate(); err != nil {
		return err
	}
	unit, err := i.MacroUnit.Normalize()
	if err != nil {
		return err
	}
	i.MacroUnit = unit
	return nil
}

type Meal struct {
	ID          int64        `json:"id,omitempty"`
	Name        string       `json:"name"`
	DateTime    time.Time    `json:"datetime"`
	Ingredients []Ingredient `json:"ingredients"`
}

func (m Meal) Totals() Macros {
	var t Macros
	for _, ing := range m.Ingredients {
		t = t.Add(ing.Totals())
	}
	return t
}

func (m *Meal) Validate() error {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if m.DateTime.IsZero() {
		return &ValidationError{Field: "datetime", Reason: "is required"}
	}
	if m.Ingredients == nil {
		m.Ingredients = []Ingredient{}
	}
	for idx := range m.Ingredients {
		if err := m.Ingredients[idx].Validate(); err != nil {
			return fmt.Errorf("ingredient %d: %w", idx, err)
		}
	}
	return nil
}

type IngredientTemplate struct {
	ID              int64     `json:"id,omitempty"`
	Name            string    `json:"name"`
	Carbs           float64   `json:"carbs"`
	Fat             float64   `json:"fat"`
	Protein         float64   `json:"protein"`
	Kcal            float64   `json:"kcal"`
	MacroUnit       MacroUnit `json:"macroUnit"`
	DefaultQuantity float64   `json:"defaultQuantity,omitempty"`
	CreatedAt       time.Time `json:"createdAt,omitzero"`
	UpdatedAt       time.Time `json:"updatedAt,omitzero"`
}

func (t IngredientTemplate) Macros() Macros {
	return Macros{Carbs: t.Carbs, Fat: t.Fat, Protein: t.Protein, Kcal: t.Kcal}
}

func (t *IngredientTemplate) Validate() error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if err := t.Macros().validate(); err != nil {
		return err
	}
	if t.DefaultQuantity < 0 {
		return &ValidationError{Field: "defaultQuantity", Reason: "must not be negative"}
	}
	if t.DefaultQuantity == 0 {
		t.DefaultQuantity = 1
	}
	unit, err := t.MacroUnit.Normalize()
	if err != nil {
		return err
	}
	t.MacroUnit = unit
	return nil
}

// ToIngredient copies the template into a meal ingredient. A non-positive
// quantity falls back to the template default, then to 1.
func (t IngredientTemplate) ToIngredient(quantity float64) Ingredient {
	if quantity <= 0 {
		quantity = t.DefaultQuantity
	}
	if quantity <= 0 {
		quantity = 1
	}
	unit := t.MacroUnit
	if unit == "" {
		unit = PerUnit
	}
	return Ingredient{
		Name:      t.Name,
		Quantity:  quantity,
		Carbs:     t.Carbs,
		Fat:       t.Fat,
		Protein:   t.Protein,
		Kcal:      t.Kcal,
		MacroUnit: unit,
	}
}

// MealTemplateItem references an ingredient template. The embedded template
// is filled in when the meal template is read back from storage.
type MealTemplateItem struct {
	IngredientTemplate
	Quantity float64 `json:"quantity"`
}

type MealTemplate struct {
	ID          int64              `json:"id,omitempty"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Ingredients []MealTemplateItem `json:"ingredients"`
	CreatedAt   time.Time          `json:"createdAt,omitzero"`
	UpdatedAt   time.Time          `json:"updatedAt,omitzero"`
}

func (t *MealTemplate) Validate() error {
	t.Name = strings.TrimSpace(t.Name)
	t.Description = strings.TrimSpace(t.Description)
	if t.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if t.Ingredients == nil {
		t.Ingredients = []MealTemplateItem{}
	}
	for idx := range t.Ingredients {
		item := &t.Ingredients[idx]
		if item.ID <= 0 {
			return &ValidationError{Field: fmt.Sprintf("ingredients[%d].id", idx), Reason: "must reference an ingredient template"}
		}
		if item.Quantity < 0 {
			return &ValidationError{Field: fmt.Sprintf("ingredients[%d].quantity", idx), Reason: "must not be negative"}
		}
		if item.Quantity == 0 {
			item.Quantity = 1
		}
	}
	return nil
}

func (t MealTemplate) Totals() Macros {
	var total Macros
	for _, item := range t.Ingredients {
		total = total.Add(item.Macros().Scale(item.Quantity))
	}
	return total
}

// Instantiate builds a meal eaten at the given time from the template.
func (t MealTemplate) Instantiate(at time.Time) Meal {
	meal := Meal{
		Name:        t.Name,
		DateTime:    at,
		Ingredients: make([]Ingredient, 0, len(t.Ingredients)),
	}
	for _, item := range t.Ingredients {
		meal.Ingredients = append(meal.Ingredients, item.IngredientTemplate.ToIngredient(item.Quantity))
	}
	return meal
}

type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

func (r *Range) empty() bool {
	return r == nil || (r.Min == nil && r.Max == nil)
}

func (r *Range) validate(field string) error {
	if r == nil {
		return nil
	}
	if r.Min != nil && *r.Min < 0 {
		return &ValidationError{Field: field + ".min", Reason: "must not be negative"}
	}
	if r.Max != nil && *r.Max < 0 {
		return &ValidationError{Field: field + ".max", Reason: "must not be negative"}
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return &ValidationError{Field: field, Reason: "min must not exceed max"}
	}
	return nil
}

type DailyTargets struct {
	ID        int64     `json:"id,omitempty"`
	Carbs     *Range    `json:"carbs,omitempty"`
	Fat       *Range    `json:"fat,omitempty"`
	Protein   *Range    `json:"protein,omitempty"`
	Kcal      *Range    `json:"kcal,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// Validate drops ranges with neither bound set.
func (d *DailyTargets) Validate() error {
	for _, f := range []struct {
		name string
		r    **Range
	}{{"carbs", &d.Carbs}, {"fat", &d.Fat}, {"protein", &d.Protein}, {"kcal", &d.Kcal}} {
		if err := (*f.r).validate(f.name); err != nil {
			return err
		}
		if (*f.r).empty() {
			*f.r = nil
		}
	}
	return nil
}

type TargetsProgress struct {
	Carbs   MacroProgress `json:"carbs"`
	Fat     MacroProgress `json:"fat"`
	Protein MacroProgress `json:"protein"`
	Kcal    MacroProgress `json:"kcal"`
}

// Progress is safe to call on a nil receiver; every macro then reports
// no_target.
func (d *DailyTargets) Progress(totals Macros) TargetsProgress {
	var carbs, fat, protein, kcal *Range
	if d != nil {
		carbs, fat, protein, kcal = d.Carbs, d.Fat, d.Protein, d.Kcal
	}
	return TargetsProgress{
		Carbs:   CalculateProgress(totals.Carbs, carbs),
		Fat:     CalculateProgress(totals.Fat, fat),
		Protein: CalculateProgress(totals.Protein, protein),
		Kcal:    CalculateProgress(totals.Kcal, kcal),
	}
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}
