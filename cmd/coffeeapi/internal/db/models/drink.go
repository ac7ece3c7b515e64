package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/uptrace/bun"
)

// MaxTitleLength bounds drink titles in characters; the column is varchar(80).
const MaxTitleLength = 80

// Drink is a catalog entry. The recipe is persisted as serialized JSON text.
type Drink struct {
	bun.BaseModel `bun:"table:drinks,alias:d"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Title     string    `bun:"title,type:varchar(80),notnull,unique"`
	Recipe    string    `bun:"recipe,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Ingredient is one line of a recipe.
type Ingredient struct {
	Color string  `json:"color"`
	Name  string  `json:"name"`
	Parts float64 `json:"parts"`
}

// ShortIngredient is the public view of an ingredient: no name.
type ShortIngredient struct {
	Color string  `json:"color"`
	Parts float64 `json:"parts"`
}

// DrinkShort is the public projection of a drink.
type DrinkShort struct {
	ID     int64             `json:"id"`
	Title  string            `json:"title"`
	Recipe []ShortIngredient `json:"recipe"`
}

// DrinkLong is the detailed projection, including ingredient names.
type DrinkLong struct {
	ID     int64        `json:"id"`
	Title  string       `json:"title"`
	Recipe []Ingredient `json:"recipe"`
}

// NewDrink builds an unsaved drink with its recipe serialized.
func NewDrink(title string, recipe []Ingredient) (*Drink, error) {
	d := &Drink{Title: title}
	if err := d.SetIngredients(recipe); err != nil {
		return nil, err
	}
	return d, nil
}

// SetIngredients serializes recipe into the Recipe column.
func (d *Drink) SetIngredients(recipe []Ingredient) error {
	if recipe == nil {
		recipe = []Ingredient{}
	}
	raw, err := json.Marshal(recipe)
	if err != nil {
		return fmt.Errorf("encode recipe: %w", err)
	}
	d.Recipe = string(raw)
	return nil
}

// Ingredients decodes the stored recipe.
func (d *Drink) Ingredients() ([]Ingredient, error) {
	if strings.TrimSpace(d.Recipe) == "" {
		return []Ingredient{}, nil
	}
	var recipe []Ingredient
	if err := json.Unmarshal([]byte(d.Recipe), &recipe); err != nil {
		return nil, fmt.Errorf("decode recipe of drink %d: %w", d.ID, err)
	}
	if recipe == nil {
		recipe = []Ingredient{}
	}
	return recipe, nil
}

// Short projects the drink without ingredient names.
func (d *Drink) Short() (DrinkShort, error) {
	recipe, err := d.Ingredients()
	if err != nil {
		return DrinkShort{}, err
	}
	short := make([]ShortIngredient, 0, len(recipe))
	for _, ing := range recipe {
		short = append(short, ShortIngredient{Color: ing.Color, Parts: ing.Parts})
	}
	return DrinkShort{ID: d.ID, Title: d.Title, Recipe: short}, nil
}

// Long projects the full drink.
func (d *Drink) Long() (DrinkLong, error) {
	recipe, err := d.Ingredients()
	if err != nil {
		return DrinkLong{}, err
	}
	return DrinkLong{ID: d.ID, Title: d.Title, Recipe: recipe}, nil
}

// ValidateForCreate verifies the record is well formed before insertion.
func (d *Drink) ValidateForCreate() error {
	if strings.TrimSpace(d.Title) == "" {
		return errors.New("title is required")
	}
	if utf8.RuneCountInString(d.Title) > MaxTitleLength {
		return errors.New("title exceeds maximum length")
	}
	if _, err := d.Ingredients(); err != nil {
		return fmt.Errorf("recipe must be a JSON list of ingredients: %w", err)
	}
	return nil
}
