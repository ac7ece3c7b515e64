package drink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/db/models"
	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/repository"
	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/services/validation"
)

var (
	// ErrNotFound is returned when the addressed drink does not exist.
	ErrNotFound = errors.New("drink not found")

	// ErrInvalidInput is returned when a request body is missing or malformed.
	ErrInvalidInput = errors.New("invalid drink input")
)

// Input carries the fields of a create or update request. A nil Title and a
// false HasRecipe mean the field was not provided.
type Input struct {
	Title     *string
	Recipe    []models.Ingredient
	HasRecipe bool
}

type rawInput struct {
	Title  *string         `json:"title"`
	Recipe json.RawMessage `json:"recipe"`
}

// DecodeInput validates body against schema and decodes it. A body the
// client got wrong wraps ErrInvalidInput; a validator that cannot load its
// schema returns that error unchanged.
func DecodeInput(v validation.Validator, schema string, body []byte) (Input, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Input{}, fmt.Errorf("%w: empty body", ErrInvalidInput)
	}
	if err := v.Validate(schema, body); err != nil {
		if errors.Is(err, validation.ErrInvalidDocument) {
			return Input{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return Input{}, fmt.Errorf("validate %s: %w", schema, err)
	}

	var raw rawInput
	if err := json.Unmarshal(body, &raw); err != nil {
		return Input{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	recipe, ok, err := ParseRecipe(raw.Recipe)
	if err != nil {
		return Input{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	return Input{Title: raw.Title, Recipe: recipe, HasRecipe: ok}, nil
}

// ParseRecipe accepts either a list of ingredients or a single ingredient
// object. ok is false when raw is empty or null.
func ParseRecipe(raw json.RawMessage) (recipe []models.Ingredient, ok bool, err error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, false, nil
	}

	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &recipe); err != nil {
			return nil, false, fmt.Errorf("decode recipe: %w", err)
		}
		if recipe == nil {
			recipe = []models.Ingredient{}
		}
		return recipe, true, nil
	}

	var single models.Ingredient
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, false, fmt.Errorf("decode recipe: %w", err)
	}
	return []models.Ingredient{single}, true, nil
}

// Service implements the drink use cases on top of a DrinkRepository.
type Service struct {
	repo repository.DrinkRepository
}

// NewService constructs a new Service instance.
func NewService(repo repository.DrinkRepository) *Service {
	return &Service{repo: repo}
}

// List returns every drink in insertion order.
func (s *Service) List(ctx context.Context) ([]models.Drink, error) {
	drinks, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list drinks: %w", err)
	}
	return drinks, nil
}

// Create persists a new drink. Title and recipe are both required.
func (s *Service) Create(ctx context.Context, in Input) (*models.Drink, error) {
	if in.Title == nil || !in.HasRecipe {
		return nil, fmt.Errorf("%w: title and recipe are required", ErrInvalidInput)
	}

	record, err := models.NewDrink(*in.Title, in.Recipe)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create drink: %w", err)
	}
	return record, nil
}

// Update applies the provided fields to drink id and persists it.
func (s *Service) Update(ctx context.Context, id int64, in Input) (*models.Drink, error) {
	record, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		record.Title = *in.Title
	}
	if in.HasRecipe {
		if err := record.SetIngredients(in.Recipe); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	if err := s.repo.Update(ctx, record); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("update drink %d: %w", id, err)
	}
	return record, nil
}

// Delete removes drink id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.lookup(ctx, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return fmt.Errorf("delete drink %d: %w", id, err)
	}
	return nil
}

func (s *Service) lookup(ctx context.Context, id int64) (*models.Drink, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get drink %d: %w", id, err)
	}
	return record, nil
}
