package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/db/models"
	"github.com/uptrace/bun"
)

// BunDrinkRepository persists drinks using Bun ORM against PostgreSQL or SQLite.
type BunDrinkRepository struct {
	db *bun.DB
}

var _ DrinkRepository = (*BunDrinkRepository)(nil)

// NewBunDrinkRepository constructs a repository backed by Bun.
func NewBunDrinkRepository(db *bun.DB) *BunDrinkRepository {
	return &BunDrinkRepository{db: db}
}

// Create inserts a new drink; the database assigns its ID.
func (r *BunDrinkRepository) Create(ctx context.Context, drink *models.Drink) error {
	if err := drink.ValidateForCreate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	drink.ID = 0
	drink.CreatedAt = now
	drink.UpdatedAt = now

	_, err := r.db.NewInsert().Model(drink).Exec(ctx)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("drink with title '%s': %w", drink.Title, ErrDuplicate)
		}
		return fmt.Errorf("insert drink: %w", err)
	}

	return nil
}

// GetByID fetches a drink by its identifier.
func (r *BunDrinkRepository) GetByID(ctx context.Context, id int64) (*models.Drink, error) {
	drink := new(models.Drink)
	err := r.db.NewSelect().Model(drink).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("drink %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("query drink: %w", err)
	}

	return drink, nil
}

// Update persists the title and recipe of an existing drink.
func (r *BunDrinkRepository) Update(ctx context.Context, drink *models.Drink) error {
	if err := drink.ValidateForCreate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	drink.UpdatedAt = time.Now()

	result, err := r.db.NewUpdate().
		Model(drink).
		Column("title", "recipe", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("drink with title '%s': %w", drink.Title, ErrDuplicate)
		}
		return fmt.Errorf("update drink: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("drink %d: %w", drink.ID, ErrNotFound)
	}

	return nil
}

// Delete removes a drink by ID.
func (r *BunDrinkRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.NewDelete().
		Model((*models.Drink)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete drink: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("drink %d: %w", id, ErrNotFound)
	}

	return nil
}

// List returns all drinks in insertion order.
func (r *BunDrinkRepository) List(ctx context.Context) ([]models.Drink, error) {
	var drinks []models.Drink
	if err := r.db.NewSelect().Model(&drinks).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list drinks: %w", err)
	}

	if drinks == nil {
		drinks = []models.Drink{}
	}
	return drinks, nil
}
