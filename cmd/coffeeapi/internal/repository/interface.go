package repository

import (
	"context"

	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/db/models"
)

// DrinkRepository exposes persistence operations for catalog drinks.
// Lookups that match nothing return ErrNotFound; unique violations return
// ErrDuplicate. Any other error is a storage failure.
type DrinkRepository interface {
	Create(ctx context.Context, drink *models.Drink) error
	GetByID(ctx context.Context, id int64) (*models.Drink, error)
	Update(ctx context.Context, drink *models.Drink) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]models.Drink, error)
}
