package migrations

import (
	"context"
	"fmt"
	"time"

	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/db/models"
	"github.com/uptrace/bun"
)

// SeedDrinkTitle is the drink inserted into a fresh catalog.
const SeedDrinkTitle = "water"

func init() {
	Migrations.MustRegister(up_20260901000002, down_20260901000002)
}

// up_20260901000002 seeds the catalog with a single drink
func up_20260901000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] seeding sample drink...")

	drink, err := models.NewDrink(SeedDrinkTitle, []models.Ingredient{
		{Color: "blue", Name: "water", Parts: 1},
	})
	if err != nil {
		return err
	}
	now := time.Now()
	drink.CreatedAt = now
	drink.UpdatedAt = now

	_, err = db.NewInsert().
		Model(drink).
		On("CONFLICT (title) DO NOTHING"). // Idempotent
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed drink %s: %w", SeedDrinkTitle, err)
	}

	fmt.Println(" OK")
	return nil
}

// down_20260901000002 removes the seeded drink
func down_20260901000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] removing sample drink...")

	_, err := db.NewDelete().
		Model((*models.Drink)(nil)).
		Where("title = ?", SeedDrinkTitle).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to remove drink %s: %w", SeedDrinkTitle, err)
	}

	fmt.Println(" OK")
	return nil
}
