package migrations

import (
	"context"
	"fmt"

	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20260901000001, down_20260901000001)
}

// up_20260901000001 creates the drinks table
func up_20260901000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating drinks table...")

	_, err := db.NewCreateTable().
		Model((*models.Drink)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create drinks table: %w", err)
	}

	fmt.Println(" OK")
	return nil
}

// down_20260901000001 drops the drinks table
func down_20260901000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping drinks table...")

	_, err := db.NewDropTable().
		Model((*models.Drink)(nil)).
		IfExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to drop drinks table: %w", err)
	}

	fmt.Println(" OK")
	return nil
}
