package catalog

import (
	"context"
	"fmt"

	"brightsteps/internal/database"
	"brightsteps/internal/repository"
)

// SeedStats counts what a seed run wrote
type SeedStats struct {
	Pillars    int
	Traits     int
	Challenges int
	Weights    int
	Rewards    int
}

// Seed upserts the catalog in one transaction. Running it twice leaves the
// same rows; the reward position follows file order.
func Seed(ctx context.Context, db *database.DB, c *Catalog) (SeedStats, error) {
	var stats SeedStats
	err := db.WithTx(ctx, func(tx *database.Tx) error {
		repo := repository.NewCatalogRepository(tx)

		for _, p := range c.Pillars {
			if err := repo.UpsertPillar(ctx, p); err != nil {
				return err
			}
			stats.Pillars++
		}
		for _, t := range c.Traits {
			if err := repo.UpsertTrait(ctx, t); err != nil {
				return err
			}
			stats.Traits++
		}
		for _, ch := range c.Challenges {
			if err := repo.UpsertChallenge(ctx, ch); err != nil {
				return err
			}
			weights := c.Weights[ch.ID]
			if err := repo.ReplaceTraitWeights(ctx, ch.ID, weights); err != nil {
				return err
			}
			stats.Challenges++
			stats.Weights += len(weights)
		}
		for i, r := range c.Rewards {
			if err := repo.UpsertReward(ctx, r, i); err != nil {
				return err
			}
			stats.Rewards++
		}
		return nil
	})
	if err != nil {
		return SeedStats{}, fmt.Errorf("seeding catalog: %w", err)
	}
	return stats, nil
}
