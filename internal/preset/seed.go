package preset

import (
	"context"
	"errors"
	"fmt"
)

// SeedDefaults writes the built-in presets into an empty repository.
// A repository that already holds presets is left untouched.
// Returns the number of presets written.
func SeedDefaults(ctx context.Context, repo Repository, logger Logger) (int, error) {
	count, err := repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("checking preset count: %w", err)
	}
	if count > 0 {
		logger.Debug("presets exist, skipping seed", "count", count)
		return 0, nil
	}

	written := 0
	for _, p := range DefaultPresets() {
		if err := repo.Create(ctx, &p); err != nil {
			if errors.Is(err, ErrPresetExists) {
				continue
			}
			return written, fmt.Errorf("seeding preset %s: %w", p.ID, err)
		}
		written++
	}

	logger.Info("preset catalog seeded", "count", written)
	return written, nil
}
