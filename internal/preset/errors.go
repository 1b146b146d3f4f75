package preset

import "errors"

// Domain errors for the preset package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, preset.ErrPresetNotFound) {
//	    // handle not found case
//	}
var (
	// ErrPresetNotFound is returned when a preset ID does not exist.
	ErrPresetNotFound = errors.New("preset: not found")

	// ErrPresetExists is returned when creating a preset with an ID that already exists.
	ErrPresetExists = errors.New("preset: already exists")

	// ErrInvalidPreset is returned when preset validation fails.
	ErrInvalidPreset = errors.New("preset: invalid")

	// ErrNoRepository is returned by Catalog.RefreshCache on a catalog
	// built without persistence.
	ErrNoRepository = errors.New("preset: no repository")
)
