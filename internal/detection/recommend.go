package detection

import "github.com/nerrad567/meterdetect/internal/preset"

// BestPreset returns the catalog record for the highest ranked preset id.
// It reports false when ids is empty or the first id is not in the
// catalog; it never falls through to lower ranked ids.
func (d *Detector) BestPreset(ids []string) (preset.Preset, bool) {
	if len(ids) == 0 || d.catalog == nil {
		return preset.Preset{}, false
	}
	return d.catalog.Lookup(ids[0])
}
