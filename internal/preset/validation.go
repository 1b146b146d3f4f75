package preset

import (
	"fmt"
	"regexp"
)

// idPattern allows lower-case slugs such as "aidon-rj45-han".
var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// framingPattern matches data bits, parity and stop bits, e.g. "8E1".
var framingPattern = regexp.MustCompile(`^[5-8][NEOMS][12]$`)

// Validate checks a preset before it is stored.
// Errors wrap ErrInvalidPreset.
func (p *Preset) Validate() error {
	if !idPattern.MatchString(p.ID) {
		return fmt.Errorf("%w: id %q must be a lower-case slug", ErrInvalidPreset, p.ID)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPreset)
	}
	if p.Manufacturer == "" {
		return fmt.Errorf("%w: manufacturer is required", ErrInvalidPreset)
	}
	if p.Baud <= 0 {
		return fmt.Errorf("%w: baud must be positive, got %d", ErrInvalidPreset, p.Baud)
	}
	if !framingPattern.MatchString(p.Parity) {
		return fmt.Errorf("%w: parity %q must look like 8E1", ErrInvalidPreset, p.Parity)
	}
	return nil
}
