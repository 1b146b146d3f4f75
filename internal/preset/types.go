package preset

import "time"

// Preset is a named bundle of serial parameters known to work with a
// meter family.
type Preset struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`

	// Transport parameters
	Baud   int    `json:"baud"`
	Parity string `json:"parity"` // framing, e.g. "8E1"
	Invert bool   `json:"invert"`

	Connector   string `json:"connector,omitempty"` // RJ45, RJ12, ...
	Protocol    string `json:"protocol,omitempty"`
	Description string `json:"description,omitempty"`

	// SortOrder fixes the catalog order; manufacturer filters return
	// presets in this order.
	SortOrder int `json:"sortOrder"`

	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}
