package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/meterdetect/internal/preset"
)

// handleListPresets returns the catalog in order.
// ?manufacturer= narrows it with the same substring match detection uses.
func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	var presets []preset.Preset
	if m := r.URL.Query().Get("manufacturer"); m != "" {
		presets = s.catalog.FilterByManufacturer(m)
	} else {
		presets = s.catalog.List()
	}
	if presets == nil {
		presets = []preset.Preset{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"presets": presets,
		"count":   len(presets),
	})
}

func (s *Server) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok := s.catalog.Lookup(id)
	if !ok {
		writeNotFound(w, "preset not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
