package detection

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nerrad567/meterdetect/internal/preset"
)

// Logger defines the logging interface used by the Detector.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// PresetCatalog is the read-only view of the preset catalog the detector needs.
// *preset.Catalog satisfies it.
type PresetCatalog interface {
	// FilterByManufacturer returns, in catalog order, every preset whose
	// manufacturer contains key (case-insensitive).
	FilterByManufacturer(key string) []preset.Preset

	// Lookup returns the preset with exactly this id.
	Lookup(id string) (preset.Preset, bool)
}

// Detector combines payload, identifier, communication and model evidence
// into a ranked DetectionResult.
//
// A Detector holds no mutable state once constructed and is safe for
// concurrent use. It never modifies the catalog.
type Detector struct {
	catalog PresetCatalog
	logger  Logger
}

// NewDetector creates a detector backed by the given preset catalog.
func NewDetector(catalog PresetCatalog) *Detector {
	return &Detector{
		catalog: catalog,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the detector.
// Call before the detector is shared between goroutines.
func (d *Detector) SetLogger(logger Logger) {
	d.logger = logger
}

// Detect runs every evidence stage in priority order and returns the result.
//
// Parameters:
//   - id: static meter identification, either field may be empty
//   - comm: the serial configuration in use, or nil when unknown
//   - p: the latest live payload, or nil when none has been received
//
// Returns:
//   - DetectionResult: confidence, suggested presets and the reasoning behind them
func (d *Detector) Detect(id MeterIdentity, comm *CommConfig, p *Payload) DetectionResult {
	res := DetectionResult{
		SuggestedPresets: []string{},
		Reasoning:        []string{},
	}

	// Live payload
	if p != nil {
		analysis := AnalyzePayload(p)
		if analysis.MeterType != nil {
			info := meterInfoFromNumber(*analysis.MeterType)
			res.DetectedManufacturer = strPtr(info.Manufacturer)
			res.DetectedModel = strPtr(info.Model)
			res.SuggestedPresets = append(res.SuggestedPresets, info.Presets...)
			res.Confidence += weightPayloadType
			res.Reasoning = append(res.Reasoning, fmt.Sprintf("Live data indicates %s %s (type %s)",
				info.Manufacturer, info.Model, formatNumber(*analysis.MeterType)))
		}
		res.Reasoning = append(res.Reasoning, analysis.Indicators...)
		res.Confidence += min(analysis.Confidence, payloadFoldCap)
	}

	// Meter identifier
	for _, ip := range identifierPatterns {
		if !ip.matches(id.MeterID) {
			continue
		}
		switch {
		case res.DetectedManufacturer == nil:
			res.DetectedManufacturer = strPtr(ip.Key)
			res.Confidence += weightIdentifier
		case strings.EqualFold(*res.DetectedManufacturer, ip.Key):
			res.Confidence += weightIdentifierSeen
			res.Reasoning = append(res.Reasoning,
				fmt.Sprintf("Meter ID \"%s\" confirms %s detection", id.MeterID, ip.Key))
			continue
		}
		res.Reasoning = append(res.Reasoning,
			fmt.Sprintf("Meter ID \"%s\" matches %s pattern", id.MeterID, ip.Key))
		res.SuggestedPresets = append(res.SuggestedPresets, d.presetsFor(ip.Key)...)
	}

	// Communication signature
	if comm != nil {
		if name, presets, ok := MatchCommSignature(*comm); ok {
			res.Confidence += weightCommSignature
			res.Reasoning = append(res.Reasoning, "Communication pattern matches "+name)
			res.SuggestedPresets = append(res.SuggestedPresets, presets...)
		}
	}

	// Model string
	if id.MeterModel != "" {
		if res.DetectedModel == nil {
			res.DetectedModel = strPtr(id.MeterModel)
		}
		res.Confidence += weightModelString
		res.Reasoning = append(res.Reasoning, "Detected meter model: "+id.MeterModel)
		if presetID, ok := MatchModelString(id.MeterModel); ok {
			res.SuggestedPresets = append(res.SuggestedPresets, presetID)
		}
	}

	res.SuggestedPresets = dedupe(res.SuggestedPresets)

	// Fallback runs after dedup and may repeat ids already suggested.
	if res.Confidence < fallbackThreshold && comm != nil &&
		comm.Baud == 2400 && comm.Parity == "8E1" {
		res.SuggestedPresets = append(res.SuggestedPresets, fallbackPresets...)
		res.Reasoning = append(res.Reasoning, "Added common HAN-port presets as fallback")
	}

	d.logger.Debug("meter detection completed",
		"meter_id", id.MeterID,
		"confidence", res.Confidence,
		"presets", len(res.SuggestedPresets),
	)

	return res
}

// presetsFor returns the ids of catalog presets made by the given manufacturer key.
func (d *Detector) presetsFor(key string) []string {
	if d.catalog == nil {
		return nil
	}
	matches := d.catalog.FilterByManufacturer(key)
	ids := make([]string, 0, len(matches))
	for _, p := range matches {
		ids = append(ids, p.ID)
	}
	return ids
}

// dedupe removes repeated ids, keeping the first occurrence of each.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return slices.Clip(out)
}

func strPtr(s string) *string {
	return &s
}
