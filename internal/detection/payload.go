package detection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Payload analysis weights. Confidence is a running sum with no clamp.
const (
	weightExplicitType   = 40
	weightDistribution   = 20
	weightPhaseData      = 15
	weightHANLinkActive  = 10
	payloadFoldCap       = 30 // cap applied when folding into the aggregate
	weightPayloadType    = 50
	weightIdentifier     = 30
	weightIdentifierSeen = 15
	weightCommSignature  = 25
	weightModelString    = 15
	fallbackThreshold    = 50
)

// AnalyzePayload extracts meter evidence from one telemetry snapshot.
//
// A nil payload yields a zeroed analysis. Every rule is independent and
// additive; the indicators are ordered by rule.
func AnalyzePayload(p *Payload) PayloadAnalysis {
	analysis := PayloadAnalysis{Indicators: []string{}}
	if p == nil {
		return analysis
	}

	if p.MT != nil && *p.MT > 0 {
		mt := *p.MT
		analysis.MeterType = &mt
		analysis.Confidence += weightExplicitType
		analysis.Indicators = append(analysis.Indicators,
			"Meter type explicitly set to "+formatNumber(*p.MT))
	}

	if p.DS != nil {
		ds := *p.DS
		analysis.DistributionSystem = &ds
		analysis.Confidence += weightDistribution
		analysis.Indicators = append(analysis.Indicators,
			"Distribution system: "+formatNumber(*p.DS))
	}

	if p.L2 != nil {
		if p.L2.carriesData() {
			analysis.HasL2 = true
			analysis.Confidence += weightPhaseData
			analysis.Indicators = append(analysis.Indicators, "L2 phase data detected")
		}
		if p.L2.E != nil {
			analysis.Indicators = append(analysis.Indicators,
				"L2 presence indicator: "+rawScalar(p.L2.E))
		}
	}

	if p.L3 != nil && p.L3.carriesData() {
		analysis.HasL3 = true
		analysis.Confidence += weightPhaseData
		analysis.Indicators = append(analysis.Indicators, "L3 phase data detected")
	}

	if p.HM != nil {
		if *p.HM > 0 {
			analysis.Confidence += weightHANLinkActive
			analysis.Indicators = append(analysis.Indicators,
				fmt.Sprintf("HAN communication active (status: %s)", formatNumber(*p.HM)))
		} else {
			analysis.Indicators = append(analysis.Indicators,
				fmt.Sprintf("HAN communication issues (status: %s)", formatNumber(*p.HM)))
		}
	}

	if isZero(p.IC) && isZero(p.EC) && p.L1 != nil && isZero(p.L1.U) {
		analysis.Indicators = append(analysis.Indicators, "Possible encrypted or unconfigured meter")
	}

	return analysis
}

// carriesData reports whether a phase shows voltage, current or power.
// An absent power reading counts as non-zero.
func (r *PhaseReading) carriesData() bool {
	if r.U != nil && *r.U > 0 {
		return true
	}
	if r.I != nil && *r.I > 0 {
		return true
	}
	return r.P == nil || *r.P != 0
}

// hasVoltageOrCurrent is the stricter phase test used by diagnostics.
func (r *PhaseReading) hasVoltageOrCurrent() bool {
	if r == nil {
		return false
	}
	return (r.U != nil && *r.U > 0) || (r.I != nil && *r.I > 0)
}

func isZero(v *float64) bool {
	return v != nil && *v == 0
}

// formatNumber prints a number the shortest way that round-trips,
// so 1 prints as "1" and 1.5 as "1.5".
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// rawScalar renders a raw JSON value for display. Strings lose their
// quotes; numbers, booleans and null print as written.
func rawScalar(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}
