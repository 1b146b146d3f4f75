package detection

import (
	"bytes"
	"encoding/json"
)

// MeterIdentity is the static identification a meter reports about itself.
// Either field may be empty.
type MeterIdentity struct {
	MeterID    string `json:"meterId"`
	MeterModel string `json:"meterModel"`
}

// CommConfig is a serial parameter set: the one currently applied, or the
// one detected for a meter. Two instances are compared, never merged.
type CommConfig struct {
	Baud   int    `json:"baud"`
	Parity string `json:"parity"` // framing, e.g. "8E1"
	Invert bool   `json:"invert"`
}

// PhaseReading is one phase of a live telemetry payload.
// Nil fields were absent from the payload, which is not the same as zero.
type PhaseReading struct {
	U *float64 `json:"u,omitempty"` // voltage
	I *float64 `json:"i,omitempty"` // current
	P *float64 `json:"p,omitempty"` // power

	// E is the raw presence flag exactly as the meter sent it.
	E json.RawMessage `json:"e,omitempty"`
}

// Payload is a loosely structured telemetry snapshot from the HAN reader.
// Every field is optional.
type Payload struct {
	MT *float64      `json:"mt,omitempty"` // explicit meter type code
	DS *float64      `json:"ds,omitempty"` // distribution system code
	L1 *PhaseReading `json:"l1,omitempty"`
	L2 *PhaseReading `json:"l2,omitempty"`
	L3 *PhaseReading `json:"l3,omitempty"`
	HM *float64      `json:"hm,omitempty"` // HAN link status
	IC *float64      `json:"ic,omitempty"` // instantaneous counter
	EC *float64      `json:"ec,omitempty"` // energy counter
	R  *float64      `json:"r,omitempty"`  // radio signal strength, dBm
	I  *float64      `json:"i,omitempty"`  // aggregate current/power indicator
}

// PayloadAnalysis holds the signals extracted from one payload.
type PayloadAnalysis struct {
	MeterType          *float64 `json:"meterType"`
	DistributionSystem *float64 `json:"distributionSystem"`
	HasL2              bool     `json:"hasL2"`
	HasL3              bool     `json:"hasL3"`
	Confidence         int      `json:"confidence"`
	Indicators         []string `json:"indicators"`
}

// MeterTypeInfo is the reference record for one meter type code.
type MeterTypeInfo struct {
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	Presets      []string `json:"presets"`
}

// DetectionResult is the ranked, explained outcome of one detection run.
//
// SuggestedPresets is ordered by the priority of the evidence that produced
// each id. Confidence is an additive ranking signal, not a probability, and
// may exceed 100.
type DetectionResult struct {
	Confidence           int      `json:"confidence"`
	SuggestedPresets     []string `json:"suggestedPresets"`
	DetectedManufacturer *string  `json:"detectedManufacturer"`
	DetectedModel        *string  `json:"detectedModel"`
	Reasoning            []string `json:"reasoning"`
}

// ConnectionStatus describes the HAN link as seen in the payload.
type ConnectionStatus string

// Connection statuses.
const (
	ConnectionUnknown      ConnectionStatus = "unknown"
	ConnectionNoData       ConnectionStatus = "no-data"
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionDisconnected ConnectionStatus = "disconnected"
)

// DataQuality grades the plausibility of the L1 readings.
type DataQuality string

// Data quality grades.
const (
	DataQualityUnknown DataQuality = "unknown"
	DataQualityGood    DataQuality = "good"
	DataQualityPartial DataQuality = "partial"
	DataQualityPoor    DataQuality = "poor"
)

// PhaseConfiguration is the number of phases carrying data.
type PhaseConfiguration string

// Phase configurations.
const (
	PhaseSingle PhaseConfiguration = "single"
	PhaseTwo    PhaseConfiguration = "two-phase"
	PhaseThree  PhaseConfiguration = "three-phase"
)

// CommunicationHealth grades the radio link from RSSI.
type CommunicationHealth string

// Communication health grades.
const (
	HealthUnknown   CommunicationHealth = "unknown"
	HealthExcellent CommunicationHealth = "excellent"
	HealthGood      CommunicationHealth = "good"
	HealthFair      CommunicationHealth = "fair"
	HealthPoor      CommunicationHealth = "poor"
)

// Diagnostics is the operator-facing health assessment of a payload.
type Diagnostics struct {
	ConnectionStatus    ConnectionStatus    `json:"connectionStatus"`
	DataQuality         DataQuality         `json:"dataQuality"`
	PhaseConfiguration  PhaseConfiguration  `json:"phaseConfiguration"`
	CommunicationHealth CommunicationHealth `json:"communicationHealth"`
	Recommendations     []string            `json:"recommendations"`
}

// DetectedParams is a partially known serial configuration.
// A zero Baud, an empty Parity and a nil Invert mean "not detected".
type DetectedParams struct {
	Baud   int    `json:"baud,omitempty"`
	Parity string `json:"parity,omitempty"`
	Invert *bool  `json:"invert,omitempty"`
}

// ValidationResult lists the mismatches between a current and a detected
// configuration, each paired with a corrective suggestion.
type ValidationResult struct {
	IsValid     bool     `json:"isValid"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

// ParsePayload decodes raw telemetry. It never fails: JSON null, malformed
// JSON or any value that is not an object yields nil. Fields with an
// unexpected type are treated as absent.
func ParsePayload(data []byte) *Payload {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}

	var p Payload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil
	}
	return &p
}

// UnmarshalJSON decodes a payload field by field so that one badly typed
// field does not discard the rest of the evidence.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		// Not an object: leave every field absent.
		*p = Payload{}
		return nil
	}

	*p = Payload{
		MT: numberField(fields["mt"]),
		DS: numberField(fields["ds"]),
		L1: phaseField(fields["l1"]),
		L2: phaseField(fields["l2"]),
		L3: phaseField(fields["l3"]),
		HM: numberField(fields["hm"]),
		IC: numberField(fields["ic"]),
		EC: numberField(fields["ec"]),
		R:  numberField(fields["r"]),
		I:  numberField(fields["i"]),
	}
	return nil
}

// UnmarshalJSON decodes a phase leniently, like Payload.
func (r *PhaseReading) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		*r = PhaseReading{}
		return nil
	}

	*r = PhaseReading{
		U: numberField(fields["u"]),
		I: numberField(fields["i"]),
		P: numberField(fields["p"]),
	}
	if e, ok := fields["e"]; ok {
		r.E = append(json.RawMessage(nil), e...)
	}
	return nil
}

// numberField returns the value of a JSON number, or nil for anything else.
func numberField(raw json.RawMessage) *float64 {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var v float64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil
	}
	return &v
}

// phaseField returns the decoded phase when raw is a JSON object.
func phaseField(raw json.RawMessage) *PhaseReading {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var r PhaseReading
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return nil
	}
	return &r
}
