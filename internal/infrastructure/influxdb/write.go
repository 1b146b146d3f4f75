package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementDetection   = "meter_detection"
	MeasurementDiagnostics = "meter_diagnostics"

	unknownTag = "unknown"
)

// DetectionRecord is one detection outcome for a meter.
type DetectionRecord struct {
	MeterID      string
	Manufacturer string // empty when nothing was detected
	Model        string
	Confidence   int
	TopPreset    string
	PresetCount  int
	Timestamp    time.Time
}

// DiagnosticsRecord is one health snapshot for a meter.
type DiagnosticsRecord struct {
	MeterID             string
	ConnectionStatus    string
	DataQuality         string
	PhaseConfiguration  string
	CommunicationHealth string
	Recommendations     int
	RSSI                *float64 // dBm, nil when the bridge reports none
	Timestamp           time.Time
}

// WriteDetection records a detection outcome.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteDetection(influxdb.DetectionRecord{
//	    MeterID: "han-1", Manufacturer: "aidon", Confidence: 120,
//	    TopPreset: "aidon-rj45-han", PresetCount: 2,
//	})
func (c *Client) WriteDetection(rec DetectionRecord) {
	if c.IsConnected() {
		c.writer.WritePoint(detectionPoint(rec))
	}
}

// WriteDiagnostics records a meter health snapshot.
func (c *Client) WriteDiagnostics(rec DiagnosticsRecord) {
	if c.IsConnected() {
		c.writer.WritePoint(diagnosticsPoint(rec))
	}
}

func detectionPoint(rec DetectionRecord) *write.Point {
	manufacturer := rec.Manufacturer
	if manufacturer == "" {
		manufacturer = unknownTag
	}

	fields := map[string]any{
		"confidence":   int64(rec.Confidence),
		"preset_count": int64(rec.PresetCount),
	}
	if rec.Model != "" {
		fields["model"] = rec.Model
	}
	if rec.TopPreset != "" {
		fields["top_preset"] = rec.TopPreset
	}

	return write.NewPoint(
		MeasurementDetection,
		map[string]string{
			"meter_id":     rec.MeterID,
			"manufacturer": manufacturer,
		},
		fields,
		timestampOrNow(rec.Timestamp),
	)
}

func diagnosticsPoint(rec DiagnosticsRecord) *write.Point {
	fields := map[string]any{
		"connection_status":    rec.ConnectionStatus,
		"data_quality":         rec.DataQuality,
		"phase_configuration":  rec.PhaseConfiguration,
		"communication_health": rec.CommunicationHealth,
		"recommendations":      int64(rec.Recommendations),
	}
	if rec.RSSI != nil {
		fields["rssi_dbm"] = *rec.RSSI
	}

	return write.NewPoint(
		MeasurementDiagnostics,
		map[string]string{"meter_id": rec.MeterID},
		fields,
		timestampOrNow(rec.Timestamp),
	)
}

func timestampOrNow(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now()
	}
	return ts
}
