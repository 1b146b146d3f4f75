package monitor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/meterdetect/internal/detection"
	"github.com/nerrad567/meterdetect/internal/preset"
)

// Frame is one live message from a HAN bridge on meterdetect/meter/{source}/live.
//
// Comm is the port configuration the bridge is reading with, when known.
// Payload is the decoded meter data and is parsed leniently.
type Frame struct {
	MeterID    string                `json:"meter_id"`
	MeterModel string                `json:"meter_model"`
	Comm       *detection.CommConfig `json:"comm,omitempty"`
	Payload    json.RawMessage       `json:"payload,omitempty"`
}

// Event is a detection run for one source, as delivered to watchers and
// published on meterdetect/detection/{source}.
type Event struct {
	ID          string                    `json:"id"`
	Source      string                    `json:"source"`
	Identity    detection.MeterIdentity   `json:"identity"`
	Result      detection.DetectionResult `json:"result"`
	Diagnostics detection.Diagnostics     `json:"diagnostics"`
	Recommended *preset.Preset            `json:"recommended,omitempty"`
	RSSI        *float64                  `json:"rssi,omitempty"` // dBm, as reported by the bridge
	Timestamp   time.Time                 `json:"timestamp"`
}

// decodeFrame parses a live message body.
func decodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}
	return f, nil
}

// payload returns the parsed payload, or nil when the frame carries none.
func (f Frame) payload() *detection.Payload {
	return detection.ParsePayload(f.Payload)
}
