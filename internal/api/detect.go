package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/nerrad567/meterdetect/internal/detection"
	"github.com/nerrad567/meterdetect/internal/preset"
)

// DetectRequest is the body of POST /api/v1/detect.
//
// Payload is the raw live data object; anything that is not a JSON object
// is treated as "no live data".
type DetectRequest struct {
	MeterID    string                `json:"meterId"`
	MeterModel string                `json:"meterModel"`
	Comm       *detection.CommConfig `json:"comm,omitempty"`
	Payload    json.RawMessage       `json:"payload,omitempty"`
}

// DetectResponse is the result of a one-shot detection run.
type DetectResponse struct {
	ID          string                    `json:"id"`
	Result      detection.DetectionResult `json:"result"`
	Recommended *preset.Preset            `json:"recommended,omitempty"`
}

// RecommendRequest is the body of POST /api/v1/recommend.
type RecommendRequest struct {
	SuggestedPresets []string `json:"suggestedPresets"`
}

// DiagnosticsRequest is the body of POST /api/v1/diagnostics.
type DiagnosticsRequest struct {
	Comm    *detection.CommConfig `json:"comm,omitempty"`
	Payload json.RawMessage       `json:"payload,omitempty"`
}

// ValidateRequest is the body of POST /api/v1/validate.
// When Detected is omitted, the top preset for SuggestedPresets is used.
type ValidateRequest struct {
	Current          detection.CommConfig      `json:"current"`
	Detected         *detection.DetectedParams `json:"detected,omitempty"`
	SuggestedPresets []string                  `json:"suggestedPresets,omitempty"`
}

// ValidateResponse is the validation result plus whether the current
// configuration can open a serial port at all.
type ValidateResponse struct {
	detection.ValidationResult
	PortUsable bool   `json:"portUsable"`
	PortError  string `json:"portError,omitempty"`
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	id := detection.MeterIdentity{MeterID: req.MeterID, MeterModel: req.MeterModel}
	resp := DetectResponse{
		ID:     uuid.NewString(),
		Result: s.detector.Detect(id, req.Comm, detection.ParsePayload(req.Payload)),
	}
	if best, ok := s.detector.BestPreset(resp.Result.SuggestedPresets); ok {
		resp.Recommended = &best
	}

	s.logger.Debug("detection run",
		"id", resp.ID,
		"confidence", resp.Result.Confidence,
		"presets", len(resp.Result.SuggestedPresets),
	)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	best, ok := s.detector.BestPreset(req.SuggestedPresets)
	if !ok {
		writeNotFound(w, "no preset recommended")
		return
	}
	writeJSON(w, http.StatusOK, best)
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	var req DiagnosticsRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, detection.Diagnose(detection.ParsePayload(req.Payload), req.Comm))
}

// handleValidate compares the port configuration in use with what was
// detected. An unusable current configuration is reported alongside the
// mismatches, never refused.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	var detected detection.DetectedParams
	switch {
	case req.Detected != nil:
		detected = *req.Detected
	case len(req.SuggestedPresets) > 0:
		best, ok := s.detector.BestPreset(req.SuggestedPresets)
		if !ok {
			writeNotFound(w, "no preset recommended")
			return
		}
		detected = detection.DetectedFromConfig(detection.CommConfig{
			Baud:   best.Baud,
			Parity: best.Parity,
			Invert: best.Invert,
		})
	default:
		writeBadRequest(w, "detected or suggestedPresets is required")
		return
	}

	resp := ValidateResponse{
		ValidationResult: detection.ValidateConfiguration(req.Current, detected),
		PortUsable:       true,
	}
	if _, err := req.Current.SerialMode(); err != nil {
		resp.PortUsable = false
		resp.PortError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
