// Package api implements the HTTP REST API and WebSocket feed for the meter
// detection service.
//
// This package provides:
//   - Read access to the preset catalog, filterable by manufacturer
//   - One-shot detection, recommendation, diagnostics and validation
//   - WebSocket hub broadcasting live detection results
//   - Health and metrics endpoints for the connected components
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Architecture
//
// HAN bridges publish live frames over MQTT. The monitor runs detection on
// them and the server relays each result to WebSocket clients subscribed to
// the detection.result channel. One-shot endpoints run the same detector
// directly against the request body.
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// # Graceful Degradation
//
// The server operates without MQTT. One-shot endpoints keep working and the
// WebSocket feed simply stays quiet.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
