// Package influxdb records meter detection history to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health checks.
//
// Two measurements are written:
//   - meter_detection: confidence, top preset and preset count per meter
//   - meter_diagnostics: connection, data quality, phase and signal health
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteDetection(influxdb.DetectionRecord{MeterID: "han-1", Confidence: 120})
//
// Write errors are delivered asynchronously through SetOnError.
package influxdb
