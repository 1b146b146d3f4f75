// Package monitor re-runs meter detection as live HAN frames arrive.
//
// HAN bridges publish frames on meterdetect/meter/{source}/live:
//
//	{"meter_id":"735912345","meter_model":"","comm":{"baud":2400,"parity":"8E1"},"payload":{"mt":1}}
//
// Frames are debounced per source. After the quiet period the newest frame
// is evaluated into an Event holding the detection result, diagnostics and
// recommended preset. Events go to every watcher and, when configured, are
// republished on meterdetect/detection/{source} and recorded to InfluxDB.
//
//	m, _ := monitor.New(detector, mqttClient, monitor.Options{Publisher: mqttClient})
//	m.Start(ctx)
//	defer m.Stop()
//
//	stop, _ := m.Watch(func(r detection.DetectionResult) { ... })
//	defer stop()
package monitor
