// Package config loads config.yaml for meterdetect.
//
// Every key is optional; omitted keys keep the value from Default.
// Durations use Go syntax ("500ms", "30s"). A fixed set of METERDETECT_*
// variables override the file, which is where the MQTT password and the
// InfluxDB token belong.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	m, err := monitor.New(detector, client, monitor.Options{Debounce: cfg.Detection.Debounce})
package config
