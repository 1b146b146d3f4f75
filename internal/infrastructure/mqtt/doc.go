// Package mqtt provides MQTT client connectivity for the meter detection service.
//
// This package manages:
//   - Connection to the broker with auto-reconnect and backoff
//   - Publishing detection results as JSON
//   - Wildcard subscriptions to live meter frames, restored on reconnect
//   - Last Will and Testament (LWT) on meterdetect/system/status
//
// # Architecture
//
// HAN bridges read the meter port and publish decoded frames; the service
// listens, detects the meter and publishes its recommendation.
//
//	HAN bridge → meterdetect/meter/{id}/live → meterdetect → meterdetect/detection/{id}
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllMeterLive(), 1,
//	    func(topic string, payload []byte) error {
//	        id, _ := mqtt.MeterIDFromLiveTopic(topic)
//	        log.Printf("frame from %s: %s", id, payload)
//	        return nil
//	    })
//
//	client.PublishJSON(mqtt.Topics{}.Detection("han-1"), result, true)
package mqtt
