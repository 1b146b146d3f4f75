//go:build integration

package mqtt

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// Integration tests against a running broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func TestIntegration_RetainedDetection(t *testing.T) {
	publisher := connectOrSkip(t, "meterdetect-int-pub")

	topic := Topics{}.Detection("int-meter")
	if err := publisher.PublishJSON(topic, map[string]string{"manufacturer": "aidon"}, true); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}
	t.Cleanup(func() { publisher.Publish(topic, nil, 1, true) })

	subscriber := connectOrSkip(t, "meterdetect-int-sub")
	got := make(chan string, 1)
	if err := subscriber.Subscribe(topic, 1, func(_ string, payload []byte) error {
		got <- string(payload)
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	select {
	case payload := <-got:
		if payload != `{"manufacturer":"aidon"}` {
			t.Errorf("retained payload = %s", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("retained detection not delivered")
	}
}

func TestIntegration_OnConnectCallback(t *testing.T) {
	client := connectOrSkip(t, "meterdetect-int-callback")

	var calls atomic.Int32
	client.SetOnConnect(func() { calls.Add(1) })
	client.SetOnDisconnect(func(error) {})

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
	// The callback fires on reconnects only once registered after Connect.
	if calls.Load() != 0 {
		t.Errorf("onConnect calls = %d before any reconnect", calls.Load())
	}
}

func TestIntegration_ManyMeters(t *testing.T) {
	client := connectOrSkip(t, "meterdetect-int-many")

	var count atomic.Int32
	done := make(chan struct{})
	const meters = 20
	if err := client.Subscribe(Topics{}.AllMeterLive(), 1, func(topic string, _ []byte) error {
		if _, ok := MeterIDFromLiveTopic(topic); ok && count.Add(1) == meters {
			close(done)
		}
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	for i := range meters {
		id := "int-" + string(rune('a'+i))
		if err := client.Publish(Topics{}.MeterLive(id), []byte(`{"mt":1}`), 1, false); err != nil {
			t.Fatalf("Publish(%s) error = %v", id, err)
		}
	}

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("received %d of %d frames", count.Load(), meters)
	}
}
