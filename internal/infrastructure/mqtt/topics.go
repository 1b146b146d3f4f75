package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the meter detection service.
//
// Live readings arrive on meterdetect/meter/{meter_id}/live and detection
// results leave on meterdetect/detection/{meter_id}.
const (
	// TopicPrefix is the root of every topic the service uses.
	TopicPrefix = "meterdetect"

	// TopicPrefixMeter is the base for per-meter inbound topics.
	TopicPrefixMeter = TopicPrefix + "/meter"

	// TopicPrefixDetection is the base for published detection results.
	TopicPrefixDetection = TopicPrefix + "/detection"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = TopicPrefix + "/system"
)

// Topics provides builders for meterdetect MQTT topics.
//
//	topics := mqtt.Topics{}
//	live := topics.MeterLive("han-1")
//	// Returns: "meterdetect/meter/han-1/live"
type Topics struct{}

// MeterLive returns the topic a bridge publishes live frames for one meter on.
//
// Example: meterdetect/meter/han-1/live
func (Topics) MeterLive(meterID string) string {
	return fmt.Sprintf("%s/%s/live", TopicPrefixMeter, meterID)
}

// AllMeterLive returns a pattern matching live frames from every meter.
//
// Pattern: meterdetect/meter/+/live
func (Topics) AllMeterLive() string {
	return TopicPrefixMeter + "/+/live"
}

// Detection returns the topic detection results for a meter are published on.
//
// Example: meterdetect/detection/han-1
func (Topics) Detection(meterID string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixDetection, meterID)
}

// AllDetections returns a pattern matching every detection result.
//
// Pattern: meterdetect/detection/+
func (Topics) AllDetections() string {
	return TopicPrefixDetection + "/+"
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: meterdetect/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// MeterIDFromLiveTopic extracts the meter id from a live topic.
// It reports false for anything not shaped like MeterLive's output.
func MeterIDFromLiveTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, TopicPrefixMeter+"/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/live")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
