package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/meterdetect/internal/detection"
	"github.com/nerrad567/meterdetect/internal/infrastructure/influxdb"
	"github.com/nerrad567/meterdetect/internal/infrastructure/mqtt"
)

// DefaultDebounce is used when Options.Debounce is zero or negative.
const DefaultDebounce = 500 * time.Millisecond

// Logger defines the logging interface used by the Monitor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Subscriber is the MQTT surface the monitor listens on.
// *mqtt.Client satisfies it.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Publisher republishes detection events. *mqtt.Client satisfies it.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// Recorder stores detection history. *influxdb.Client satisfies it.
type Recorder interface {
	WriteDetection(rec influxdb.DetectionRecord)
	WriteDiagnostics(rec influxdb.DiagnosticsRecord)
}

// Options configures a Monitor.
type Options struct {
	// Debounce is the quiet period after the last frame from a source
	// before detection runs.
	Debounce time.Duration

	// QoS for the live subscription.
	QoS byte

	// Publisher, when set, receives every event on meterdetect/detection/{source}.
	Publisher Publisher

	// Recorder, when set, receives every event as InfluxDB points.
	Recorder Recorder

	Logger Logger
}

// Monitor re-runs detection as live frames arrive over MQTT.
//
// Frames are debounced per source and per watch: a burst of frames from
// one meter produces a single detection run using the newest frame.
//
// Monitor implements detection.Watcher. All methods are safe for concurrent use.
type Monitor struct {
	detector *detection.Detector
	sub      Subscriber
	pub      Publisher
	rec      Recorder
	debounce time.Duration
	qos      byte
	topic    string
	logger   Logger

	mu      sync.Mutex
	watches map[*watch]struct{}
	started bool
	stopped bool

	stopOnce sync.Once

	received atomic.Uint64
	rejected atomic.Uint64
	runs     atomic.Uint64
}

// Stats are monitor counters since New.
type Stats struct {
	FramesReceived uint64 `json:"frames_received"`
	FramesRejected uint64 `json:"frames_rejected"`
	Runs           uint64 `json:"detection_runs"`
	Watches        int    `json:"watches"`
}

var _ detection.Watcher = (*Monitor)(nil)

// New creates a monitor. Call Start to subscribe to live frames.
func New(detector *detection.Detector, sub Subscriber, opts Options) (*Monitor, error) {
	if detector == nil || sub == nil {
		return nil, ErrMissingDependency
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Monitor{
		detector: detector,
		sub:      sub,
		pub:      opts.Publisher,
		rec:      opts.Recorder,
		debounce: debounce,
		qos:      opts.QoS,
		topic:    mqtt.Topics{}.AllMeterLive(),
		logger:   logger,
		watches:  make(map[*watch]struct{}),
	}, nil
}

// Start subscribes to live frames from every meter. When a Publisher or
// Recorder is configured, an internal watch forwards every event to them.
func (m *Monitor) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	switch {
	case m.stopped:
		m.mu.Unlock()
		return ErrStopped
	case m.started:
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	// A failed start leaves nothing registered so that Start can be retried.
	var stopForward detection.StopFunc
	if m.pub != nil || m.rec != nil {
		var err error
		if stopForward, err = m.WatchEvents(m.forward); err != nil {
			m.resetStarted()
			return err
		}
	}

	if err := m.sub.Subscribe(m.topic, m.qos, m.handleMessage); err != nil {
		if stopForward != nil {
			stopForward()
		}
		m.resetStarted()
		return fmt.Errorf("subscribe to live frames: %w", err)
	}

	m.logger.Info("detection monitor started", "topic", m.topic, "debounce", m.debounce)
	return nil
}

func (m *Monitor) resetStarted() {
	m.mu.Lock()
	m.started = false
	m.mu.Unlock()
}

// Stop unsubscribes and cancels every watch. It is safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.stopped = true
		started := m.started
		watches := make([]*watch, 0, len(m.watches))
		for w := range m.watches {
			watches = append(watches, w)
		}
		m.watches = make(map[*watch]struct{})
		m.mu.Unlock()

		for _, w := range watches {
			w.stop()
		}

		if started {
			if err := m.sub.Unsubscribe(m.topic); err != nil {
				m.logger.Warn("unsubscribe from live frames failed", "error", err)
			}
		}
		m.logger.Info("detection monitor stopped")
	})
}

// Watch delivers the detection result of every debounced frame to handler.
func (m *Monitor) Watch(handler detection.ResultHandler) (detection.StopFunc, error) {
	return m.WatchEvents(func(ev Event) { handler(ev.Result) })
}

// WatchEvents is Watch with the full event, including source and diagnostics.
func (m *Monitor) WatchEvents(handler func(Event)) (detection.StopFunc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil, ErrStopped
	}

	w := &watch{
		monitor: m,
		handler: handler,
		pending: make(map[string]*pendingRun),
	}
	m.watches[w] = struct{}{}

	return func() {
		m.mu.Lock()
		delete(m.watches, w)
		m.mu.Unlock()
		w.stop()
	}, nil
}

// handleMessage is the MQTT handler for meterdetect/meter/+/live.
func (m *Monitor) handleMessage(topic string, payload []byte) error {
	m.received.Add(1)

	source, ok := mqtt.MeterIDFromLiveTopic(topic)
	if !ok {
		m.rejected.Add(1)
		return fmt.Errorf("%w: unexpected topic %s", ErrInvalidFrame, topic)
	}

	frame, err := decodeFrame(payload)
	if err != nil {
		m.rejected.Add(1)
		return err
	}

	m.mu.Lock()
	watches := make([]*watch, 0, len(m.watches))
	for w := range m.watches {
		watches = append(watches, w)
	}
	m.mu.Unlock()

	for _, w := range watches {
		w.offer(source, frame)
	}
	return nil
}

// Evaluate runs detection and diagnostics for one frame.
func (m *Monitor) Evaluate(source string, frame Frame) Event {
	m.runs.Add(1)
	p := frame.payload()
	identity := detection.MeterIdentity{MeterID: frame.MeterID, MeterModel: frame.MeterModel}

	ev := Event{
		ID:          uuid.NewString(),
		Source:      source,
		Identity:    identity,
		Result:      m.detector.Detect(identity, frame.Comm, p),
		Diagnostics: detection.Diagnose(p, frame.Comm),
		Timestamp:   time.Now().UTC(),
	}
	if best, ok := m.detector.BestPreset(ev.Result.SuggestedPresets); ok {
		ev.Recommended = &best
	}
	if p != nil {
		ev.RSSI = p.R
	}
	return ev
}

// Stats returns a snapshot of the monitor counters.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	watches := len(m.watches)
	m.mu.Unlock()

	return Stats{
		FramesReceived: m.received.Load(),
		FramesRejected: m.rejected.Load(),
		Runs:           m.runs.Load(),
		Watches:        watches,
	}
}

// forward publishes and records an event.
func (m *Monitor) forward(ev Event) {
	if m.pub != nil {
		if err := m.pub.PublishJSON(mqtt.Topics{}.Detection(ev.Source), ev, true); err != nil {
			m.logger.Warn("publish detection failed", "source", ev.Source, "error", err)
		}
	}
	if m.rec != nil {
		m.rec.WriteDetection(detectionRecord(ev))
		m.rec.WriteDiagnostics(diagnosticsRecord(ev))
	}
}

func detectionRecord(ev Event) influxdb.DetectionRecord {
	rec := influxdb.DetectionRecord{
		MeterID:     ev.Source,
		Confidence:  ev.Result.Confidence,
		PresetCount: len(ev.Result.SuggestedPresets),
		Timestamp:   ev.Timestamp,
	}
	if ev.Result.DetectedManufacturer != nil {
		rec.Manufacturer = *ev.Result.DetectedManufacturer
	}
	if ev.Result.DetectedModel != nil {
		rec.Model = *ev.Result.DetectedModel
	}
	if len(ev.Result.SuggestedPresets) > 0 {
		rec.TopPreset = ev.Result.SuggestedPresets[0]
	}
	return rec
}

func diagnosticsRecord(ev Event) influxdb.DiagnosticsRecord {
	return influxdb.DiagnosticsRecord{
		MeterID:             ev.Source,
		ConnectionStatus:    string(ev.Diagnostics.ConnectionStatus),
		DataQuality:         string(ev.Diagnostics.DataQuality),
		PhaseConfiguration:  string(ev.Diagnostics.PhaseConfiguration),
		CommunicationHealth: string(ev.Diagnostics.CommunicationHealth),
		Recommendations:     len(ev.Diagnostics.Recommendations),
		RSSI:                ev.RSSI,
		Timestamp:           ev.Timestamp,
	}
}
