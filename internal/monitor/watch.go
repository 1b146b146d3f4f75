package monitor

import (
	"sync"
	"time"
)

// watch is one registered handler with its own per-source debounce timers.
type watch struct {
	monitor *Monitor
	handler func(Event)

	mu      sync.Mutex
	pending map[string]*pendingRun
	stopped bool
	once    sync.Once
}

type pendingRun struct {
	timer *time.Timer
	frame Frame
}

// offer schedules a detection run for source, replacing any pending frame.
func (w *watch) offer(source string, frame Frame) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}

	if run, ok := w.pending[source]; ok {
		run.frame = frame
		run.timer.Reset(w.monitor.debounce)
		return
	}

	run := &pendingRun{frame: frame}
	run.timer = time.AfterFunc(w.monitor.debounce, func() { w.fire(source, run) })
	w.pending[source] = run
}

func (w *watch) fire(source string, run *pendingRun) {
	w.mu.Lock()
	if w.stopped || w.pending[source] != run {
		w.mu.Unlock()
		return
	}
	delete(w.pending, source)
	frame := run.frame
	w.mu.Unlock()

	w.handler(w.monitor.Evaluate(source, frame))
}

// stop cancels pending timers. Runs already in progress complete.
func (w *watch) stop() {
	w.once.Do(func() {
		w.mu.Lock()
		defer w.mu.Unlock()

		w.stopped = true
		for source, run := range w.pending {
			run.timer.Stop()
			delete(w.pending, source)
		}
	})
}
