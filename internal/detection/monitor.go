package detection

// ResultHandler receives a detection result each time new meter evidence
// has been evaluated.
type ResultHandler func(DetectionResult)

// StopFunc cancels a watch. It stops further handler invocations and
// releases any pending timer. Calling it more than once, or before the
// handler has ever run, is safe.
type StopFunc func()

// Watcher is implemented by live data sources that re-run detection as
// meter evidence arrives.
type Watcher interface {
	Watch(handler ResultHandler) (StopFunc, error)
}
