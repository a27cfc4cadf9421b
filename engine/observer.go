package engine

// InvokeObservation captures one completed invocation outcome.
type InvokeObservation struct {
	Tool       string
	Strategy   string
	Attempts   int
	DurationMS int64
	Success    bool
	ErrorKind  string
}

// RetryObservation captures one retried attempt.
type RetryObservation struct {
	Tool      string
	Strategy  string
	Attempt   int
	ErrorKind string
}

// Observer receives engine-level observability events. Implementations must
// be safe for concurrent use; the engine calls them inline from both
// invocation strategies.
type Observer interface {
	ObserveInvoke(observation InvokeObservation)
	ObserveRetry(observation RetryObservation)
}

type noopObserver struct{}

func (noopObserver) ObserveInvoke(InvokeObservation) {}
func (noopObserver) ObserveRetry(RetryObservation)   {}
