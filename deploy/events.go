package deploy

// Kind classifies an event.
type Kind string

const (
	// KindInfo marks forward progress within a step.
	KindInfo Kind = "info"

	// KindSuccess marks a completed step.
	KindSuccess Kind = "success"

	// KindError marks a failed deployment. An error event, when present,
	// is always the terminal event of a deployment attempt.
	KindError Kind = "error"
)

// NoProgress is the Progress value of events that carry no percentage.
const NoProgress = -1

// Event is the sole observable output of an in-progress deployment. Events
// form an ordered, append-only sequence consumed by the caller's sink.
type Event struct {
	// Step names the protocol step the event belongs to.
	Step string

	// Details carries optional human-readable context.
	Details string

	// Kind classifies the event.
	Kind Kind

	// Progress is a completion percentage in [0,100], or NoProgress.
	Progress int
}

// Sink receives deployment events. Sinks are invoked synchronously on the
// deploying goroutine, so event order exactly matches phase order.
type Sink func(Event)

// Emit sends an event to the sink, tolerating a nil sink.
func (s Sink) Emit(e Event) {
	if s != nil {
		s(e)
	}
}

// Info emits an informational event.
func (s Sink) Info(step, details string) {
	s.Emit(Event{Step: step, Details: details, Kind: KindInfo, Progress: NoProgress})
}

// Success emits a step-completed event.
func (s Sink) Success(step, details string) {
	s.Emit(Event{Step: step, Details: details, Kind: KindSuccess, Progress: NoProgress})
}

// Progress emits an informational event carrying a completion percentage.
func (s Sink) Progress(step, details string, percent int) {
	s.Emit(Event{Step: step, Details: details, Kind: KindInfo, Progress: percent})
}

// Fail emits the terminal error event for a failed deployment and returns
// err unchanged, so call sites can `return "", sink.Fail(step, err)`.
func (s Sink) Fail(step string, err error) error {
	s.Emit(Event{Step: step, Details: err.Error(), Kind: KindError, Progress: NoProgress})
	return err
}
