package emit

// Emitter receives execution events from the scheduler.
//
// Emitters enable pluggable observability backends: logs, in-memory buffers
// for tests and dashboards, OpenTelemetry spans. Implementations should be:
//   - Non-blocking: never stall the dispatch loop
//   - Thread-safe: Emit may be called from the control loop at any time
//   - Resilient: a failing backend must not crash the run
//
// The scheduler emits events in sequence order; an emitter that fans out to
// asynchronous backends should preserve Seq if downstream ordering matters.
type Emitter interface {
	// Emit delivers one event. Implementations must not panic; internal
	// errors should be swallowed or logged out of band.
	Emit(event Event)
}

// MultiEmitter fans events out to several emitters in order.
type MultiEmitter []Emitter

// Emit delivers the event to every wrapped emitter.
func (m MultiEmitter) Emit(event Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(event)
		}
	}
}
