package emit

// NullEmitter implements Emitter by discarding all events.
//
// Use when event emission is not wanted without changing call sites:
//
//	scheduler, _ := dde.NewScheduler(graph, tasks, dde.WithEmitter(emit.NewNullEmitter()))
type NullEmitter struct{}

// NewNullEmitter creates an emitter that drops every event. Safe for
// concurrent use, zero overhead.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event.
func (n *NullEmitter) Emit(Event) {}
