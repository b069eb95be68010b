package emit

import "context"

// NullEmitter implements Emitter by discarding all events. Useful as the
// default Emitter for runs that don't need observability overhead.
type NullEmitter struct{}

// NewNullEmitter returns a NullEmitter. Safe for concurrent use.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

func (n *NullEmitter) Emit(event Event) {}

func (n *NullEmitter) EmitBatch(_ context.Context, _ []Event) error { return nil }

func (n *NullEmitter) Flush(_ context.Context) error { return nil }
