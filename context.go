// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

import "context"

// Recorder publishes a serialized envelope to a named recording resource,
// and reads one back for replay. The core treats
// recording storage as opaque; a concrete implementation lives behind the
// fabric (see fabric.go).
type Recorder interface {
	Record(ctx context.Context, name string, msg Message) error
	// Open returns a [RecordedStream] iterating the envelopes previously
	// recorded under name, oldest first.
	Open(ctx context.Context, name string) (RecordedStream, error)
}

// RecordedStream iterates a recorded envelope stream for [ReplayRunner].
type RecordedStream interface {
	// Next returns the next recorded envelope (carrying its original
	// [Timestamp]), or [ErrEmpty] once the stream is exhausted.
	Next(ctx context.Context) (*DataMessage, error)
	Close() error
}

// RuntimeContext is the state shared by every runner hosted by one
// [RuntimeId] ("the runtime sub-context owns the HLC, the fabric
// session, the loader, and the runtime's own id/name"). Immutable after
// construction except for the HLC's own internal mutex; reference-counted
// only in the sense that every runner of every instance on this runtime
// holds the same pointer.
type RuntimeContext struct {
	runtime  RuntimeId
	hlc      *HLC
	fabric   Fabric
	loader   Loader
	recorder Recorder
}

// NewRuntimeContext constructs the shared per-runtime state. fabric,
// loader, and recorder may be nil in tests that exercise runners without a
// live fabric connection.
func NewRuntimeContext(runtime RuntimeId, hlc *HLC, fabric Fabric, loader Loader, recorder Recorder) *RuntimeContext {
	return &RuntimeContext{
		runtime:  runtime,
		hlc:      hlc,
		fabric:   fabric,
		loader:   loader,
		recorder: recorder,
	}
}

// InstanceContext is shared by every runner of one [DataflowInstance]:
// the flow and instance ids plus the owning runtime's shared state.
// Immutable after creation.
type InstanceContext struct {
	flow     FlowId
	instance InstanceId
	runtime  *RuntimeContext
}

func NewInstanceContext(flow FlowId, instance InstanceId, runtime *RuntimeContext) *InstanceContext {
	return &InstanceContext{flow: flow, instance: instance, runtime: runtime}
}
