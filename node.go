// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

import (
	"context"
	"fmt"
	"sync"
)

// Kind identifies a node runner's variant.
type Kind string

const (
	KindSource    Kind = "source"
	KindOperator  Kind = "operator"
	KindSink      Kind = "sink"
	KindConnector Kind = "connector"
	KindReplay    Kind = "replay"
)

// Runner is the common contract every node kind implements: source,
// operator, sink, connector-sender, connector-receiver, and replay. Created
// idle; [Runner.Run] flips the running flag, iterates until cancelled or a
// fatal error, then calls [Runner.Clean]. [Runner.Stop] flips the flag back
// off; the iteration loop observes it cooperatively between iterations
// — it does not interrupt a call already in flight.
type Runner interface {
	// ID returns this node's identifier, unique within its [DataflowInstance].
	ID() NodeId
	// Kind reports which runner variant this is; sender and receiver
	// connectors both report [KindConnector].
	Kind() Kind

	// Inputs lists the currently-bound input port ids.
	Inputs() []PortId
	// Outputs lists the currently-bound output port ids.
	Outputs() []PortId

	// AddInput binds receiver to an input port. Fails with
	// [ErrSourceDoNotHaveInputs] on a source or [ErrReceiverDoNotHaveInputs]
	// on a receiver connector, and with [ErrDuplicatedPort] if the port
	// already has a bound receiver.
	AddInput(port PortId, receiver *LinkReceiver) error
	// AddOutput fans sender into an output port. Fails with
	// [ErrSinkDoNotHaveOutputs] on a sink or [ErrSenderDoNotHaveOutputs] on
	// a sender connector.
	AddOutput(port PortId, sender *LinkSender) error

	// TakeInputLinks removes and returns every currently-bound input
	// receiver, clearing this runner's input wiring. Used by tests and by
	// rewiring that repoints a node's inputs.
	TakeInputLinks() map[PortId]*LinkReceiver
	// OutputLinks returns a snapshot of the output senders currently fanned
	// out per port, without removing them. Used by the runners' broadcast
	// paths; replay takeover removes a source's senders with takeOutputLinks
	// instead.
	OutputLinks() map[PortId][]*LinkSender

	// IsRunning reports whether [Runner.Run] is currently executing.
	IsRunning() bool
	// Stop requests cooperative cancellation; observed between iterations.
	Stop()
	// Clean runs user finalization after the iteration loop exits, whether
	// by cancellation or by fatal error.
	Clean(ctx context.Context) error

	// StartRecording opens a fresh recording resource under name, returning
	// an error on kinds that cannot record ([ErrUnsupported]): sinks and
	// connectors. name's format is the manager's responsibility.
	StartRecording(name string) error
	// StopRecording closes the active recording resource and returns its
	// name, failing with [ErrNotRecording] if none is active.
	StopRecording() (string, error)
	// IsRecording reports whether a recording resource is currently open.
	IsRecording() bool

	// Run is the long-lived iteration loop. It returns only on fatal error
	// or cancellation via ctx/[Runner.Stop].
	Run(ctx context.Context) error
}

// runnerBase holds the state and wiring common to every [Runner]
// implementation, guarded by a single mutex: a runner's mutable state is
// only touched from within its own iteration, or through this mutex for the
// handful of cross-task operations — add/take links, start/stop, recording —
// that the manager and replay takeover need.
type runnerBase struct {
	id   NodeId
	kind Kind

	mu         sync.Mutex
	ports      *portBundle
	running    bool
	recording  bool
	recordName string
}

func newRunnerBase(id NodeId, kind Kind, bundle *ioBundle) runnerBase {
	return runnerBase{
		id:    id,
		kind:  kind,
		ports: newPortBundle(bundle),
	}
}

func (b *runnerBase) ID() NodeId { return b.id }
func (b *runnerBase) Kind() Kind { return b.kind }

func (b *runnerBase) Inputs() []PortId {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ports.inputPorts()
}

func (b *runnerBase) Outputs() []PortId {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ports.outputPorts()
}

func (b *runnerBase) addInput(port PortId, receiver *LinkReceiver) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ports.addInputLink(port, receiver)
}

func (b *runnerBase) addOutput(port PortId, sender *LinkSender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ports.addOutputLink(port, sender)
}

func (b *runnerBase) TakeInputLinks() map[PortId]*LinkReceiver {
	b.mu.Lock()
	defer b.mu.Unlock()
	taken := b.ports.inputs
	b.ports.inputs = make(map[PortId]*LinkReceiver)
	return taken
}

func (b *runnerBase) OutputLinks() map[PortId][]*LinkSender {
	b.mu.Lock()
	defer b.mu.Unlock()
	snapshot := make(map[PortId][]*LinkSender, len(b.ports.outputs))
	for port, senders := range b.ports.outputs {
		snapshot[port] = append([]*LinkSender(nil), senders...)
	}
	return snapshot
}

func (b *runnerBase) takeOutputLinks(port PortId) []*LinkSender {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ports.takeOutputLinks(port)
}

func (b *runnerBase) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *runnerBase) setRunning(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = v
}

func (b *runnerBase) Stop() {
	b.setRunning(false)
}

// StartRecording is the default implementation, refused by kinds that
// cannot record. Source and operator runners override it.
func (b *runnerBase) StartRecording(name string) error {
	return fmt.Errorf("%w: %s runners do not support recording", ErrUnsupported, b.kind)
}

func (b *runnerBase) StopRecording() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.recording {
		return "", ErrNotRecording
	}
	b.recording = false
	name := b.recordName
	b.recordName = ""
	return name, nil
}

func (b *runnerBase) IsRecording() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recording
}

// beginRecording is the shared bookkeeping used by [SourceRunner] and
// [OperatorRunner]'s StartRecording overrides.
func (b *runnerBase) beginRecording(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.recording {
		return fmt.Errorf("%w: node %q", ErrAlreadyRecording, b.id)
	}
	b.recording = true
	b.recordName = name
	return nil
}

func (b *runnerBase) activeRecordingName() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recordName, b.recording
}
