// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

import "fmt"

// ioBundle is the per-node wiring staged by [Instantiate] before a runner is
// constructed: output senders fan out (an output port may be bound to
// several links), input receivers do not (an input port is bound to exactly
// one link, fan-in requiring an explicit merge operator upstream).
//
// Built once while links are created, then consumed by the matching runner
// constructor and discarded; no instance-level code mutates a runner's
// wiring afterwards except through the runner's own mutex-guarded methods:
// takeOutputLinks and [ReplayRunner.AddOutput] during replay takeover, and
// the AddInput/AddOutput methods in tests.
type ioBundle struct {
	outputs map[PortId][]*LinkSender
	inputs  map[PortId]*LinkReceiver
}

func newIOBundle() *ioBundle {
	return &ioBundle{
		outputs: make(map[PortId][]*LinkSender),
		inputs:  make(map[PortId]*LinkReceiver),
	}
}

// addOutput fans a sender in under the given output port.
func (b *ioBundle) addOutput(port PortId, sender *LinkSender) {
	b.outputs[port] = append(b.outputs[port], sender)
}

// addInput binds a receiver to the given input port, failing with
// [ErrDuplicatedPort] if one is already bound: an input port is bound to
// exactly one link.
func (b *ioBundle) addInput(port PortId, receiver *LinkReceiver) error {
	if _, exists := b.inputs[port]; exists {
		return fmt.Errorf("%w: input port %q already bound", ErrDuplicatedPort, port)
	}
	b.inputs[port] = receiver
	return nil
}

// portBundle is the live wiring held by a started runner: the output
// senders it broadcasts on per port, and the input receivers it reads from
// per port. Mutations after construction only happen through
// [portBundle.addOutputLink]/[portBundle.addInputLink], guarded by the
// owning runner's mutex.
type portBundle struct {
	outputs map[PortId][]*LinkSender
	inputs  map[PortId]*LinkReceiver
}

func newPortBundle(b *ioBundle) *portBundle {
	pb := &portBundle{
		outputs: make(map[PortId][]*LinkSender),
		inputs:  make(map[PortId]*LinkReceiver),
	}
	if b != nil {
		for port, senders := range b.outputs {
			pb.outputs[port] = append([]*LinkSender(nil), senders...)
		}
		for port, recv := range b.inputs {
			pb.inputs[port] = recv
		}
	}
	return pb
}

// addOutputLink fans an additional sender in under port, used by replay
// takeover to move a stopped source's output links onto a [ReplayRunner].
func (pb *portBundle) addOutputLink(port PortId, sender *LinkSender) {
	pb.outputs[port] = append(pb.outputs[port], sender)
}

// addInputLink binds a receiver to port, failing with [ErrDuplicatedPort] if
// one is already bound.
func (pb *portBundle) addInputLink(port PortId, receiver *LinkReceiver) error {
	if _, exists := pb.inputs[port]; exists {
		return fmt.Errorf("%w: input port %q already bound", ErrDuplicatedPort, port)
	}
	pb.inputs[port] = receiver
	return nil
}

// takeOutputLinks removes and returns every sender bound to port, clearing
// the binding. Used by replay takeover ("it takes over the output links of
// the named source": the source must already be stopped.
func (pb *portBundle) takeOutputLinks(port PortId) []*LinkSender {
	senders := pb.outputs[port]
	delete(pb.outputs, port)
	return senders
}

// outputPorts returns the declared output port ids, in no particular order.
func (pb *portBundle) outputPorts() []PortId {
	ports := make([]PortId, 0, len(pb.outputs))
	for port := range pb.outputs {
		ports = append(ports, port)
	}
	return ports
}

// inputPorts returns the declared input port ids, in no particular order.
func (pb *portBundle) inputPorts() []PortId {
	ports := make([]PortId, 0, len(pb.inputs))
	for port := range pb.inputs {
		ports = append(ports, port)
	}
	return ports
}
