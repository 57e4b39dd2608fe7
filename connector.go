// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

import (
	"context"
	"fmt"
)

// SenderRunner bridges one local input link to a [Fabric] publish subject,
// realizing half of a cross-runtime edge. It has exactly one
// input and no outputs.
type SenderRunner struct {
	runnerBase

	inputPort PortId
	subject   string

	ctx    *RuntimeContext
	config *Config
}

// NewSenderRunner constructs a [*SenderRunner] publishing on subject,
// typically built with [connectorSubject].
func NewSenderRunner(id NodeId, inputPort PortId, subject string, rc *RuntimeContext, config *Config, bundle *ioBundle) *SenderRunner {
	return &SenderRunner{
		runnerBase: newRunnerBase(id, KindConnector, bundle),
		inputPort:  inputPort,
		subject:    subject,
		ctx:        rc,
		config:     config,
	}
}

// AddInput binds receiver to this sender's single input port.
func (r *SenderRunner) AddInput(port PortId, receiver *LinkReceiver) error {
	return r.addInput(port, receiver)
}

// AddOutput always fails: sender connectors have no outputs.
func (r *SenderRunner) AddOutput(port PortId, sender *LinkSender) error {
	return fmt.Errorf("%w: node %q", ErrSenderDoNotHaveOutputs, r.id)
}

// Clean is a no-op: a sender connector owns no user component or state.
func (r *SenderRunner) Clean(ctx context.Context) error { return nil }

// Run is the sender connector iteration loop: receive an
// envelope, serialize it with the configured codec, and publish it on the
// fabric subject.
func (r *SenderRunner) Run(ctx context.Context) error {
	r.setRunning(true)
	defer r.setRunning(false)

	receivers := r.TakeInputLinks()
	recv, ok := receivers[r.inputPort]
	if !ok {
		return fmt.Errorf("connector %q: %w", r.id, ErrMissingInput)
	}
	if err := r.addInput(r.inputPort, recv); err != nil {
		return err
	}

	for r.IsRunning() {
		_, raw, err := recv.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("connector %q: %w", r.id, err)
		}

		msg, ok := raw.(*DataMessage)
		if !ok {
			return fmt.Errorf("connector %q: %w", r.id, ErrUnimplemented)
		}

		encoded, err := r.config.Codec.Marshal(msg)
		if err != nil {
			return fmt.Errorf("connector %q: %w", r.id, err)
		}

		if err := r.ctx.fabric.Publish(ctx, r.subject, encoded); err != nil {
			return fmt.Errorf("connector %q: %w", r.id, err)
		}
	}
	return nil
}

// ReceiverRunner bridges a [Fabric] subscription to a set of local output
// links, realizing the other half of a cross-runtime edge. It has
// exactly one output and no inputs.
type ReceiverRunner struct {
	runnerBase

	outputPort PortId
	subject    string

	ctx    *RuntimeContext
	config *Config
}

// NewReceiverRunner constructs a [*ReceiverRunner] subscribed to subject.
func NewReceiverRunner(id NodeId, outputPort PortId, subject string, rc *RuntimeContext, config *Config, bundle *ioBundle) *ReceiverRunner {
	return &ReceiverRunner{
		runnerBase: newRunnerBase(id, KindConnector, bundle),
		outputPort: outputPort,
		subject:    subject,
		ctx:        rc,
		config:     config,
	}
}

// AddInput always fails: receiver connectors have no inputs.
func (r *ReceiverRunner) AddInput(port PortId, receiver *LinkReceiver) error {
	return fmt.Errorf("%w: node %q", ErrReceiverDoNotHaveInputs, r.id)
}

// AddOutput fans sender into this receiver's single output port.
func (r *ReceiverRunner) AddOutput(port PortId, sender *LinkSender) error {
	r.addOutput(port, sender)
	return nil
}

// Clean is a no-op: a receiver connector owns no user component or state.
func (r *ReceiverRunner) Clean(ctx context.Context) error { return nil }

// Run is the receiver connector iteration loop: await the next
// fabric sample, deserialize it, and broadcast it on the output links. A
// sample that fails to deserialize to the expected type is logged and
// dropped rather than terminating the runner.
func (r *ReceiverRunner) Run(ctx context.Context) error {
	r.setRunning(true)
	defer r.setRunning(false)

	sub, err := r.ctx.fabric.Subscribe(ctx, r.subject)
	if err != nil {
		return fmt.Errorf("connector %q: %w", r.id, err)
	}
	watched, err := NewCancelWatchFunc().Call(ctx, sub)
	if err != nil {
		return fmt.Errorf("connector %q: %w", r.id, err)
	}
	defer watched.Close()

	for r.IsRunning() {
		raw, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("connector %q: %w", r.id, err)
		}

		var msg DataMessage
		if err := r.config.Codec.Unmarshal(raw, &msg); err != nil {
			r.config.Logger.Info("connector.recv.invalid", "node", string(r.id), "error", err.Error())
			continue
		}

		if err := r.broadcast(ctx, &msg); err != nil {
			return err
		}
	}
	return nil
}

// broadcast mirrors [SourceRunner.broadcast]'s partial-failure policy for
// this receiver's single output port.
func (r *ReceiverRunner) broadcast(ctx context.Context, msg *DataMessage) error {
	senders := r.OutputLinks()[r.outputPort]
	if len(senders) == 0 {
		return nil
	}
	disconnected := 0
	for _, sender := range senders {
		if err := sender.Send(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.config.Logger.Info("connector.send.failed",
				"node", string(r.id), "port", string(r.outputPort), "error", err.Error())
			disconnected++
		}
	}
	if disconnected == len(senders) {
		return fmt.Errorf("connector %q: %w", r.id, ErrDisconnected)
	}
	return nil
}

var (
	_ Runner = (*SenderRunner)(nil)
	_ Runner = (*ReceiverRunner)(nil)
)
