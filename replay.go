// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ReplayNodeID returns the synthetic id a [ReplayRunner] is registered
// under: "replay-<flow>-<instance>-<source>-<output>".
func ReplayNodeID(flow FlowId, instance InstanceId, source NodeId, output PortId) NodeId {
	return NodeId(fmt.Sprintf("replay-%s-%s-%s-%s", flow, instance, source, output))
}

// ReplayRunner takes over the output links of a stopped [SourceRunner] and
// re-emits a previously recorded envelope stream on them, honoring each
// envelope's original inter-arrival gap recomputed from recorded timestamps.
// It terminates normally once the stream is exhausted.
type ReplayRunner struct {
	runnerBase

	outputPort PortId
	resource   string

	ctx    *RuntimeContext
	config *Config
}

// NewReplayRunner constructs a [*ReplayRunner] reading resource, taking
// ownership of senders fanned out from source's outputPort (transplanted by
// the caller via [ReplayRunner.AddOutput] after calling takeOutputLinks on
// the stopped source).
func NewReplayRunner(id NodeId, outputPort PortId, resource string, rc *RuntimeContext, config *Config) *ReplayRunner {
	return &ReplayRunner{
		runnerBase: newRunnerBase(id, KindReplay, nil),
		outputPort: outputPort,
		resource:   resource,
		ctx:        rc,
		config:     config,
	}
}

// AddInput always fails: a replay runner has no inputs, mirroring the
// source it stands in for.
func (r *ReplayRunner) AddInput(port PortId, receiver *LinkReceiver) error {
	return fmt.Errorf("%w: node %q", ErrSourceDoNotHaveInputs, r.id)
}

// AddOutput fans sender into the replay runner's single output port. Used
// by [DataflowInstance.StartReplay] to transplant the stopped source's
// senders.
func (r *ReplayRunner) AddOutput(port PortId, sender *LinkSender) error {
	r.addOutput(port, sender)
	return nil
}

// Clean is a no-op: a replay runner owns no user component or state.
func (r *ReplayRunner) Clean(ctx context.Context) error { return nil }

// Run is the replay iteration loop: read the recorded stream in
// order, sleeping between envelopes to reproduce the original inter-arrival
// gaps, and broadcast each envelope on the transplanted output links.
func (r *ReplayRunner) Run(ctx context.Context) error {
	r.setRunning(true)
	defer r.setRunning(false)

	if r.ctx.recorder == nil {
		return fmt.Errorf("replay %q: %w", r.id, ErrMissingConfiguration)
	}
	stream, err := r.ctx.recorder.Open(ctx, r.resource)
	if err != nil {
		return fmt.Errorf("replay %q: %w", r.id, err)
	}
	defer stream.Close()

	var lastRecorded time.Time
	var haveLast bool

	for r.IsRunning() {
		msg, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrEmpty) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("replay %q: %w", r.id, err)
		}

		if haveLast {
			gap := msg.Timestamp.Physical.Sub(lastRecorded)
			if gap > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(gap):
				}
			}
		}
		lastRecorded = msg.Timestamp.Physical
		haveLast = true

		if err := r.broadcast(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// broadcast mirrors [SourceRunner.broadcast]'s partial-failure policy for
// this replay runner's single output port.
func (r *ReplayRunner) broadcast(ctx context.Context, msg *DataMessage) error {
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
			r.config.Logger.Info("replay.send.failed",
				"node", string(r.id), "port", string(r.outputPort), "error", err.Error())
			disconnected++
		}
	}
	if disconnected == len(senders) {
		return fmt.Errorf("replay %q: %w", r.id, ErrDisconnected)
	}
	return nil
}

var _ Runner = (*ReplayRunner)(nil)
