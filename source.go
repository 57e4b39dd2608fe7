// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

import (
	"context"
	"fmt"
	"time"
)

// Source is the user-defined computation hosted by a [SourceRunner]. Run
// produces one value per firing; state is the mutable user state owned
// exclusively by this source's iteration.
type Source interface {
	Run(ctx context.Context, state any) (any, error)
}

// SourceFunc adapts a plain function to [Source].
type SourceFunc func(ctx context.Context, state any) (any, error)

func (f SourceFunc) Run(ctx context.Context, state any) (any, error) { return f(ctx, state) }

// SourceRunner hosts a [Source]: an output port's worth of fan-out senders,
// the user component and its state, the E2E deadline records it declares at
// its single output, and an optional periodic trigger.
//
// On teardown, loaded is kept as the last field: user state and
// component must be released before the dynamic library they came from, and
// while Go does not enforce struct-field drop order the way the original
// implementation's field-declaration order did, [SourceRunner.Clean]
// sequences the same release order explicitly.
type SourceRunner struct {
	runnerBase

	outputPort PortId
	deadlines  []E2EDeadlineRecord
	period     time.Duration // zero means unperiodic

	ctx    *RuntimeContext
	config *Config

	state  any
	source Source
	loaded LoadedComponent
}

// NewSourceRunner constructs a [*SourceRunner]. bundle supplies the output
// senders staged for this node by [Instantiate]; period of zero means the
// source fires as fast as Run returns.
func NewSourceRunner(id NodeId, outputPort PortId, rc *RuntimeContext, config *Config,
	source Source, state any, deadlines []E2EDeadlineRecord, period time.Duration,
	loaded LoadedComponent, bundle *ioBundle) *SourceRunner {
	return &SourceRunner{
		runnerBase: newRunnerBase(id, KindSource, bundle),
		outputPort: outputPort,
		deadlines:  append([]E2EDeadlineRecord(nil), deadlines...),
		period:     period,
		ctx:        rc,
		config:     config,
		state:      state,
		source:     source,
		loaded:     loaded,
	}
}

// OutputPort returns this source's single declared output port, used by
// [DataflowInstance.StartReplay] to transplant its links onto a
// [ReplayRunner] once the source is stopped.
func (r *SourceRunner) OutputPort() PortId { return r.outputPort }

// AddInput always fails: sources have no inputs.
func (r *SourceRunner) AddInput(port PortId, receiver *LinkReceiver) error {
	return fmt.Errorf("%w: node %q", ErrSourceDoNotHaveInputs, r.id)
}

// AddOutput fans sender into this source's single output port.
func (r *SourceRunner) AddOutput(port PortId, sender *LinkSender) error {
	r.addOutput(port, sender)
	return nil
}

// StartRecording opens a recording resource for this source's output stream.
func (r *SourceRunner) StartRecording(name string) error {
	return r.beginRecording(name)
}

// Clean runs user finalization, then drops the loaded component before its
// hosting library.
func (r *SourceRunner) Clean(ctx context.Context) error {
	r.state = nil
	if r.loaded != nil {
		return r.loaded.Close()
	}
	return nil
}

// Run is the source iteration loop: wait for the next trigger,
// produce a value, stamp it, record it if recording is active, and
// broadcast it on every output sender. It returns when every output sender
// is disconnected, when ctx is cancelled, or on a fatal error from the user
// [Source].
func (r *SourceRunner) Run(ctx context.Context) error {
	r.setRunning(true)
	defer r.setRunning(false)

	var nextTick time.Time
	if r.period > 0 {
		nextTick = r.config.TimeNow()
	}

	for r.IsRunning() {
		if r.period > 0 {
			if d := time.Until(nextTick); d > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(d):
				}
			}
			nextTick = nextTick.Add(r.period)
		}

		value, err := r.source.Run(ctx, r.state)
		if err != nil {
			return fmt.Errorf("source %q: %w", r.id, err)
		}

		msg := &DataMessage{
			Payload:                 NewValuePayload(value),
			Timestamp:               r.ctx.hlc.NewTimestamp(),
			EndToEndDeadlines:       append([]E2EDeadlineRecord(nil), r.deadlines...),
			MissedEndToEndDeadlines: nil,
		}

		if name, recording := r.activeRecordingName(); recording {
			r.recordEnvelope(ctx, name, msg)
		}

		if err := r.broadcast(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// broadcast sends msg on every sender fanned out from this source's output
// port. A failed send on one sender is logged but not fatal unless every
// sender has lost its receiver, per the partial-failure-send policy.
func (r *SourceRunner) broadcast(ctx context.Context, msg *DataMessage) error {
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
			r.config.Logger.Info("source.send.failed",
				"node", string(r.id), "port", string(r.outputPort), "error", err.Error())
			disconnected++
			continue
		}
	}
	if disconnected == len(senders) {
		return fmt.Errorf("source %q: %w", r.id, ErrDisconnected)
	}
	return nil
}

// recordEnvelope publishes a serialized copy of msg to the recording
// resource named name. The fabric/codec-backed recording
// sink is an external collaborator; this hook exists so
// [DataflowInstance] can wire one in without the source needing to know
// about the fabric.
func (r *SourceRunner) recordEnvelope(ctx context.Context, name string, msg *DataMessage) {
	if r.ctx.recorder == nil {
		return
	}
	if err := r.ctx.recorder.Record(ctx, name, msg); err != nil {
		r.config.Logger.Info("source.record.failed",
			"node", string(r.id), "resource", name, "error", err.Error())
	}
}

var _ Runner = (*SourceRunner)(nil)
