// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

import (
	"context"
	"fmt"
)

// Sink is the user-defined terminal consumer hosted by a [SinkRunner].
type Sink interface {
	Run(ctx context.Context, state any, msg *DataMessage) error
}

// SinkFunc adapts a plain function to [Sink].
type SinkFunc func(ctx context.Context, state any, msg *DataMessage) error

func (f SinkFunc) Run(ctx context.Context, state any, msg *DataMessage) error { return f(ctx, state, msg) }

// SinkRunner hosts a [Sink]: one input port, one receiver, user state.
// Sinks have no outputs and do not record.
//
// loaded is kept last, mirroring [SourceRunner]'s teardown convention.
type SinkRunner struct {
	runnerBase

	inputPort PortId

	ctx    *RuntimeContext
	config *Config

	state  any
	sink   Sink
	loaded LoadedComponent
}

// NewSinkRunner constructs a [*SinkRunner].
func NewSinkRunner(id NodeId, inputPort PortId, rc *RuntimeContext, config *Config,
	sink Sink, state any, loaded LoadedComponent, bundle *ioBundle) *SinkRunner {
	return &SinkRunner{
		runnerBase: newRunnerBase(id, KindSink, bundle),
		inputPort:  inputPort,
		ctx:        rc,
		config:     config,
		state:      state,
		sink:       sink,
		loaded:     loaded,
	}
}

// AddInput binds receiver to this sink's single input port.
func (r *SinkRunner) AddInput(port PortId, receiver *LinkReceiver) error {
	return r.addInput(port, receiver)
}

// AddOutput always fails: sinks have no outputs.
func (r *SinkRunner) AddOutput(port PortId, sender *LinkSender) error {
	return fmt.Errorf("%w: node %q", ErrSinkDoNotHaveOutputs, r.id)
}

// Clean runs user finalization, then drops the loaded component before its
// hosting library.
func (r *SinkRunner) Clean(ctx context.Context) error {
	r.state = nil
	if r.loaded != nil {
		return r.loaded.Close()
	}
	return nil
}

// Run is the sink iteration loop: receive one envelope, fail on
// Control, tick the HLC, check the input's E2E deadline record, and call
// the user [Sink].
func (r *SinkRunner) Run(ctx context.Context) error {
	r.setRunning(true)
	defer r.setRunning(false)

	receivers := r.TakeInputLinks()
	recv, ok := receivers[r.inputPort]
	if !ok {
		return fmt.Errorf("sink %q: %w", r.id, ErrMissingInput)
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
			return fmt.Errorf("sink %q: %w", r.id, err)
		}

		msg, ok := raw.(*DataMessage)
		if !ok {
			return fmt.Errorf("sink %q: %w", r.id, ErrUnimplemented)
		}

		if err := r.ctx.hlc.UpdateWithTimestamp(msg.Timestamp); err != nil {
			r.config.Logger.Info("sink.hlc.drift", "node", string(r.id), "error", err.Error())
		}
		now := r.ctx.hlc.NewTimestamp()

		var kept []E2EDeadlineRecord
		for _, rec := range msg.EndToEndDeadlines {
			if miss, hit := rec.check(r.id, r.inputPort, msg.Timestamp, now); hit {
				msg.MissedEndToEndDeadlines = append(msg.MissedEndToEndDeadlines, miss)
				continue
			}
			kept = append(kept, rec)
		}
		msg.EndToEndDeadlines = kept

		if err := r.sink.Run(ctx, r.state, msg); err != nil {
			return fmt.Errorf("sink %q: %w", r.id, err)
		}
	}
	return nil
}

var _ Runner = (*SinkRunner)(nil)
