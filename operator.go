// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

import (
	"context"
	"fmt"
	"time"
)

// NodeOutput is the tagged routing decision an [Operator]'s output rule
// returns for one output port.
type NodeOutput interface{ isNodeOutput() }

// DataOutput routes a value to a [DataMessage] on the matching output port.
type DataOutput struct{ Value any }

func (DataOutput) isNodeOutput() {}

// ControlOutput is the reserved control routing decision. [OperatorRunner]
// logs it and drops it; nothing is sent downstream for it.
type ControlOutput struct {
	Kind    string
	Payload Payload
}

func (ControlOutput) isNodeOutput() {}

// NoOutput means this firing produces nothing on the given port.
type NoOutput struct{}

func (NoOutput) isNodeOutput() {}

// InputToken is one consumed input envelope, tagged by the port it arrived
// on.
type InputToken struct {
	Port    PortId
	Message *DataMessage
}

// InputRule decides, given the operator's state and the currently pending
// tokens per input port, whether to fire this round and which tokens to
// consume. The default rule ([WaitForAllInputs]) waits
// until every input has a pending envelope. A custom rule may accept a
// partial set by returning true with a subset of ports populated; unlisted
// ports are left pending for a future round.
//
// The rule is synchronous and pure over (state, pending) — it must not
// block or perform I/O.
type InputRule func(state any, pending map[PortId]*DataMessage) (ready bool, consume map[PortId]*DataMessage)

// WaitForAllInputs is the default [InputRule]: fire only once every
// declared input port has a pending envelope, consuming all of them.
func WaitForAllInputs(ports []PortId) InputRule {
	return func(state any, pending map[PortId]*DataMessage) (bool, map[PortId]*DataMessage) {
		for _, port := range ports {
			if _, ok := pending[port]; !ok {
				return false, nil
			}
		}
		consume := make(map[PortId]*DataMessage, len(ports))
		for _, port := range ports {
			consume[port] = pending[port]
		}
		return true, consume
	}
}

// Operator is the user-defined synchronous compute hosted by an
// [OperatorRunner]. Run must not suspend; all I/O is handled by
// the surrounding iteration. OutputRule maps the values Run produced to a
// routing decision per output port, taking the observed [LocalDeadlineMiss]
// (nil if none) into account.
type Operator interface {
	Run(ctx context.Context, state any, inputs map[PortId]*DataMessage) (map[PortId]any, error)
	OutputRule(ctx context.Context, state any, outputs map[PortId]any, miss *LocalDeadlineMiss) map[PortId]NodeOutput
}

// OperatorRunner hosts an [Operator]: input receivers, output fan-out
// senders, the input rule, an optional local compute-time budget, and
// per-output recording state.
type OperatorRunner struct {
	runnerBase

	inputPorts  []PortId
	outputPorts []PortId
	deadlines   map[PortId][]E2EDeadlineRecord // declared deadlines starting at this node, keyed by output port
	rule        InputRule
	localBudget time.Duration // zero means no local deadline tracked

	pending map[PortId]*DataMessage

	ctx    *RuntimeContext
	config *Config

	state    any
	operator Operator
	loaded   LoadedComponent
}

// NewOperatorRunner constructs a [*OperatorRunner]. If rule is nil,
// [WaitForAllInputs] is used.
func NewOperatorRunner(id NodeId, inputPorts, outputPorts []PortId, rc *RuntimeContext, config *Config,
	operator Operator, state any, deadlines map[PortId][]E2EDeadlineRecord, rule InputRule,
	localBudget time.Duration, loaded LoadedComponent, bundle *ioBundle) *OperatorRunner {
	if rule == nil {
		rule = WaitForAllInputs(inputPorts)
	}
	return &OperatorRunner{
		runnerBase:  newRunnerBase(id, KindOperator, bundle),
		inputPorts:  append([]PortId(nil), inputPorts...),
		outputPorts: append([]PortId(nil), outputPorts...),
		deadlines:   deadlines,
		rule:        rule,
		localBudget: localBudget,
		pending:     make(map[PortId]*DataMessage),
		ctx:         rc,
		config:      config,
		state:       state,
		operator:    operator,
		loaded:      loaded,
	}
}

// AddInput binds receiver to one of this operator's declared input ports.
func (r *OperatorRunner) AddInput(port PortId, receiver *LinkReceiver) error {
	return r.addInput(port, receiver)
}

// AddOutput fans sender into one of this operator's declared output ports.
func (r *OperatorRunner) AddOutput(port PortId, sender *LinkSender) error {
	r.addOutput(port, sender)
	return nil
}

// StartRecording opens a recording resource shared across this operator's
// output ports. Per-port recording granularity is left to the
// resource name the manager generates.
func (r *OperatorRunner) StartRecording(name string) error {
	return r.beginRecording(name)
}

// Clean runs user finalization, then drops the loaded component before its
// hosting library.
func (r *OperatorRunner) Clean(ctx context.Context) error {
	r.state = nil
	if r.loaded != nil {
		return r.loaded.Close()
	}
	return nil
}

// Run is the operator iteration loop: pull envelopes from every
// bound input receiver into a pending set, consult the input rule, tick the
// HLC and check E2E deadlines on consumed tokens, call the synchronous
// compute, measure the local deadline, consult the output rule, and
// broadcast the resulting [DataMessage]s.
func (r *OperatorRunner) Run(ctx context.Context) error {
	r.setRunning(true)
	defer r.setRunning(false)

	receivers := r.TakeInputLinks()
	for port, recv := range receivers {
		if err := r.addInput(port, recv); err != nil {
			return err
		}
	}

	for r.IsRunning() {
		consumed, err := r.fill(ctx, receivers)
		if err != nil {
			return err
		}

		tokens := make(map[PortId]*DataMessage, len(consumed))
		for port, msg := range consumed {
			if err := r.ctx.hlc.UpdateWithTimestamp(msg.Timestamp); err != nil {
				r.config.Logger.Info("operator.hlc.drift", "node", string(r.id), "error", err.Error())
			}
			now := r.ctx.hlc.NewTimestamp()
			r.checkDeadlines(msg, port, now)
			tokens[port] = msg
		}

		started := r.config.TimeNow()
		outputs, err := r.operator.Run(ctx, r.state, tokens)
		if err != nil {
			return fmt.Errorf("operator %q: %w", r.id, err)
		}
		elapsed := r.config.TimeNow().Sub(started)

		var miss *LocalDeadlineMiss
		if r.localBudget > 0 && elapsed >= r.localBudget {
			miss = &LocalDeadlineMiss{Elapsed: elapsed}
		}

		routing := r.operator.OutputRule(ctx, r.state, outputs, miss)
		if err := r.route(ctx, tokens, routing); err != nil {
			return err
		}
	}
	return nil
}

// fill receives from every input port with no pending token, then consults
// the input rule, looping until it fires or ctx is cancelled.
func (r *OperatorRunner) fill(ctx context.Context, receivers map[PortId]*LinkReceiver) (map[PortId]*DataMessage, error) {
	for {
		for _, port := range r.inputPorts {
			if _, ok := r.pending[port]; ok {
				continue
			}
			recv, ok := receivers[port]
			if !ok {
				continue
			}
			_, msg, err := recv.TryRecv()
			if err == nil {
				data, ok := msg.(*DataMessage)
				if !ok {
					return nil, fmt.Errorf("operator %q: %w", r.id, ErrUnimplemented)
				}
				r.pending[port] = data
			}
		}

		if ready, consume := r.rule(r.state, r.pending); ready {
			for port := range consume {
				delete(r.pending, port)
			}
			return consume, nil
		}

		if err := r.awaitAny(ctx, receivers); err != nil {
			return nil, err
		}
	}
}

// awaitResult carries one receiver goroutine's outcome back to awaitAny,
// tagged with the port it came from.
type awaitResult struct {
	port PortId
	msg  Message
	err  error
}

// awaitAny blocks on whichever still-empty input port's receiver yields
// first, so the loop in fill does not busy-spin between rounds.
func (r *OperatorRunner) awaitAny(ctx context.Context, receivers map[PortId]*LinkReceiver) error {
	done := make(chan awaitResult, len(receivers))
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pending := 0
	for _, port := range r.inputPorts {
		if _, ok := r.pending[port]; ok {
			continue
		}
		recv, ok := receivers[port]
		if !ok {
			continue
		}
		pending++
		go func(port PortId, recv *LinkReceiver) {
			_, msg, err := recv.Recv(waitCtx)
			done <- awaitResult{port: port, msg: msg, err: err}
		}(port, recv)
	}
	if pending == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	res := <-done
	cancel()
	err := r.stageAwaitResult(ctx, res)

	// Other ports may have popped concurrently with the one that woke this
	// call; every receiver goroutine is collected before returning and any
	// envelope it popped is staged instead of discarded. An error from one
	// of them (usually waitCtx's cancellation) is skipped: a persistent link
	// error is reported again by the next round's Recv.
	for i := 1; i < pending; i++ {
		other := <-done
		if other.err != nil {
			continue
		}
		if stageErr := r.stageAwaitResult(ctx, other); stageErr != nil && err == nil {
			err = stageErr
		}
	}
	return err
}

// stageAwaitResult validates one awaitAny outcome and, if it carries real
// data, stores it in r.pending under its originating port.
func (r *OperatorRunner) stageAwaitResult(ctx context.Context, res awaitResult) error {
	if res.err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("operator %q: %w", r.id, res.err)
	}
	data, ok := res.msg.(*DataMessage)
	if !ok {
		return fmt.Errorf("operator %q: %w", r.id, ErrUnimplemented)
	}
	r.pending[res.port] = data
	return nil
}

// checkDeadlines removes every carried E2E deadline record whose "to"
// matches (node, port): such a record has reached its destination and is
// satisfied whether or not it missed, so it is not carried further
// downstream. A miss is appended to msg for any such record observed at or
// after its deadline elapsed.
func (r *OperatorRunner) checkDeadlines(msg *DataMessage, port PortId, now Timestamp) {
	var kept []E2EDeadlineRecord
	for _, rec := range msg.EndToEndDeadlines {
		if rec.To.Node != r.id || rec.To.Input != port {
			kept = append(kept, rec)
			continue
		}
		if miss, hit := rec.check(r.id, port, msg.Timestamp, now); hit {
			msg.MissedEndToEndDeadlines = append(msg.MissedEndToEndDeadlines, miss)
		}
	}
	msg.EndToEndDeadlines = kept
}

// route builds and broadcasts the [DataMessage] for each output port whose
// routing decision is a [DataOutput]: its
// end_to_end_deadlines is the inherited, not-yet-satisfied records from
// every consumed token plus this node's own declared deadlines starting at
// that port; its missed_end_to_end_deadlines carries forward every miss
// observed on the consumed tokens.
func (r *OperatorRunner) route(ctx context.Context, tokens map[PortId]*DataMessage, routing map[PortId]NodeOutput) error {
	var inheritedDeadlines []E2EDeadlineRecord
	var inheritedMisses []E2EDeadlineMiss
	for _, msg := range tokens {
		inheritedDeadlines = append(inheritedDeadlines, msg.EndToEndDeadlines...)
		inheritedMisses = append(inheritedMisses, msg.MissedEndToEndDeadlines...)
	}

	for port, decision := range routing {
		switch out := decision.(type) {
		case NoOutput:
			continue
		case ControlOutput:
			r.config.Logger.Info("operator.control.unimplemented", "node", string(r.id), "port", string(port))
			continue
		case DataOutput:
			deadlines := append([]E2EDeadlineRecord(nil), inheritedDeadlines...)
			deadlines = append(deadlines, r.deadlines[port]...)
			msg := &DataMessage{
				Payload:                 NewValuePayload(out.Value),
				Timestamp:               r.ctx.hlc.NewTimestamp(),
				EndToEndDeadlines:       deadlines,
				MissedEndToEndDeadlines: append([]E2EDeadlineMiss(nil), inheritedMisses...),
			}
			if name, recording := r.activeRecordingName(); recording && r.ctx.recorder != nil {
				if err := r.ctx.recorder.Record(ctx, name, msg); err != nil {
					r.config.Logger.Info("operator.record.failed", "node", string(r.id), "error", err.Error())
				}
			}
			if err := r.broadcast(ctx, port, msg); err != nil {
				return err
			}
		}
	}
	return nil
}

// broadcast mirrors [SourceRunner.broadcast]'s partial-failure policy for
// one output port's fan-out senders.
func (r *OperatorRunner) broadcast(ctx context.Context, port PortId, msg *DataMessage) error {
	senders := r.OutputLinks()[port]
	if len(senders) == 0 {
		return nil
	}
	disconnected := 0
	for _, sender := range senders {
		if err := sender.Send(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.config.Logger.Info("operator.send.failed",
				"node", string(r.id), "port", string(port), "error", err.Error())
			disconnected++
		}
	}
	if disconnected == len(senders) {
		return fmt.Errorf("operator %q: %w", r.id, ErrDisconnected)
	}
	return nil
}

var _ Runner = (*OperatorRunner)(nil)
