// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

import (
	"context"
	"fmt"
	"sync"
)

// NewLink creates a connected [*LinkSender]/[*LinkReceiver] pair: a typed,
// bounded, one-producer/one-consumer FIFO. capacity nil means
// unbounded; a non-nil capacity bounds the queue, and [LinkSender.Send]
// suspends while it is full.
//
// output is the upstream node's output [PortId], tagging the producing end;
// input is the downstream node's input [PortId], returned by
// [LinkReceiver.Recv] so an [OperatorRunner] with several inputs can tell
// them apart.
func NewLink(capacity *int, output, input PortId) (*LinkSender, *LinkReceiver) {
	l := &linkState{
		output:      output,
		input:       input,
		changed:     make(chan struct{}),
		senderCount: 1,
	}
	if capacity != nil {
		l.capacity = *capacity
		l.bounded = true
	}
	sender := &LinkSender{state: l}
	receiver := &LinkReceiver{state: l}
	return sender, receiver
}

type linkEnvelope struct {
	msg Message
}

// linkState is the shared FIFO behind a [LinkSender]/[LinkReceiver] pair.
// Ordering is strict FIFO for this (sender, receiver) pair only; no
// ordering is guaranteed across distinct links.
//
// Waiters block on the changed channel rather than a [sync.Cond], so a wait
// can be interrupted by context cancellation without losing a concurrent
// wakeup: every state mutation closes the current changed channel (waking
// anyone already selecting on it) and installs a fresh one under the same
// lock, so a waiter that captures changed while holding the lock is
// guaranteed to observe any mutation that follows.
type linkState struct {
	mu      sync.Mutex
	changed chan struct{}

	queue    []linkEnvelope
	bounded  bool
	capacity int

	senderCount  int
	senderClosed bool
	recvClosed   bool

	output PortId
	input  PortId
}

// notify wakes every current waiter and arms a fresh channel for the next
// generation of waiters. Must be called with l.mu held.
func (l *linkState) notify() {
	close(l.changed)
	l.changed = make(chan struct{})
}

// LinkSender is the producer end of a link. Cloneable via
// [LinkSender.Clone]: every clone enqueues onto the same queue. Fanning one
// output out to several links uses one sender per link, not clones.
type LinkSender struct {
	state *linkState
}

// SendError is returned by [LinkSender.Send] when the receiver end has been
// dropped.
type SendError struct {
	Port PortId
}

func (e *SendError) Error() string {
	return fmt.Sprintf("flowmesh: send on port %q: %v", e.Port, ErrDisconnected)
}

func (e *SendError) Unwrap() error { return ErrSendError }

// Clone returns a new [*LinkSender] referring to the same underlying queue,
// incrementing the sender refcount so the receiver end is only woken with
// [*RecvError] once every clone has been closed.
func (s *LinkSender) Clone() *LinkSender {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	s.state.senderCount++
	return &LinkSender{state: s.state}
}

// Send suspends until there is room in the link, then enqueues msg. It
// fails with a [*SendError] iff the receiver end has been dropped.
func (s *LinkSender) Send(ctx context.Context, msg Message) error {
	st := s.state
	for {
		st.mu.Lock()
		if st.recvClosed {
			st.mu.Unlock()
			return &SendError{Port: st.output}
		}
		if !st.bounded || len(st.queue) < st.capacity {
			st.queue = append(st.queue, linkEnvelope{msg: msg})
			st.notify()
			st.mu.Unlock()
			return nil
		}
		ch := st.changed
		st.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close drops this sender. Once every clone of the original sender has been
// closed, a blocked [LinkReceiver.Recv] is woken with [*RecvError].
func (s *LinkSender) Close() {
	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()
	st.senderCount--
	if st.senderCount <= 0 {
		st.senderClosed = true
		st.notify()
	}
}

// LinkReceiver is the single-consumer end of a link. Not cloneable
//: fan-in requires an explicit merge operator upstream of a fresh
// link, never two receivers on one queue.
type LinkReceiver struct {
	state *linkState
}

// RecvError is returned by [LinkReceiver.Recv] when every sender has closed.
type RecvError struct {
	Port PortId
}

func (e *RecvError) Error() string {
	return fmt.Sprintf("flowmesh: recv on port %q: %v", e.Port, ErrDisconnected)
}

func (e *RecvError) Unwrap() []error { return []error{ErrRecvError, ErrDisconnected} }

// InputPort returns the downstream input [PortId] this receiver is bound to.
func (r *LinkReceiver) InputPort() PortId {
	return r.state.input
}

// Recv suspends until an envelope is available, then returns it tagged with
// this receiver's declared input [PortId]. Fails with [*RecvError] iff every
// sender has been dropped and the queue is empty.
func (r *LinkReceiver) Recv(ctx context.Context) (PortId, Message, error) {
	st := r.state
	for {
		st.mu.Lock()
		if len(st.queue) > 0 {
			env := st.queue[0]
			st.queue = st.queue[1:]
			st.notify()
			st.mu.Unlock()
			return st.input, env.msg, nil
		}
		if st.senderClosed {
			st.mu.Unlock()
			return st.input, nil, &RecvError{Port: st.input}
		}
		ch := st.changed
		st.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return st.input, nil, ctx.Err()
		}
	}
}

// TryRecv is the non-blocking variant of [LinkReceiver.Recv]: it returns
// immediately, distinguishing an empty-but-connected queue ([ErrEmpty]) from
// a dropped sender ([*RecvError] wrapping [ErrDisconnected]).
func (r *LinkReceiver) TryRecv() (PortId, Message, error) {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()

	if len(st.queue) > 0 {
		env := st.queue[0]
		st.queue = st.queue[1:]
		st.notify()
		return st.input, env.msg, nil
	}
	if st.senderClosed {
		return st.input, nil, &RecvError{Port: st.input}
	}
	return st.input, nil, fmt.Errorf("%w", ErrEmpty)
}

// Close drops the receiver end, waking any blocked [LinkSender.Send] with a
// [*SendError].
func (r *LinkReceiver) Close() {
	st := r.state
	st.mu.Lock()
	defer st.mu.Unlock()
	st.recvClosed = true
	st.notify()
}
