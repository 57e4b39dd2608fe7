// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

// Payload carries a message's value. It is either a typed in-process value
// (shared by reference between runners in the same process) or an opaque
// byte buffer produced by a [Codec] for cross-runtime transport. Once
// placed in a [DataMessage] and sent on a link, a Payload's value must not
// be mutated by any receiver (invariant: payloads are immutable once in a
// link).
type Payload struct {
	// Value holds the in-process typed value, or nil if Bytes is set.
	Value any
	// Bytes holds an opaque wire-format buffer, or nil if Value is set.
	Bytes []byte
}

// NewValuePayload wraps an in-process typed value.
func NewValuePayload(v any) Payload {
	return Payload{Value: v}
}

// NewBytesPayload wraps an opaque byte buffer.
func NewBytesPayload(b []byte) Payload {
	return Payload{Bytes: b}
}

// IsBytes reports whether this payload carries an opaque byte buffer rather
// than a typed in-process value.
func (p Payload) IsBytes() bool {
	return p.Bytes != nil
}

// Message is the tagged union carried by every link: either [DataMessage]
// or [ControlMessage]. Implemented by both message kinds; callers
// type-switch to recover the concrete kind. A node that receives a
// [ControlMessage] where it expects data fails with [ErrUnimplemented].
type Message interface {
	isMessage()
}

// DataMessage is a data-bearing envelope: a payload, the [Timestamp] at
// which it was produced, the [E2EDeadlineRecord]s it carries, and any
// [E2EDeadlineMiss]es observed so far.
type DataMessage struct {
	Payload                 Payload
	Timestamp               Timestamp
	EndToEndDeadlines       []E2EDeadlineRecord
	MissedEndToEndDeadlines []E2EDeadlineMiss
}

func (*DataMessage) isMessage() {}

// Clone returns a shallow copy of m with independently-extensible deadline
// slices, so that an operator forwarding m downstream may append without
// mutating the message still visible to other interleaved readers (Link
// payloads are conceptually immutable once sent; a runner that needs to
// extend the deadline trail must work on a clone). Payload.Value itself is
// still shared by reference; Clone only gives the deadline slices their own
// backing arrays.
func (m *DataMessage) Clone() *DataMessage {
	out := &DataMessage{
		Payload:   m.Payload,
		Timestamp: m.Timestamp,
	}
	out.EndToEndDeadlines = append(out.EndToEndDeadlines, m.EndToEndDeadlines...)
	out.MissedEndToEndDeadlines = append(out.MissedEndToEndDeadlines, m.MissedEndToEndDeadlines...)
	return out
}

// ControlMessage is the reserved control-plane variant. No runner in this
// package emits one, and every runner that receives one on a link fails
// with [ErrUnimplemented]. The variant is kept in the envelope as a structured
// placeholder for future control-plane signaling (checkpoint barriers,
// watermark advances) rather than removed.
type ControlMessage struct {
	Kind    string
	Payload Payload
}

func (*ControlMessage) isMessage() {}
