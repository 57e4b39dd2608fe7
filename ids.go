// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NodeId identifies a node (source, operator, sink, or connector) within a
// single [Dataflow]. Opaque interned string.
type NodeId string

// PortId identifies a port declared by a node. Opaque interned string.
type PortId string

// PortType identifies the declared type of a port. Two link endpoints
// connect only if their PortType values are identical. Opaque interned string.
type PortType string

// FlowId identifies a graph template. Opaque interned string.
type FlowId string

// InstanceId identifies one running instantiation of a [Dataflow].
type InstanceId string

// RuntimeId names a daemon hosting zero or more instances.
type RuntimeId string

// NewInstanceId returns a new random [InstanceId] (UUIDv4).
//
// This function panics if the system random number generator fails, which
// should only happen under extraordinary circumstances, the same
// "must-succeed" pattern [NewSpanID] applies.
func NewInstanceId() InstanceId {
	return InstanceId(runtimex.PanicOnError1(uuid.NewRandom()).String())
}

// NewRuntimeId returns a new random [RuntimeId] (UUIDv4).
func NewRuntimeId() RuntimeId {
	return RuntimeId(runtimex.PanicOnError1(uuid.NewRandom()).String())
}

// Port is a declared (id, type) pair on a node.
type Port struct {
	Id   PortId
	Type PortType
}

// NodeOutputRef identifies one output port of one node, the "from" side of
// an [E2EDeadlineRecord] and of a [LinkDescriptor].
type NodeOutputRef struct {
	Node   NodeId
	Output PortId
}

// NodeInputRef identifies one input port of one node, the "to" side of an
// [E2EDeadlineRecord] and of a [LinkDescriptor].
type NodeInputRef struct {
	Node  NodeId
	Input PortId
}
