// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

// NodeTemplateKind distinguishes the graph-template role a [NodeRecord]
// plays, which in turn determines which runner constructor
// [Instantiate] uses for it. Connectors are split into sender/receiver at
// the template level since each needs different wiring.
type NodeTemplateKind string

const (
	NodeTemplateSource            NodeTemplateKind = "source"
	NodeTemplateOperator          NodeTemplateKind = "operator"
	NodeTemplateSink              NodeTemplateKind = "sink"
	NodeTemplateSenderConnector   NodeTemplateKind = "sender"
	NodeTemplateReceiverConnector NodeTemplateKind = "receiver"
)

// NodeRecord is a graph template's declaration of one node: its
// id, role, declared ports, placement runtime, and the pieces a
// [RunnerFactory] needs to build the concrete user component. The factory
// callback, not this record, owns constructing [Source]/[Operator]/[Sink]
// values — the record only carries the wiring-relevant declarations the
// core itself must act on (deadlines, periodic trigger, local budget,
// input rule, library path).
type NodeRecord struct {
	ID      NodeId
	Kind    NodeTemplateKind
	Runtime RuntimeId

	InputPorts  []PortId
	OutputPorts []PortId

	// Deadlines declares, per output port, the E2E deadline records a
	// source or operator originates there.
	Deadlines map[PortId][]E2EDeadlineRecord
	// Period is a source's optional periodic trigger interval; zero means
	// unperiodic.
	Period int64 // nanoseconds; kept as an integer so Dataflow records marshal losslessly through a [Codec]
	// InputRule is an operator's input rule; nil means [WaitForAllInputs].
	InputRule InputRule
	// LocalDeadline is an operator's optional local compute-time budget in
	// nanoseconds; zero means untracked.
	LocalDeadline int64
	// LibraryPath names the shared library/plugin a [Loader] loads this
	// node's user component from; empty means the component is supplied
	// in-process by a [RunnerFactory] without dynamic loading.
	LibraryPath string
	// Subject is the fabric pub/sub subject a sender/receiver connector
	// publishes to or subscribes on; typically built with
	// [connectorSubject].
	Subject string
}

// LinkDescriptor is a graph template's declaration of one edge:
// ((from_node, from_output) -> (to_node, to_input)) and an optional capacity
// (nil means unbounded). It carries no queueing policy or priority fields.
type LinkDescriptor struct {
	From     NodeOutputRef
	To       NodeInputRef
	Capacity *int
}

// Dataflow is a graph template: the full node and link set of a flow,
// already filtered by the validator to those nodes placed on the runtime
// that will call [Instantiate] (cross-runtime edges are realized by
// connector node pairs, themselves ordinary local nodes on each side).
type Dataflow struct {
	Flow  FlowId
	Nodes []NodeRecord
	Links []LinkDescriptor
}
