// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

import "errors"

// Sentinel errors covering the taxonomy a dataflow runtime can surface.
// Call sites wrap these with [fmt.Errorf] and "%w" to add context; callers
// dispatch with [errors.Is], never string matching.
var (
	// ErrSerialization means a payload could not be encoded for transport.
	ErrSerialization = errors.New("flowmesh: serialization error")
	// ErrDeserialization means a received buffer could not be decoded.
	ErrDeserialization = errors.New("flowmesh: deserialization error")
	// ErrMissingInput means a node declares an input with no bound link.
	ErrMissingInput = errors.New("flowmesh: missing input")
	// ErrMissingOutput means a node declares an output with no bound link.
	ErrMissingOutput = errors.New("flowmesh: missing output")
	// ErrNodeNotFound means a node id is not present in the instance.
	ErrNodeNotFound = errors.New("flowmesh: node not found")
	// ErrPortNotFound means a (node, port) pair does not exist.
	ErrPortNotFound = errors.New("flowmesh: port not found")
	// ErrPortNotConnected means a declared port has no link end bound.
	ErrPortNotConnected = errors.New("flowmesh: port not connected")
	// ErrDuplicatedNodeID means two nodes in a dataflow share an id.
	ErrDuplicatedNodeID = errors.New("flowmesh: duplicated node id")
	// ErrDuplicatedPort means an input port received a second link end.
	ErrDuplicatedPort = errors.New("flowmesh: duplicated port")
	// ErrDuplicatedLink means the same link descriptor appears twice.
	ErrDuplicatedLink = errors.New("flowmesh: duplicated link")
	// ErrPortTypeNotMatching means a link's two endpoints declare different types.
	ErrPortTypeNotMatching = errors.New("flowmesh: port type not matching")
	// ErrMultipleOutputsToInput means more than one link targets one input.
	ErrMultipleOutputsToInput = errors.New("flowmesh: multiple outputs to input")
	// ErrNoPathBetweenNodes means graph validation found no path connecting two nodes.
	ErrNoPathBetweenNodes = errors.New("flowmesh: no path between nodes")
	// ErrLoadingError means the dynamic component loader failed.
	ErrLoadingError = errors.New("flowmesh: loading error")
	// ErrRecvError means a link receive failed.
	ErrRecvError = errors.New("flowmesh: recv error")
	// ErrSendError means a link send failed.
	ErrSendError = errors.New("flowmesh: send error")
	// ErrDisconnected means the peer end of a link has been dropped.
	ErrDisconnected = errors.New("flowmesh: disconnected")
	// ErrEmpty means a non-blocking receive found no pending envelope.
	ErrEmpty = errors.New("flowmesh: empty")
	// ErrInvalidData means a message's payload failed a type check.
	ErrInvalidData = errors.New("flowmesh: invalid data")
	// ErrInvalidState means user state failed a type assertion.
	ErrInvalidState = errors.New("flowmesh: invalid state")
	// ErrMissingState means a node runner has no state where one was required.
	ErrMissingState = errors.New("flowmesh: missing state")
	// ErrMissingConfiguration means a required configuration value is absent.
	ErrMissingConfiguration = errors.New("flowmesh: missing configuration")
	// ErrUnimplemented marks a documented stub (e.g. Control message handling).
	ErrUnimplemented = errors.New("flowmesh: unimplemented")
	// ErrUnsupported means the operation is not supported by this runner kind.
	ErrUnsupported = errors.New("flowmesh: unsupported")
	// ErrNotRecording means stop-recording was called with no active recording.
	ErrNotRecording = errors.New("flowmesh: not recording")
	// ErrAlreadyRecording means start-recording was called while already recording.
	ErrAlreadyRecording = errors.New("flowmesh: already recording")
	// ErrInstanceNotFound means a referenced instance id is unknown.
	ErrInstanceNotFound = errors.New("flowmesh: instance not found")
	// ErrRPC wraps a failure from the RPC layer (external collaborator).
	ErrRPC = errors.New("flowmesh: rpc error")
	// ErrGeneric is a catch-all for conditions with no more specific sentinel.
	ErrGeneric = errors.New("flowmesh: generic error")
	// ErrIO wraps a failure from an underlying I/O operation.
	ErrIO = errors.New("flowmesh: io error")

	// ErrSourceDoNotHaveInputs means add_input was called on a source runner.
	ErrSourceDoNotHaveInputs = errors.New("flowmesh: source runners do not have inputs")
	// ErrSinkDoNotHaveOutputs means add_output was called on a sink runner.
	ErrSinkDoNotHaveOutputs = errors.New("flowmesh: sink runners do not have outputs")
	// ErrReceiverDoNotHaveInputs means add_input was called on a receiver connector.
	ErrReceiverDoNotHaveInputs = errors.New("flowmesh: receiver connectors do not have inputs")
	// ErrSenderDoNotHaveOutputs means add_output was called on a sender connector.
	ErrSenderDoNotHaveOutputs = errors.New("flowmesh: sender connectors do not have outputs")

	// ErrAlreadyStarted means a manager's runner was started more than once.
	ErrAlreadyStarted = errors.New("flowmesh: runner already started")
)
