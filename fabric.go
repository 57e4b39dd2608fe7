// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

import "context"

// Fabric is the pub/sub + key/value backend used for cross-runtime
// control-plane state and connector data transport. The core only
// needs put/get/delete/subscribe; all values are opaque bytes already
// encoded by a [Codec] and tagged application/octet-stream.
type Fabric interface {
	// Put stores value under key, overwriting any previous value.
	Put(ctx context.Context, key string, value []byte) error
	// Get retrieves the value stored under key, failing with
	// [ErrMissingState] if it is unset.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes the value stored under key. Deleting an unset key is
	// not an error.
	Delete(ctx context.Context, key string) error
	// Subscribe delivers every value published to subject (not necessarily
	// a key written via Put/Get — connector data transport uses a core
	// pub/sub subject, not the KV store) until ctx is cancelled or the
	// returned [FabricSubscription] is closed.
	Subscribe(ctx context.Context, subject string) (FabricSubscription, error)
	// Publish sends value to every current subscriber of subject.
	Publish(ctx context.Context, subject string, value []byte) error
}

// FabricSubscription delivers successive published values for one
// [Fabric.Subscribe] call.
type FabricSubscription interface {
	// Next blocks until the next value arrives, ctx is cancelled, or the
	// subscription is closed.
	Next(ctx context.Context) ([]byte, error)
	// Close releases the subscription.
	Close() error
}

// Fabric key space, rooted under a deployment-chosen prefix:
//
//	…/runtimes/<rtid>/info            -> RuntimeInfo
//	…/runtimes/<rtid>/status          -> RuntimeStatus
//	…/runtimes/<rtid>/configuration   -> RuntimeConfig
//	…/runtimes/<rtid>/flows/<flow_id>/<instance_id> -> DataFlowRecord
//	…/registry/graphs/<flow_id>       -> graph template
func fabricRuntimeInfoKey(rt RuntimeId) string { return "runtimes/" + string(rt) + "/info" }

func fabricRuntimeStatusKey(rt RuntimeId) string { return "runtimes/" + string(rt) + "/status" }

func fabricRuntimeConfigKey(rt RuntimeId) string { return "runtimes/" + string(rt) + "/configuration" }

func fabricFlowRecordKey(rt RuntimeId, flow FlowId, instance InstanceId) string {
	return "runtimes/" + string(rt) + "/flows/" + string(flow) + "/" + string(instance)
}

func fabricGraphKey(flow FlowId) string { return "registry/graphs/" + string(flow) }

// connectorSubject derives the fabric pub/sub subject a sender/receiver
// connector pair uses to bridge one link across runtimes, keyed by
// (flow_id, instance_id, link_id) so that distinct instances of the same
// flow never cross-talk.
func connectorSubject(flow FlowId, instance InstanceId, linkID string) string {
	return "connectors/" + string(flow) + "/" + string(instance) + "/" + linkID
}
