// SPDX-License-Identifier: GPL-3.0-or-later

// Package flowmesh implements the in-process execution engine of a
// distributed dataflow runtime: typed bounded links, a hybrid logical
// clock, per-edge end-to-end deadline bookkeeping, and the six node
// runner kinds (source, operator, sink, connector sender/receiver,
// replay) that a daemon wires together into a running flow instance.
//
// # Core Abstraction
//
// A [Dataflow] record (nodes + links) is turned into a [DataflowInstance]
// by [Instantiate], which builds links ([NewLink]) between nodes placed on this
// runtime and wraps every node in a runner. The caller then drives each
// node's lifecycle independently through the instance: [DataflowInstance.StartNode],
// [DataflowInstance.StopNode], [DataflowInstance.StartRecording],
// [DataflowInstance.StartReplay].
//
// # Node Runners
//
//   - [SourceRunner]: calls a user [Source], stamps a [Timestamp], attaches
//     declared [E2EDeadlineRecord]s, and fans the result out over every
//     output link.
//   - [OperatorRunner]: gathers one envelope per input per firing (or a
//     user-defined partial set via [InputRule]), computes synchronously,
//     and routes results per [Operator.OutputRule].
//   - [SinkRunner]: terminal consumer, no outputs.
//   - [SenderRunner] / [ReceiverRunner]: bridge a local link to the fabric
//     for cross-runtime edges.
//   - [ReplayRunner]: re-emits a recorded envelope stream on a stopped
//     source's former output links.
//
// Every runner is owned by exactly one [RunnerManager], which spawns its
// Run method as a background goroutine and supports cooperative
// cancellation via Kill, blocking join via Await, and recording
// control via StartRecording/StopRecording.
//
// # Concurrency
//
// Runners share no mutable state except link queues (internally
// synchronized, single-producer/single-consumer), the [HLC] (a guarded
// monotone counter), and the runtime's fabric session. Operators must not
// suspend; all I/O happens in the surrounding iteration loop.
//
// # Observability
//
// All components log through [SLogger], compatible with [log/slog].
// By default, logging is disabled (see [DefaultSLogger]). Log entries
// carry node and port fields; [NewSpanID] generates span ids, but no
// component in this package attaches them to its log entries.
package flowmesh
