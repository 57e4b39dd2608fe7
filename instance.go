// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

import (
	"context"
	"fmt"
	"time"
)

// RunnerFactory builds the user-defined component and initial state for one
// [NodeRecord] ("construct its runner, binding context, loaded
// component, IO"). The core's [Instantiate] does not know how to build
// user [Source]/[Operator]/[Sink] values; callers supply this factory,
// typically backed by a [Loader] for dynamically-loaded components.
type RunnerFactory interface {
	NewSource(rec NodeRecord, loaded LoadedComponent) (Source, any, error)
	NewOperator(rec NodeRecord, loaded LoadedComponent) (Operator, any, error)
	NewSink(rec NodeRecord, loaded LoadedComponent) (Sink, any, error)
}

// DataflowInstance is one running embodiment of a [Dataflow]: the
// links built from its graph record, the runners they wire together, and
// the managers controlling each runner's background task.
type DataflowInstance struct {
	ic     *InstanceContext
	config *Config
	sched  *Scheduler

	managers   map[NodeId]*RunnerManager
	sources    map[NodeId]*SourceRunner
	operators  map[NodeId]*OperatorRunner
	sinks      map[NodeId]*SinkRunner
	connectors map[NodeId]Runner
	replays    map[NodeId]*ReplayRunner
}

// Instantiate builds a [*DataflowInstance] from dataflow:
//  1. collect the node ids placed on rc's runtime;
//  2. build one link ([NewLink]) per descriptor whose endpoints are both in that set,
//     fanning its sender into the upstream node's output bundle and binding
//     its receiver to the downstream node's input bundle;
//  3. construct each node's runner from its staged IO bundle and the value
//     factory produces.
//
// Links whose endpoints span two runtimes are ignored: such edges are
// realized by connector node pairs, which are themselves ordinary local
// nodes on each side.
func Instantiate(dataflow Dataflow, instanceID InstanceId, rc *RuntimeContext, config *Config,
	loader Loader, factory RunnerFactory) (*DataflowInstance, error) {

	localNodes := make(map[NodeId]NodeRecord)
	for _, rec := range dataflow.Nodes {
		if rec.Runtime == rc.runtime {
			localNodes[rec.ID] = rec
		}
	}

	staged := make(map[NodeId]*ioBundle, len(localNodes))
	for id := range localNodes {
		staged[id] = newIOBundle()
	}

	// Port-type matching is validated before a [Dataflow] ever reaches
	// [Instantiate]; the core only wires links.
	for _, link := range dataflow.Links {
		_, fromLocal := localNodes[link.From.Node]
		_, toLocal := localNodes[link.To.Node]
		if !fromLocal || !toLocal {
			continue
		}

		sender, receiver := NewLink(link.Capacity, link.From.Output, link.To.Input)
		staged[link.From.Node].addOutput(link.From.Output, sender)
		if err := staged[link.To.Node].addInput(link.To.Input, receiver); err != nil {
			return nil, err
		}
	}

	inst := &DataflowInstance{
		ic:         NewInstanceContext(dataflow.Flow, instanceID, rc),
		config:     config,
		sched:      NewScheduler(0),
		managers:   make(map[NodeId]*RunnerManager),
		sources:    make(map[NodeId]*SourceRunner),
		operators:  make(map[NodeId]*OperatorRunner),
		sinks:      make(map[NodeId]*SinkRunner),
		connectors: make(map[NodeId]Runner),
		replays:    make(map[NodeId]*ReplayRunner),
	}

	for id, rec := range localNodes {
		bundle, ok := staged[id]
		if !ok {
			return nil, fmt.Errorf("%w: node %q has no staged wiring", ErrIO, id)
		}

		var runner Runner
		var loaded LoadedComponent
		var loadErr error
		if rec.LibraryPath != "" && loader != nil {
			loaded, loadErr = loader.Load(rec.LibraryPath, string(rec.Kind))
			if loadErr != nil {
				return nil, loadErr
			}
		}

		switch rec.Kind {
		case NodeTemplateSource:
			source, state, err := factory.NewSource(rec, loaded)
			if err != nil {
				return nil, err
			}
			sr := NewSourceRunner(id, firstPort(rec.OutputPorts), rc, config, source, state,
				rec.Deadlines[firstPort(rec.OutputPorts)], time.Duration(rec.Period), loaded, bundle)
			inst.sources[id] = sr
			runner = sr

		case NodeTemplateOperator:
			operator, state, err := factory.NewOperator(rec, loaded)
			if err != nil {
				return nil, err
			}
			or := NewOperatorRunner(id, rec.InputPorts, rec.OutputPorts, rc, config, operator, state,
				rec.Deadlines, rec.InputRule, time.Duration(rec.LocalDeadline), loaded, bundle)
			inst.operators[id] = or
			runner = or

		case NodeTemplateSink:
			sink, state, err := factory.NewSink(rec, loaded)
			if err != nil {
				return nil, err
			}
			sk := NewSinkRunner(id, firstPort(rec.InputPorts), rc, config, sink, state, loaded, bundle)
			inst.sinks[id] = sk
			runner = sk

		case NodeTemplateSenderConnector:
			sc := NewSenderRunner(id, firstPort(rec.InputPorts), rec.Subject, rc, config, bundle)
			inst.connectors[id] = sc
			runner = sc

		case NodeTemplateReceiverConnector:
			rcv := NewReceiverRunner(id, firstPort(rec.OutputPorts), rec.Subject, rc, config, bundle)
			inst.connectors[id] = rcv
			runner = rcv

		default:
			return nil, fmt.Errorf("%w: unknown node template kind %q", ErrInvalidData, rec.Kind)
		}

		inst.managers[id] = NewRunnerManager(inst.ic.flow, inst.ic.instance, runner, inst.sched, config.Logger)
	}

	return inst, nil
}

func firstPort(ports []PortId) PortId {
	if len(ports) == 0 {
		return ""
	}
	return ports[0]
}

// Manager returns the [*RunnerManager] owning id, or nil if id is unknown.
func (inst *DataflowInstance) Manager(id NodeId) (*RunnerManager, bool) {
	m, ok := inst.managers[id]
	return m, ok
}

// StartNode starts the manager for id.
func (inst *DataflowInstance) StartNode(ctx context.Context, id NodeId) error {
	m, ok := inst.managers[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	return m.Start(ctx)
}

// StopNode kills the manager for id.
func (inst *DataflowInstance) StopNode(ctx context.Context, id NodeId) error {
	m, ok := inst.managers[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	return m.Kill(ctx)
}

// IsNodeRunning reports whether id's manager is currently running.
func (inst *DataflowInstance) IsNodeRunning(id NodeId) (bool, error) {
	m, ok := inst.managers[id]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	return m.IsRunning(), nil
}

// StartRecording starts recording id's output, delegated to its manager.
func (inst *DataflowInstance) StartRecording(id NodeId, output PortId) (string, error) {
	m, ok := inst.managers[id]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	return m.StartRecording(output)
}

// StopRecording stops id's active recording, delegated to its manager.
func (inst *DataflowInstance) StopRecording(id NodeId) (string, error) {
	m, ok := inst.managers[id]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	return m.StopRecording()
}

// StartReplay takes over sourceID's output links (which must already be
// stopped, the caller's responsibility) and starts a [ReplayRunner] reading
// resource in their place, registered under [ReplayNodeID].
func (inst *DataflowInstance) StartReplay(ctx context.Context, sourceID NodeId, resource string) (NodeId, error) {
	source, ok := inst.sources[sourceID]
	if !ok {
		return "", fmt.Errorf("%w: %q is not a source", ErrNodeNotFound, sourceID)
	}
	if source.IsRunning() {
		return "", fmt.Errorf("%w: source %q must be stopped before replay", ErrInvalidState, sourceID)
	}

	port := source.OutputPort()
	senders := source.takeOutputLinks(port)

	replayID := ReplayNodeID(inst.ic.flow, inst.ic.instance, sourceID, port)
	replay := NewReplayRunner(replayID, port, resource, inst.ic.runtime, inst.config)
	for _, sender := range senders {
		replay.AddOutput(port, sender)
	}

	inst.replays[replayID] = replay
	m := NewRunnerManager(inst.ic.flow, inst.ic.instance, replay, inst.sched, inst.config.Logger)
	inst.managers[replayID] = m
	if err := m.Start(ctx); err != nil {
		return "", err
	}
	return replayID, nil
}

// StopReplay stops replayID's manager and removes the runner.
func (inst *DataflowInstance) StopReplay(ctx context.Context, replayID NodeId) error {
	m, ok := inst.managers[replayID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, replayID)
	}
	if err := m.Kill(ctx); err != nil {
		return err
	}
	delete(inst.managers, replayID)
	delete(inst.replays, replayID)
	return nil
}

// Sources lists the ids of every source node in this instance.
func (inst *DataflowInstance) Sources() []NodeId { return keysOf(inst.sources) }

// Operators lists the ids of every operator node in this instance.
func (inst *DataflowInstance) Operators() []NodeId { return keysOf(inst.operators) }

// Sinks lists the ids of every sink node in this instance.
func (inst *DataflowInstance) Sinks() []NodeId { return keysOf(inst.sinks) }

// Connectors lists the ids of every sender/receiver connector node in this
// instance.
func (inst *DataflowInstance) Connectors() []NodeId { return keysOf(inst.connectors) }

// Nodes lists the ids of every node (sources, operators, sinks, connectors;
// not replay runners, which are synthetic and transient) in this instance.
func (inst *DataflowInstance) Nodes() []NodeId {
	nodes := make([]NodeId, 0, len(inst.sources)+len(inst.operators)+len(inst.sinks)+len(inst.connectors))
	nodes = append(nodes, inst.Sources()...)
	nodes = append(nodes, inst.Operators()...)
	nodes = append(nodes, inst.Sinks()...)
	nodes = append(nodes, inst.Connectors()...)
	return nodes
}

func keysOf[V any](m map[NodeId]V) []NodeId {
	keys := make([]NodeId, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// StartSources, StartNodes, StopSources, and StopNodes are declared but
// unimplemented: a correct bulk implementation must be idempotent and
// tolerate nodes being in any prior state, which the per-node operations
// above do not by themselves guarantee when called in bulk. A safe manual
// teardown order is sources, then operators, then sinks, so upstream
// producers stop before the nodes draining them; callers doing their own
// teardown today should follow that order using [StopNode] directly until
// these land.

// StartSources is unimplemented; see the package-level note above.
func (inst *DataflowInstance) StartSources(ctx context.Context) error { return ErrUnimplemented }

// StartNodes is unimplemented; see the package-level note above.
func (inst *DataflowInstance) StartNodes(ctx context.Context) error { return ErrUnimplemented }

// StopSources is unimplemented; see the package-level note above.
func (inst *DataflowInstance) StopSources(ctx context.Context) error { return ErrUnimplemented }

// StopNodes is unimplemented; see the package-level note above.
func (inst *DataflowInstance) StopNodes(ctx context.Context) error { return ErrUnimplemented }
