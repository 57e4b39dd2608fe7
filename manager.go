// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// RunnerManager owns the background task executing one [Runner]'s
// iteration loop. Created idle; [RunnerManager.Start] spawns the
// task on a [Scheduler] and returns once, a second call failing with
// [ErrAlreadyStarted].
type RunnerManager struct {
	runner   Runner
	sched    *Scheduler
	logger   SLogger
	flow     FlowId
	instance InstanceId

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	result  error

	monotonic atomic.Uint64
}

// NewRunnerManager constructs a [*RunnerManager] for runner, spawning its
// iteration loop on sched when started.
func NewRunnerManager(flow FlowId, instance InstanceId, runner Runner, sched *Scheduler, logger SLogger) *RunnerManager {
	if logger == nil {
		logger = DefaultSLogger()
	}
	return &RunnerManager{
		runner:   runner,
		sched:    sched,
		logger:   logger,
		flow:     flow,
		instance: instance,
	}
}

// ID returns the wrapped runner's node id.
func (m *RunnerManager) ID() NodeId { return m.runner.ID() }

// Runner returns the wrapped runner.
func (m *RunnerManager) Runner() Runner { return m.runner }

// Start spawns runner.Run on the manager's scheduler. A runner may
// be started at most once per manager; a second call returns
// [ErrAlreadyStarted].
func (m *RunnerManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("%w: node %q", ErrAlreadyStarted, m.runner.ID())
	}
	m.started = true

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	group, _ := errgroup.WithContext(runCtx)
	group.Go(func() error {
		return m.sched.Submit(func() error {
			runErr := m.runner.Run(runCtx)
			cleanErr := m.runner.Clean(context.Background())
			return firstNonNilErr(runErr, cleanErr)
		})
	})

	done := m.done
	go func() {
		err := group.Wait()
		m.mu.Lock()
		m.result = err
		m.mu.Unlock()
		close(done)
	}()
	return nil
}

// IsRunning reports whether the wrapped runner's iteration loop is
// currently executing.
func (m *RunnerManager) IsRunning() bool {
	return m.runner.IsRunning()
}

// Kill cooperatively cancels the runner: it calls [Runner.Stop], cancels
// the run context, and blocks until the task acknowledges.
// Idempotent; a manager never started returns immediately.
func (m *RunnerManager) Kill(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	done := m.done
	cancel := m.cancel
	m.mu.Unlock()

	m.runner.Stop()
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Await blocks until the runner's task ends, returning the error its
// iteration loop (or [Runner.Clean]) exited with.
func (m *RunnerManager) Await(ctx context.Context) error {
	m.mu.Lock()
	started := m.started
	done := m.done
	m.mu.Unlock()
	if !started {
		return fmt.Errorf("%w: node %q was never started", ErrInvalidState, m.runner.ID())
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.result
}

// StartRecording asks the runner to open a fresh recording resource named
// "record-<flow>-<instance>-<node>-<output>-<monotonic>" and returns that
// name. Fails on sinks and connectors with [ErrUnsupported].
func (m *RunnerManager) StartRecording(output PortId) (string, error) {
	seq := m.monotonic.Add(1)
	name := fmt.Sprintf("record-%s-%s-%s-%s-%d", m.flow, m.instance, m.runner.ID(), output, seq)
	if err := m.runner.StartRecording(name); err != nil {
		return "", err
	}
	return name, nil
}

// StopRecording closes the active recording and returns its resource name.
func (m *RunnerManager) StopRecording() (string, error) {
	return m.runner.StopRecording()
}

func firstNonNilErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
