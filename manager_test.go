// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerManagerStartAwaitKill(t *testing.T) {
	runner := &fakeRunner{id: "n1", kind: KindOperator}
	m := NewRunnerManager("flow", "inst", runner, NewScheduler(0), nil)

	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, m.IsRunning, time.Second, time.Millisecond)

	require.NoError(t, m.Kill(context.Background()))
	assert.False(t, m.IsRunning())
	assert.True(t, runner.cleanCalled)
}

func TestRunnerManagerStartTwiceFails(t *testing.T) {
	runner := &fakeRunner{id: "n1", kind: KindOperator}
	m := NewRunnerManager("flow", "inst", runner, NewScheduler(0), nil)

	require.NoError(t, m.Start(context.Background()))
	err := m.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyStarted)

	require.NoError(t, m.Kill(context.Background()))
}

func TestRunnerManagerAwaitPropagatesRunError(t *testing.T) {
	wantErr := errors.New("boom")
	runner := &fakeRunner{id: "n1", kind: KindOperator, runErr: wantErr}
	m := NewRunnerManager("flow", "inst", runner, NewScheduler(0), nil)

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Kill(context.Background()))

	err := m.Await(context.Background())
	assert.ErrorIs(t, err, wantErr)
}

func TestRunnerManagerAwaitWithoutStartFails(t *testing.T) {
	runner := &fakeRunner{id: "n1", kind: KindOperator}
	m := NewRunnerManager("flow", "inst", runner, NewScheduler(0), nil)

	err := m.Await(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRunnerManagerKillOnNeverStartedIsNoop(t *testing.T) {
	runner := &fakeRunner{id: "n1", kind: KindOperator}
	m := NewRunnerManager("flow", "inst", runner, NewScheduler(0), nil)
	assert.NoError(t, m.Kill(context.Background()))
}

func TestRunnerManagerStartRecordingNamesResource(t *testing.T) {
	runner := &fakeRunner{id: "n1", kind: KindSource}
	m := NewRunnerManager("flow-a", "inst-b", runner, NewScheduler(0), nil)

	name, err := m.StartRecording("out")
	require.NoError(t, err)
	assert.Equal(t, "record-flow-a-inst-b-n1-out-1", name)

	stopped, err := m.StopRecording()
	require.NoError(t, err)
	assert.Equal(t, name, stopped)
}

func TestRunnerManagerStartRecordingMonotonicSequence(t *testing.T) {
	runner := &fakeRunner{id: "n1", kind: KindSource}
	m := NewRunnerManager("flow", "inst", runner, NewScheduler(0), nil)

	first, err := m.StartRecording("out")
	require.NoError(t, err)
	_, _ = m.StopRecording()
	second, err := m.StartRecording("out")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
