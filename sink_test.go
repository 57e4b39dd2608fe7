// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkRunnerConsumesEnvelopes(t *testing.T) {
	rc := newTestRuntimeContext(nil, nil)
	config := NewConfig()

	received := make(chan any, 1)
	sink := SinkFunc(func(ctx context.Context, state any, msg *DataMessage) error {
		received <- msg.Payload.Value
		return nil
	})

	sender, recv := NewLink(nil, "out", "in")
	bundle := newIOBundle()
	require.NoError(t, bundle.addInput("in", recv))

	runner := NewSinkRunner("sink", "in", rc, config, sink, nil, nil, bundle)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	require.NoError(t, sender.Send(context.Background(), &DataMessage{
		Payload:   NewValuePayload(42),
		Timestamp: rc.hlc.NewTimestamp(),
	}))

	select {
	case v := <-received:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("sink did not observe the sent envelope")
	}

	sender.Close()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrRecvError)
	case <-time.After(time.Second):
		t.Fatal("sink did not exit after sender closed")
	}
	cancel()
}

func TestSinkRunnerAddOutputFails(t *testing.T) {
	rc := newTestRuntimeContext(nil, nil)
	runner := NewSinkRunner("sink", "in", rc, NewConfig(), nil, nil, nil, newIOBundle())
	err := runner.AddOutput("p", nil)
	assert.ErrorIs(t, err, ErrSinkDoNotHaveOutputs)
}

func TestSinkRunnerRejectsControlMessage(t *testing.T) {
	rc := newTestRuntimeContext(nil, nil)
	config := NewConfig()

	sink := SinkFunc(func(ctx context.Context, state any, msg *DataMessage) error { return nil })

	sender, recv := NewLink(nil, "out", "in")
	bundle := newIOBundle()
	require.NoError(t, bundle.addInput("in", recv))
	runner := NewSinkRunner("sink", "in", rc, config, sink, nil, nil, bundle)

	require.NoError(t, sender.Send(context.Background(), &ControlMessage{Kind: "k"}))

	err := runner.Run(context.Background())
	assert.ErrorIs(t, err, ErrUnimplemented)
}

func TestSinkRunnerMissedDeadlineRecorded(t *testing.T) {
	rc := newTestRuntimeContext(nil, nil)
	config := NewConfig()

	var seenMiss bool
	sink := SinkFunc(func(ctx context.Context, state any, msg *DataMessage) error {
		seenMiss = len(msg.MissedEndToEndDeadlines) == 1
		return nil
	})

	sender, recv := NewLink(nil, "out", "in")
	bundle := newIOBundle()
	require.NoError(t, bundle.addInput("in", recv))
	runner := NewSinkRunner("sink", "in", rc, config, sink, nil, nil, bundle)

	record := E2EDeadlineRecord{
		From:     NodeOutputRef{Node: "src", Output: "out"},
		To:       NodeInputRef{Node: "sink", Input: "in"},
		Duration: time.Nanosecond,
	}
	emitted := rc.hlc.NewTimestamp()
	time.Sleep(5 * time.Millisecond)

	done := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { done <- runner.Run(ctx) }()

	require.NoError(t, sender.Send(context.Background(), &DataMessage{
		Payload:           NewValuePayload(1),
		Timestamp:         emitted,
		EndToEndDeadlines: []E2EDeadlineRecord{record},
	}))

	require.Eventually(t, func() bool { return seenMiss }, time.Second, 5*time.Millisecond)
	sender.Close()
	cancel()
	<-done
}
