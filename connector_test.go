// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSenderRunnerPublishesEncodedEnvelope(t *testing.T) {
	fabric := newFakeFabric()
	rc := newTestRuntimeContext(fabric, nil)
	config := NewConfig()

	sender, recv := NewLink(nil, "out", "in")
	bundle := newIOBundle()
	require.NoError(t, bundle.addInput("in", recv))

	runner := NewSenderRunner("send", "in", "subj", rc, config, bundle)

	sub, err := fabric.Subscribe(context.Background(), "subj")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	msg := &DataMessage{Payload: NewValuePayload(7), Timestamp: rc.hlc.NewTimestamp()}
	require.NoError(t, sender.Send(context.Background(), msg))

	raw, err := sub.Next(context.Background())
	require.NoError(t, err)

	var decoded DataMessage
	require.NoError(t, config.Codec.Unmarshal(raw, &decoded))

	sender.Close()
	cancel()
	<-done
}

func TestSenderRunnerAddOutputFails(t *testing.T) {
	rc := newTestRuntimeContext(nil, nil)
	runner := NewSenderRunner("send", "in", "subj", rc, NewConfig(), newIOBundle())
	assert.ErrorIs(t, runner.AddOutput("p", nil), ErrSenderDoNotHaveOutputs)
}

func TestReceiverRunnerBroadcastsDecodedEnvelope(t *testing.T) {
	fabric := newFakeFabric()
	rc := newTestRuntimeContext(fabric, nil)
	config := NewConfig()

	sender, recv := NewLink(nil, "out", "in")
	bundle := newIOBundle()
	bundle.addOutput("out", sender)

	runner := NewReceiverRunner("recv", "out", "subj", rc, config, bundle)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	msg := &DataMessage{Payload: NewValuePayload(9), Timestamp: rc.hlc.NewTimestamp()}
	encoded, err := config.Codec.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, fabric.Publish(context.Background(), "subj", encoded))

	_, received, err := recv.Recv(context.Background())
	require.NoError(t, err)
	data, ok := received.(*DataMessage)
	require.True(t, ok)
	assert.NotNil(t, data.Payload.Value)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("receiver runner did not exit after cancellation")
	}
}

func TestReceiverRunnerAddInputFails(t *testing.T) {
	rc := newTestRuntimeContext(nil, nil)
	runner := NewReceiverRunner("recv", "out", "subj", rc, NewConfig(), newIOBundle())
	assert.ErrorIs(t, runner.AddInput("p", nil), ErrReceiverDoNotHaveInputs)
}

func TestReceiverRunnerDropsUndecodableSample(t *testing.T) {
	fabric := newFakeFabric()
	rc := newTestRuntimeContext(fabric, nil)
	config := NewConfig()

	sender, recv := NewLink(nil, "out", "in")
	bundle := newIOBundle()
	bundle.addOutput("out", sender)
	runner := NewReceiverRunner("recv", "out", "subj", rc, config, bundle)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	require.NoError(t, fabric.Publish(context.Background(), "subj", []byte("not valid cbor")))

	msg := &DataMessage{Payload: NewValuePayload(1), Timestamp: rc.hlc.NewTimestamp()}
	encoded, err := config.Codec.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, fabric.Publish(context.Background(), "subj", encoded))

	_, _, err = recv.Recv(context.Background())
	require.NoError(t, err)

	cancel()
	<-done
}
