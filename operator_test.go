// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// addOperator is an [Operator] summing two int inputs into one output.
type addOperator struct{}

func (addOperator) Run(ctx context.Context, state any, inputs map[PortId]*DataMessage) (map[PortId]any, error) {
	a := inputs["a"].Payload.Value.(int)
	b := inputs["b"].Payload.Value.(int)
	return map[PortId]any{"sum": a + b}, nil
}

func (addOperator) OutputRule(ctx context.Context, state any, outputs map[PortId]any, miss *LocalDeadlineMiss) map[PortId]NodeOutput {
	return map[PortId]NodeOutput{"sum": DataOutput{Value: outputs["sum"]}}
}

func newWiredOperatorRunner(t *testing.T, rc *RuntimeContext, config *Config) (
	*OperatorRunner, *LinkSender, *LinkSender, *LinkReceiver) {
	t.Helper()
	senderA, recvA := NewLink(nil, "a", "a")
	senderB, recvB := NewLink(nil, "b", "b")
	senderOut, recvOut := NewLink(nil, "sum", "sum")

	bundle := newIOBundle()
	require.NoError(t, bundle.addInput("a", recvA))
	require.NoError(t, bundle.addInput("b", recvB))
	bundle.addOutput("sum", senderOut)

	runner := NewOperatorRunner("op", []PortId{"a", "b"}, []PortId{"sum"}, rc, config,
		addOperator{}, nil, nil, nil, 0, nil, bundle)
	return runner, senderA, senderB, recvOut
}

func TestOperatorRunnerWaitsForAllInputsByDefault(t *testing.T) {
	rc := newTestRuntimeContext(nil, nil)
	config := NewConfig()
	runner, senderA, senderB, recvOut := newWiredOperatorRunner(t, rc, config)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	require.NoError(t, senderA.Send(context.Background(), &DataMessage{
		Payload: NewValuePayload(2), Timestamp: rc.hlc.NewTimestamp(),
	}))

	time.Sleep(30 * time.Millisecond)
	_, _, err := recvOut.TryRecv()
	assert.ErrorIs(t, err, ErrEmpty, "operator must not fire before both inputs arrive")

	require.NoError(t, senderB.Send(context.Background(), &DataMessage{
		Payload: NewValuePayload(3), Timestamp: rc.hlc.NewTimestamp(),
	}))

	_, out, err := recvOut.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, out.(*DataMessage).Payload.Value)

	cancel()
	senderA.Close()
	senderB.Close()
	<-done
}

func TestOperatorRunnerInheritsAndAppendsDeadlines(t *testing.T) {
	rc := newTestRuntimeContext(nil, nil)
	config := NewConfig()

	senderA, recvA := NewLink(nil, "a", "a")
	senderB, recvB := NewLink(nil, "b", "b")
	senderOut, recvOut := NewLink(nil, "sum", "sum")

	bundle := newIOBundle()
	require.NoError(t, bundle.addInput("a", recvA))
	require.NoError(t, bundle.addInput("b", recvB))
	bundle.addOutput("sum", senderOut)

	ownDeadline := E2EDeadlineRecord{
		From: NodeOutputRef{Node: "op", Output: "sum"},
		To:   NodeInputRef{Node: "sink", Input: "in"},
	}
	runner := NewOperatorRunner("op", []PortId{"a", "b"}, []PortId{"sum"}, rc, config,
		addOperator{}, nil, map[PortId][]E2EDeadlineRecord{"sum": {ownDeadline}}, nil, 0, nil, bundle)

	inheritedDeadline := E2EDeadlineRecord{
		From: NodeOutputRef{Node: "src", Output: "a"},
		To:   NodeInputRef{Node: "other", Input: "x"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	require.NoError(t, senderA.Send(context.Background(), &DataMessage{
		Payload: NewValuePayload(2), Timestamp: rc.hlc.NewTimestamp(),
		EndToEndDeadlines: []E2EDeadlineRecord{inheritedDeadline},
	}))
	require.NoError(t, senderB.Send(context.Background(), &DataMessage{
		Payload: NewValuePayload(3), Timestamp: rc.hlc.NewTimestamp(),
	}))

	_, out, err := recvOut.Recv(context.Background())
	require.NoError(t, err)
	deadlines := out.(*DataMessage).EndToEndDeadlines
	assert.Len(t, deadlines, 2)

	cancel()
	senderA.Close()
	senderB.Close()
	<-done
}

func TestOperatorRunnerAddInputAddOutput(t *testing.T) {
	rc := newTestRuntimeContext(nil, nil)
	runner := NewOperatorRunner("op", []PortId{"a"}, []PortId{"sum"}, rc, NewConfig(),
		addOperator{}, nil, nil, nil, 0, nil, newIOBundle())

	_, recv := NewLink(nil, "a", "a")
	require.NoError(t, runner.AddInput("a", recv))

	sender, _ := NewLink(nil, "sum", "sum")
	require.NoError(t, runner.AddOutput("sum", sender))
}

func TestOperatorRunnerStartRecording(t *testing.T) {
	rc := newTestRuntimeContext(nil, nil)
	runner := NewOperatorRunner("op", nil, nil, rc, NewConfig(),
		addOperator{}, nil, nil, nil, 0, nil, newIOBundle())
	require.NoError(t, runner.StartRecording("rec-1"))
	assert.True(t, runner.IsRecording())
}

func TestWaitForAllInputsFiresOnlyWhenAllPending(t *testing.T) {
	rule := WaitForAllInputs([]PortId{"a", "b"})
	ready, consumed := rule(nil, map[PortId]*DataMessage{"a": {}})
	assert.False(t, ready)
	assert.Nil(t, consumed)

	ready, consumed = rule(nil, map[PortId]*DataMessage{"a": {}, "b": {}})
	assert.True(t, ready)
	assert.Len(t, consumed, 2)
}

func TestFuncAdapterCallsWrappedFunction(t *testing.T) {
	double := FuncAdapter[int, int](func(ctx context.Context, input int) (int, error) { return input * 2, nil })
	out, err := double.Call(context.Background(), 21)
	require.NoError(t, err)
	assert.Equal(t, 42, out)
}
