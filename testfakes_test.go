// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

import (
	"context"
	"sync"
	"time"
)

// fakeRecorder is an in-memory [Recorder] used by source/operator/replay
// tests: Record appends to a per-name slice, Open plays it back in order.
type fakeRecorder struct {
	mu      sync.Mutex
	streams map[string][]*DataMessage
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{streams: make(map[string][]*DataMessage)}
}

func (f *fakeRecorder) Record(ctx context.Context, name string, msg Message) error {
	data, ok := msg.(*DataMessage)
	if !ok {
		return ErrInvalidData
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streams[name] = append(f.streams[name], data.Clone())
	return nil
}

func (f *fakeRecorder) Open(ctx context.Context, name string) (RecordedStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &fakeRecordedStream{items: append([]*DataMessage(nil), f.streams[name]...)}, nil
}

type fakeRecordedStream struct {
	items []*DataMessage
	pos   int
}

func (s *fakeRecordedStream) Next(ctx context.Context) (*DataMessage, error) {
	if s.pos >= len(s.items) {
		return nil, ErrEmpty
	}
	msg := s.items[s.pos]
	s.pos++
	return msg, nil
}

func (s *fakeRecordedStream) Close() error { return nil }

var (
	_ Recorder       = (*fakeRecorder)(nil)
	_ RecordedStream = (*fakeRecordedStream)(nil)
)

// fakeFabric is a minimal in-memory [Fabric]: Put/Get/Delete over a guarded
// map, Subscribe/Publish over per-subject channels.
type fakeFabric struct {
	mu   sync.Mutex
	kv   map[string][]byte
	subs map[string][]chan []byte
}

func newFakeFabric() *fakeFabric {
	return &fakeFabric{kv: make(map[string][]byte), subs: make(map[string][]chan []byte)}
}

func (f *fakeFabric) Put(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kv[key] = value
	return nil
}

func (f *fakeFabric) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.kv[key]
	if !ok {
		return nil, ErrMissingState
	}
	return v, nil
}

func (f *fakeFabric) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.kv, key)
	return nil
}

func (f *fakeFabric) Subscribe(ctx context.Context, subject string) (FabricSubscription, error) {
	ch := make(chan []byte, 16)
	f.mu.Lock()
	f.subs[subject] = append(f.subs[subject], ch)
	f.mu.Unlock()
	return &fakeSubscription{ch: ch}, nil
}

func (f *fakeFabric) Publish(ctx context.Context, subject string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs[subject] {
		ch <- value
	}
	return nil
}

type fakeSubscription struct {
	ch     chan []byte
	closed bool
	mu     sync.Mutex
}

func (s *fakeSubscription) Next(ctx context.Context) ([]byte, error) {
	select {
	case v, ok := <-s.ch:
		if !ok {
			return nil, ErrDisconnected
		}
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.ch)
	return nil
}

var (
	_ Fabric             = (*fakeFabric)(nil)
	_ FabricSubscription = (*fakeSubscription)(nil)
)

func newTestRuntimeContext(fabric Fabric, recorder Recorder) *RuntimeContext {
	rt := RuntimeId("rt-test")
	hlc := NewHLC(rt, time.Now, time.Minute)
	return NewRuntimeContext(rt, hlc, fabric, nil, recorder)
}

// fakeRunner is a configurable [Runner] used by [RunnerManager] tests: Run
// blocks until ctx is cancelled (Stop alone does not unblock it), then
// returns runErr; Clean records whether it ran and returns cleanErr.
type fakeRunner struct {
	id   NodeId
	kind Kind

	mu         sync.Mutex
	running    bool
	recording  bool
	recordName string

	runErr      error
	cleanErr    error
	cleanCalled bool
	recordErr   error
}

func (r *fakeRunner) ID() NodeId { return r.id }
func (r *fakeRunner) Kind() Kind { return r.kind }

func (r *fakeRunner) Inputs() []PortId  { return nil }
func (r *fakeRunner) Outputs() []PortId { return nil }

func (r *fakeRunner) AddInput(port PortId, receiver *LinkReceiver) error { return nil }
func (r *fakeRunner) AddOutput(port PortId, sender *LinkSender) error    { return nil }

func (r *fakeRunner) TakeInputLinks() map[PortId]*LinkReceiver { return nil }
func (r *fakeRunner) OutputLinks() map[PortId][]*LinkSender    { return nil }

func (r *fakeRunner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *fakeRunner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = false
}

func (r *fakeRunner) Clean(ctx context.Context) error {
	r.mu.Lock()
	r.cleanCalled = true
	r.mu.Unlock()
	return r.cleanErr
}

func (r *fakeRunner) StartRecording(name string) error {
	if r.recordErr != nil {
		return r.recordErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = true
	r.recordName = name
	return nil
}

func (r *fakeRunner) StopRecording() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return "", ErrNotRecording
	}
	r.recording = false
	return r.recordName, nil
}

func (r *fakeRunner) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

func (r *fakeRunner) Run(ctx context.Context) error {
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()

	<-ctx.Done()

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	return r.runErr
}

var _ Runner = (*fakeRunner)(nil)
