// SPDX-License-Identifier: GPL-3.0-or-later

package flowmesh

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// natsFabric is a [Fabric] backed by github.com/nats-io/nats.go: JetStream
// KV for the control-plane key space and core NATS publish/subscribe
// for connector data transport, matching the two access patterns
// the core actually needs.
type natsFabric struct {
	conn   *nats.Conn
	kv     jetstream.KeyValue
	bucket string
}

// NewNATSFabric connects to url and binds to (or creates) the named
// JetStream KV bucket used for the control-plane key space.
func NewNATSFabric(ctx context.Context, url string, bucket string) (Fabric, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	kv, err := js.KeyValue(ctx, bucket)
	if err != nil {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: bucket})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
	}

	return &natsFabric{conn: conn, kv: kv, bucket: bucket}, nil
}

func (f *natsFabric) Put(ctx context.Context, key string, value []byte) error {
	if _, err := f.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

func (f *natsFabric) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := f.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingState, err)
	}
	return entry.Value(), nil
}

func (f *natsFabric) Delete(ctx context.Context, key string) error {
	if err := f.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

func (f *natsFabric) Publish(ctx context.Context, subject string, value []byte) error {
	if err := f.conn.Publish(subject, value); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

func (f *natsFabric) Subscribe(ctx context.Context, subject string) (FabricSubscription, error) {
	samples := make(chan *nats.Msg, 64)
	sub, err := f.conn.ChanSubscribe(subject, samples)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return &natsSubscription{sub: sub, samples: samples}, nil
}

type natsSubscription struct {
	sub     *nats.Subscription
	samples chan *nats.Msg
}

func (s *natsSubscription) Next(ctx context.Context) ([]byte, error) {
	select {
	case msg, ok := <-s.samples:
		if !ok {
			return nil, fmt.Errorf("%w", ErrDisconnected)
		}
		return msg.Data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *natsSubscription) Close() error {
	return s.sub.Unsubscribe()
}

var _ Fabric = (*natsFabric)(nil)
var _ FabricSubscription = (*natsSubscription)(nil)

// natsRecorder stores recorded envelopes as an ordered stream of JetStream
// KV revisions under a per-resource key prefix, giving [ReplayRunner] a
// durable, appendable log without a dedicated streaming API.
type natsRecorder struct {
	kv    jetstream.KeyValue
	codec Codec
	now   func() time.Time
}

// NewNATSRecorder returns a [Recorder] storing envelopes in the given
// JetStream KV bucket handle, encoded with codec.
func NewNATSRecorder(kv jetstream.KeyValue, codec Codec, now func() time.Time) Recorder {
	return &natsRecorder{kv: kv, codec: codec, now: now}
}

func (r *natsRecorder) Record(ctx context.Context, name string, msg Message) error {
	encoded, err := r.codec.Marshal(msg)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s.%d", name, r.now().UnixNano())
	if _, err := r.kv.Put(ctx, key, encoded); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

func (r *natsRecorder) Open(ctx context.Context, name string) (RecordedStream, error) {
	lister, err := r.kv.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	prefix := name + "."
	var ordered []string
	for key := range lister.Keys() {
		if strings.HasPrefix(key, prefix) {
			ordered = append(ordered, key)
		}
	}
	// Keys embed a monotonic nanosecond suffix, so lexical order after the
	// shared prefix already matches recording order.
	sort.Strings(ordered)
	return &natsRecordedStream{kv: r.kv, codec: r.codec, keys: ordered}, nil
}

type natsRecordedStream struct {
	kv    jetstream.KeyValue
	codec Codec
	keys  []string
	pos   int
}

func (s *natsRecordedStream) Next(ctx context.Context) (*DataMessage, error) {
	if s.pos >= len(s.keys) {
		return nil, fmt.Errorf("%w", ErrEmpty)
	}
	entry, err := s.kv.Get(ctx, s.keys[s.pos])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	s.pos++
	var msg DataMessage
	if err := s.codec.Unmarshal(entry.Value(), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *natsRecordedStream) Close() error { return nil }

var _ Recorder = (*natsRecorder)(nil)
var _ RecordedStream = (*natsRecordedStream)(nil)
