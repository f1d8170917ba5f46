package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2025, 1, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

func TestNew(t *testing.T) {
	ev := New(OrderPlaced, "order-1", at, map[string]int{"items": 3})

	assert.Equal(t, OrderPlaced, ev.Type)
	assert.Equal(t, "order-1", ev.Key)
	assert.Equal(t, time.UTC, ev.OccurredAt.Location())
	assert.True(t, at.Equal(ev.OccurredAt))
	assert.JSONEq(t, `{"items": 3}`, string(ev.Payload))
}

func TestNew_UnmarshallablePayload(t *testing.T) {
	ev := New(OrderPlaced, "order-1", at, make(chan int))

	var payload map[string]string
	require.NoError(t, Decode(ev, &payload))
	assert.Contains(t, payload["marshal_error"], "chan int")
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{}
	ctx := context.Background()

	require.NoError(t, rec.Publish(ctx, New(OrderPlaced, "order-1", at, nil)))
	require.NoError(t, rec.Publish(ctx, New(OrderStatusChanged, "order-1", at, nil)))
	require.NoError(t, rec.Publish(ctx, New(OrderPlaced, "order-2", at, nil)))

	assert.Len(t, rec.Events(), 3)
	placed := rec.OfType(OrderPlaced)
	require.Len(t, placed, 2)
	assert.Equal(t, "order-2", placed[1].Key)
	assert.Empty(t, rec.OfType(ReturnProcessed))

	// Events hands out a copy
	evs := rec.Events()
	evs[0].Key = "mutated"
	assert.Equal(t, "order-1", rec.Events()[0].Key)
}

func TestRecorder_Err(t *testing.T) {
	boom := errors.New("bus down")
	rec := &Recorder{Err: boom}

	err := rec.Publish(context.Background(), New(OrderPlaced, "order-1", at, nil))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, rec.Events())
}

func TestRecorder_Concurrent(t *testing.T) {
	rec := &Recorder{}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = rec.Publish(context.Background(), New(CartsAbandoned, "sweeper", at, nil))
		}()
	}
	wg.Wait()
	assert.Len(t, rec.Events(), 50)
}

func TestDecode_Invalid(t *testing.T) {
	ev := Event{Type: ReturnRequested, Payload: json.RawMessage(`[1,2]`)}
	var v struct{ ID string }
	err := Decode(ev, &v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode return.requested payload")
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	pub := NewKafkaPublisherWithWriter(w)

	ev := New(ReturnProcessed, "return-1", at, map[string]string{"status": "approved"})
	require.NoError(t, pub.Publish(context.Background(), ev))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "return-1", string(msg.Key))
	assert.True(t, at.Equal(msg.Time))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event-type", msg.Headers[0].Key)
	assert.Equal(t, "return.processed", string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, ReturnProcessed, decoded.Type)
	assert.JSONEq(t, `{"status":"approved"}`, string(decoded.Payload))

	require.NoError(t, pub.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	pub := NewKafkaPublisherWithWriter(&fakeWriter{err: errors.New("leader not available")})

	err := pub.Publish(context.Background(), New(OrderPlaced, "order-1", at, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish order.placed")
	assert.Contains(t, err.Error(), "leader not available")
}

func TestNewKafkaPublisher(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "")
	assert.Error(t, err)

	pub, err := NewKafkaPublisher([]string{"localhost:9092"}, "")
	require.NoError(t, err)
	w, ok := pub.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, DefaultTopic, w.Topic)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
	require.NoError(t, pub.Close())
}
