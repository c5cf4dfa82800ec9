package outbox

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (p *fakeProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestDispatch_WritesHeadersAndKey(t *testing.T) {
	p := &fakeProducer{}
	d := NewDispatcher(discard(), p, "vending.notifications")

	err := d.Dispatch(context.Background(), Event{
		ID:          7,
		MessageID:   "m-1",
		AggregateID: "guild-1/3",
		Type:        "delivery",
		Payload:     []byte(`{}`),
		Headers:     map[string]string{"recipient": "buyer-1"},
		Traceparent: "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01",
	})
	require.NoError(t, err)
	require.Len(t, p.msgs, 1)

	m := p.msgs[0]
	assert.Equal(t, "vending.notifications", m.Topic)
	assert.Equal(t, "guild-1/3", string(m.Key))
	assert.Equal(t, "delivery", header(m, "event_type"))
	assert.Equal(t, "m-1", header(m, "message_id"))
	assert.Equal(t, "buyer-1", header(m, "recipient"))
	assert.Equal(t, "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01", header(m, "traceparent"))
}

func TestDispatch_ReturnsProducerError(t *testing.T) {
	boom := errors.New("broker unavailable")
	d := NewDispatcher(discard(), &fakeProducer{err: boom}, "t")
	assert.ErrorIs(t, d.Dispatch(context.Background(), Event{Type: "x"}), boom)
}

func TestMemoryStore_LockBatchOrderAndLease(t *testing.T) {
	s := NewMemoryStore(3)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		ev := s.Enqueue(Event{Type: "admin_notice"})
		assert.Equal(t, int64(i+1), ev.ID)
		assert.NotEmpty(t, ev.MessageID)
	}

	batch, err := s.LockBatch(context.Background(), "r1", 3, time.Second)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{batch[0].ID, batch[1].ID, batch[2].ID})

	// leased events are not offered to another relay
	batch, err = s.LockBatch(context.Background(), "r2", 10, time.Second)
	require.NoError(t, err)
	assert.Len(t, batch, 2)

	require.NoError(t, s.ExtendLease(context.Background(), "r1", []int64{1}, 5*time.Second))
	now = now.Add(2 * time.Second)
	batch, err = s.LockBatch(context.Background(), "r2", 10, time.Second)
	require.NoError(t, err)
	ids := make([]int64, 0, len(batch))
	for _, e := range batch {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []int64{2, 3, 4, 5}, ids)
}

func TestMemoryStore_FailedEventsRetryUntilLimit(t *testing.T) {
	var dropped []Event
	s := NewMemoryStore(2, OnDrop(func(e Event) { dropped = append(dropped, e) }))
	ev := s.Enqueue(Event{Type: "x"})

	batch, err := s.LockBatch(context.Background(), "r", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	require.NoError(t, s.MarkFailed(context.Background(), ev.ID, "first"))

	got, ok := s.get(ev.ID)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, 1, s.Pending())
	assert.Empty(t, dropped)

	batch, err = s.LockBatch(context.Background(), "r", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	require.NoError(t, s.MarkFailed(context.Background(), ev.ID, "nope"))

	_, ok = s.get(ev.ID)
	assert.False(t, ok)
	assert.Zero(t, s.Pending())
	batch, err = s.LockBatch(context.Background(), "r", 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, batch)

	require.Len(t, dropped, 1)
	assert.Equal(t, ev.ID, dropped[0].ID)
	assert.Equal(t, 2, dropped[0].RetryCount)
	require.NotNil(t, dropped[0].LastError)
	assert.Equal(t, "nope", *dropped[0].LastError)
}

func TestMemoryStore_ManyDeadEventsDoNotAccumulate(t *testing.T) {
	drops := 0
	s := NewMemoryStore(1, OnDrop(func(Event) { drops++ }))
	for i := 0; i < 50; i++ {
		s.Enqueue(Event{Type: "x"})
	}
	batch, err := s.LockBatch(context.Background(), "r", 100, time.Minute)
	require.NoError(t, err)
	for _, e := range batch {
		require.NoError(t, s.MarkFailed(context.Background(), e.ID, "down"))
	}
	assert.Zero(t, s.Pending())
	assert.Equal(t, 50, drops)
}

func TestRelay_PollSendsAndMarks(t *testing.T) {
	s := NewMemoryStore(3)
	p := &fakeProducer{}
	r := NewRelay(discard(), s, NewDispatcher(discard(), p, "t"), "relay-1", WithBatchSize(10))

	s.Enqueue(Event{Type: "admin_notice", Payload: []byte("a")})
	s.Enqueue(Event{Type: "achievement_notice", Payload: []byte("b")})

	n, err := r.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, p.msgs, 2)
	assert.Zero(t, s.Pending())

	n, err = r.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRelay_PollKeepsFailedEvents(t *testing.T) {
	s := NewMemoryStore(3)
	p := &fakeProducer{err: errors.New("down")}
	r := NewRelay(discard(), s, NewDispatcher(discard(), p, "t"), "relay-1")

	ev := s.Enqueue(Event{Type: "x"})
	n, err := r.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, s.Pending())

	p.err = nil
	n, err = r.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok := s.get(ev.ID)
	assert.False(t, ok)
}

func TestRelay_RunStopsOnCancel(t *testing.T) {
	s := NewMemoryStore(3)
	p := &fakeProducer{}
	r := NewRelay(discard(), s, NewDispatcher(discard(), p, "t"), "relay-1", WithInterval(5*time.Millisecond))
	s.Enqueue(Event{Type: "x"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	assert.Eventually(t, func() bool { return s.Pending() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
