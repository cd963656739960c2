package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/NordCoder/streamcheck/internal/domain/channel"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	msgs      []kafka.Message
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func sampleChange() channel.Change {
	old := channel.StatusWorking
	return channel.Change{
		RunID: uuid.MustParse("7b0c8f34-3f4e-4c55-9a0e-1d2f3a4b5c6d"),
		Name:  "ESPN",
		URL:   "https://streams.example.com/espn.m3u8",
		Old:   &old,
		New:   channel.StatusDead,
		Code:  403,
		At:    time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	}
}

func TestEncodeDecodeChange(t *testing.T) {
	in := sampleChange()

	s, err := EncodeChange(in)
	require.NoError(t, err)

	out, err := DecodeChange(s)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	first := in
	first.Old = nil
	s, err = EncodeChange(first)
	require.NoError(t, err)
	out, err = DecodeChange(s)
	require.NoError(t, err)
	assert.Nil(t, out.Old)
}

func TestStatusEventsKafka_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{w: w, topic: "streamcheck.status.changed", log: zap.NewNop()}
	ev := NewStatusEventsKafka(p)

	require.NoError(t, ev.PublishStatusChanged(context.Background(), sampleChange()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("ESPN"), w.msgs[0].Key)

	var got channel.Change
	h := StatusChangeHandler(func(_ context.Context, ch channel.Change) error {
		got = ch
		return nil
	})
	require.NoError(t, h(context.Background(), w.msgs[0].Key, w.msgs[0].Value))
	assert.Equal(t, sampleChange(), got)
}

func TestProducer_WriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := &Producer{w: &fakeWriter{err: boom}, topic: "t", log: zap.NewNop()}

	err := NewStatusEventsKafka(p).PublishStatusChanged(context.Background(), sampleChange())
	assert.ErrorIs(t, err, boom)
}

func TestConsumer_SkipsUndecodable(t *testing.T) {
	good, err := EncodeChange(sampleChange())
	require.NoError(t, err)
	w := &fakeWriter{}
	p := &Producer{w: w, topic: "t", log: zap.NewNop()}
	require.NoError(t, p.PublishProto(context.Background(), []byte("ESPN"), good))

	r := &fakeReader{msgs: []kafka.Message{
		{Key: []byte("bad"), Value: []byte{0xff, 0xff}, Offset: 1},
		{Key: w.msgs[0].Key, Value: w.msgs[0].Value, Offset: 2},
	}}
	c := &Consumer{reader: r, log: zap.NewNop(), cfg: &ConsumerConfig{Topic: "t"}}

	ctx, cancel := context.WithCancel(context.Background())
	var seen []string
	err = c.Consume(ctx, StatusChangeHandler(func(_ context.Context, ch channel.Change) error {
		seen = append(seen, ch.Name)
		cancel()
		return nil
	}))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"ESPN"}, seen)
	require.Len(t, r.committed, 2)
	assert.Equal(t, int64(1), r.committed[0].Offset)
	assert.Equal(t, int64(2), r.committed[1].Offset)
}

func TestConsumer_HandlerErrorStopsWithoutCommit(t *testing.T) {
	good, err := EncodeChange(sampleChange())
	require.NoError(t, err)
	w := &fakeWriter{}
	p := &Producer{w: w, topic: "t", log: zap.NewNop()}
	require.NoError(t, p.PublishProto(context.Background(), []byte("ESPN"), good))

	r := &fakeReader{msgs: []kafka.Message{
		{Key: w.msgs[0].Key, Value: w.msgs[0].Value, Offset: 5},
		{Key: w.msgs[0].Key, Value: w.msgs[0].Value, Offset: 6},
	}}
	c := &Consumer{reader: r, log: zap.NewNop(), cfg: &ConsumerConfig{Topic: "t"}}

	errSink := errors.New("stdout closed")
	calls := 0
	err = c.Consume(context.Background(), StatusChangeHandler(func(context.Context, channel.Change) error {
		calls++
		return errSink
	}))

	require.ErrorIs(t, err, errSink)
	assert.Contains(t, err.Error(), "offset 5")
	assert.Equal(t, 1, calls, "later messages are not fetched")
	assert.Empty(t, r.committed)
	assert.Len(t, r.msgs, 1)
}

func TestMapCarrierHeaders_Sorted(t *testing.T) {
	h := mapCarrierHeaders{"tracestate": "b", "baggage": "c", "traceparent": "a"}
	hs := h.ToKafka()
	require.Len(t, hs, 3)
	assert.Equal(t, "baggage", hs[0].Key)
	assert.Equal(t, "traceparent", hs[1].Key)

	back := mapCarrierFromKafka(hs)
	assert.Equal(t, "a", back.Get("traceparent"))
	assert.Equal(t, "", back.Get("missing"))
}
