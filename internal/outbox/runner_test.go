package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/NordCoder/streamcheck/internal/domain/channel"
	"github.com/NordCoder/streamcheck/internal/domain/outbox"
	"github.com/NordCoder/streamcheck/internal/obs/retry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

type recordingEvents struct {
	mu      sync.Mutex
	got     []channel.Change
	failFor map[string]int
}

func (e *recordingEvents) PublishStatusChanged(_ context.Context, ch channel.Change) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failFor[ch.Name] > 0 {
		e.failFor[ch.Name]--
		return errors.New("broker unavailable")
	}
	e.got = append(e.got, ch)
	return nil
}

func fastPolicy() retry.Policy {
	return retry.Policy{Name: "outbox_test", Attempts: 2, Backoff: retry.ExpoJitter{Base: time.Millisecond}}
}

func message(t *testing.T, name string) outbox.Message {
	t.Helper()
	ch := channel.Change{RunID: uuid.New(), Name: name, URL: "http://x/" + name, New: channel.StatusDead, Code: 404}
	data, err := EncodeStatusChanged(ch)
	require.NoError(t, err)
	return outbox.Message{IdempotencyKey: StatusChangedKey(ch), Kind: outbox.KindStatusChanged, Data: data}
}

func TestRunner_Flush_MarksOnlyDelivered(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := outbox.NewMockRepository(ctrl)

	ok := message(t, "ESPN")
	failing := message(t, "CNN")
	unknown := outbox.Message{IdempotencyKey: "weird", Kind: outbox.Kind(42)}

	gomock.InOrder(
		repo.EXPECT().PickBatch(gomock.Any(), 10, 30*time.Second).Return([]outbox.Message{ok, failing, unknown}, nil),
		repo.EXPECT().MarkSuccess(gomock.Any(), []string{ok.IdempotencyKey}).Return(nil),
	)

	events := &recordingEvents{failFor: map[string]int{"CNN": 5}}
	r := NewOutboxRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(events, fastPolicy()), Config{
		Workers: 1, BatchSize: 10, WaitTime: time.Second, InProgressTTL: 30 * time.Second,
	})

	n, err := r.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, events.got, 1)
	assert.Equal(t, "ESPN", events.got[0].Name)
}

func TestRunner_Flush_DrainsFullBatches(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := outbox.NewMockRepository(ctrl)

	a, b, c := message(t, "A"), message(t, "B"), message(t, "C")
	gomock.InOrder(
		repo.EXPECT().PickBatch(gomock.Any(), 2, gomock.Any()).Return([]outbox.Message{a, b}, nil),
		repo.EXPECT().MarkSuccess(gomock.Any(), []string{a.IdempotencyKey, b.IdempotencyKey}).Return(nil),
		repo.EXPECT().PickBatch(gomock.Any(), 2, gomock.Any()).Return([]outbox.Message{c}, nil),
		repo.EXPECT().MarkSuccess(gomock.Any(), []string{c.IdempotencyKey}).Return(nil),
	)

	events := &recordingEvents{failFor: map[string]int{"B": 1}}
	r := NewOutboxRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(events, fastPolicy()), Config{BatchSize: 2})

	n, err := r.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, events.got, 3, "B succeeds on retry")
}

func TestRunner_Flush_PickError(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := outbox.NewMockRepository(ctrl)
	boom := errors.New("db down")
	repo.EXPECT().PickBatch(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, boom)

	r := NewOutboxRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(&recordingEvents{}, fastPolicy()), Config{})
	n, err := r.Flush(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, n)
}

func TestRunner_StartStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := outbox.NewMockRepository(ctrl)
	repo.EXPECT().PickBatch(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()

	r := NewOutboxRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(&recordingEvents{}, fastPolicy()), Config{
		Workers: 2, WaitTime: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() { r.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("workers did not stop")
	}
}

func TestMakeGlobalOutboxHandler_BadPayloadIsPermanent(t *testing.T) {
	calls := 0
	pol := fastPolicy()
	pol.OnAttempt = func(int, error) { calls++ }

	h, err := MakeGlobalOutboxHandler(&recordingEvents{}, pol)(outbox.KindStatusChanged)
	require.NoError(t, err)

	err = h(context.Background(), []byte("{not json"))
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
