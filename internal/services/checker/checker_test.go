package checker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NordCoder/streamcheck/internal/domain/channel"
	"github.com/NordCoder/streamcheck/internal/report"
	"github.com/NordCoder/streamcheck/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSources struct {
	chs []channel.Channel
	err error
}

func (f fakeSources) LoadAll(context.Context, []source.Source) ([]channel.Channel, error) {
	return f.chs, f.err
}

type fakeProber struct{ dead map[string]int }

func (f fakeProber) ProbeAll(_ context.Context, chs []channel.Channel) []channel.Result {
	out := make([]channel.Result, 0, len(chs))
	for _, ch := range chs {
		r := channel.Result{Channel: ch, Status: channel.StatusWorking, Code: 200}
		if code, ok := f.dead[ch.Name]; ok {
			r.Status, r.Code = channel.StatusDead, code
		}
		out = append(out, r)
	}
	return out
}

type fakePublisher struct {
	got []report.Report
	err error
}

func (f *fakePublisher) Publish(_ context.Context, r report.Report) error {
	f.got = append(f.got, r)
	return f.err
}

type fakeRecorder struct {
	runs    []*channel.Run
	changes []channel.Change
	err     error
}

func (f *fakeRecorder) Record(_ context.Context, run *channel.Run, _ []channel.Result) ([]channel.Change, error) {
	f.runs = append(f.runs, run)
	return f.changes, f.err
}

func channels(names ...string) []channel.Channel {
	out := make([]channel.Channel, 0, len(names))
	for _, n := range names {
		out = append(out, channel.Channel{Name: n, URL: "http://s/" + n})
	}
	return out
}

var oneSource = Settings{Sources: []source.Source{{Name: "base", Location: "http://x"}}}

func TestUsecase_RunOnce(t *testing.T) {
	pub := &fakePublisher{}
	rec := &fakeRecorder{changes: []channel.Change{{Name: "ESPN", New: channel.StatusDead}}}
	uc := NewUC(zap.NewNop(),
		fakeSources{chs: channels("CNN", "ESPN", "NBC")},
		fakeProber{dead: map[string]int{"ESPN": 403}},
		pub, rec, oneSource)

	sum, err := uc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 2, sum.Working)
	assert.Equal(t, 1, sum.Dead)
	assert.Len(t, sum.Changes, 1)

	require.Len(t, pub.got, 1)
	assert.Equal(t, 2, pub.got[0].Working)
	require.Len(t, pub.got[0].Dead, 1)
	assert.Equal(t, "ESPN", pub.got[0].Dead[0].Channel.Name)

	require.Len(t, rec.runs, 1)
	assert.Equal(t, sum.RunID, rec.runs[0].ID)
	assert.Equal(t, 3, rec.runs[0].Total)
}

func TestUsecase_RunOnce_WithoutHistory(t *testing.T) {
	uc := NewUC(zap.NewNop(), fakeSources{chs: channels("A")}, fakeProber{}, &fakePublisher{}, nil, oneSource)
	sum, err := uc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sum.Changes)
}

func TestUsecase_RunOnce_Errors(t *testing.T) {
	boom := errors.New("boom")

	t.Run("no sources", func(t *testing.T) {
		uc := NewUC(zap.NewNop(), fakeSources{}, fakeProber{}, &fakePublisher{}, nil, Settings{})
		_, err := uc.RunOnce(context.Background())
		assert.ErrorIs(t, err, ErrNoSources)
	})

	t.Run("load", func(t *testing.T) {
		pub := &fakePublisher{}
		uc := NewUC(zap.NewNop(), fakeSources{err: boom}, fakeProber{}, pub, nil, oneSource)
		_, err := uc.RunOnce(context.Background())
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, pub.got, "report untouched when nothing loaded")
	})

	t.Run("publish", func(t *testing.T) {
		rec := &fakeRecorder{}
		uc := NewUC(zap.NewNop(), fakeSources{chs: channels("A")}, fakeProber{}, &fakePublisher{err: boom}, rec, oneSource)
		_, err := uc.RunOnce(context.Background())
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, rec.runs)
	})

	t.Run("history keeps summary", func(t *testing.T) {
		uc := NewUC(zap.NewNop(), fakeSources{chs: channels("A", "B")}, fakeProber{}, &fakePublisher{}, &fakeRecorder{err: boom}, oneSource)
		sum, err := uc.RunOnce(context.Background())
		assert.ErrorIs(t, err, boom)
		require.NotNil(t, sum)
		assert.Equal(t, 2, sum.Working)
	})

	t.Run("canceled", func(t *testing.T) {
		pub := &fakePublisher{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		uc := NewUC(zap.NewNop(), fakeSources{chs: channels("A")}, fakeProber{}, pub, nil, oneSource)
		_, err := uc.RunOnce(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, pub.got)
	})
}

type blockingUC struct {
	calls   atomic.Int32
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

func (b *blockingUC) RunOnce(ctx context.Context) (*Summary, error) {
	b.calls.Add(1)
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return &Summary{}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestRunner_SkipsOverlappingRuns(t *testing.T) {
	uc := &blockingUC{release: make(chan struct{}), started: make(chan struct{})}
	r, err := NewRunner(zap.NewNop(), uc, RunnerConfig{Cron: "@every 1h"})
	require.NoError(t, err)

	ctx := context.Background()
	done := make(chan struct{})
	go func() { r.trigger(ctx); close(done) }()
	<-uc.started

	r.trigger(ctx)
	assert.EqualValues(t, 1, uc.calls.Load())

	close(uc.release)
	<-done
	r.trigger(ctx)
	assert.EqualValues(t, 2, uc.calls.Load())
}

func TestRunner_RunOnStartAndTimeout(t *testing.T) {
	uc := &blockingUC{release: make(chan struct{}), started: make(chan struct{})}
	r, err := NewRunner(zap.NewNop(), uc, RunnerConfig{
		Cron: "0 */4 * * *", RunOnStart: true, RunTimeout: 20 * time.Millisecond, Location: time.UTC,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	<-uc.started
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
	assert.EqualValues(t, 1, uc.calls.Load())
	assert.False(t, r.busy.Load())
}

func TestNewRunner_BadCron(t *testing.T) {
	_, err := NewRunner(zap.NewNop(), &blockingUC{}, RunnerConfig{Cron: "every tuesday"})
	assert.Error(t, err)
}
