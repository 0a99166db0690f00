package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sifan077/linkgate/internal/app/model"
	"github.com/sifan077/linkgate/internal/app/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeSink struct {
	recordFn func(ctx context.Context, event model.ClickEvent) error
}

func (f *fakeSink) Record(ctx context.Context, event model.ClickEvent) error {
	if f.recordFn != nil {
		return f.recordFn(ctx, event)
	}
	return nil
}

func TestClickWorker_DispatchBeforeStart(t *testing.T) {
	w := NewClickWorker(&fakeSink{}, nil, ClickWorkerConfig{})

	err := w.Dispatch(model.ClickEvent{Slug: "abc"})

	assert.ErrorIs(t, err, ErrClickWorkerStopped)
}

func TestClickWorker_StartTwice(t *testing.T) {
	w := NewClickWorker(&fakeSink{}, nil, ClickWorkerConfig{})
	require.NoError(t, w.Start())
	defer w.Stop()

	assert.Error(t, w.Start())
}

func TestClickWorker_QueueFullDropsWithoutBlocking(t *testing.T) {
	release := make(chan struct{})
	sink := &fakeSink{recordFn: func(ctx context.Context, _ model.ClickEvent) error {
		<-release
		return nil
	}}
	w := NewClickWorker(sink, nil, ClickWorkerConfig{Workers: 1, BufferSize: 1})
	require.NoError(t, w.Start())

	// One event is held by the worker, one fills the buffer. Keep going until
	// Dispatch reports the queue as full.
	var full bool
	for i := 0; i < 10 && !full; i++ {
		err := w.Dispatch(model.ClickEvent{ID: fmt.Sprintf("e%d", i)})
		if errors.Is(err, ErrClickQueueFull) {
			full = true
		}
	}
	assert.True(t, full)

	close(release)
	require.NoError(t, w.Stop())
}

func TestClickWorker_StopDrainsQueue(t *testing.T) {
	var recorded atomic.Int64
	sink := &fakeSink{recordFn: func(context.Context, model.ClickEvent) error {
		recorded.Add(1)
		return nil
	}}
	w := NewClickWorker(sink, nil, ClickWorkerConfig{Workers: 2, BufferSize: 100})
	require.NoError(t, w.Start())

	for i := 0; i < 50; i++ {
		require.NoError(t, w.Dispatch(model.ClickEvent{ID: fmt.Sprintf("e%d", i)}))
	}
	require.NoError(t, w.Stop())

	assert.EqualValues(t, 50, recorded.Load())
	assert.ErrorIs(t, w.Dispatch(model.ClickEvent{}), ErrClickWorkerStopped)
}

func TestClickWorker_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int64
	sink := &fakeSink{recordFn: func(context.Context, model.ClickEvent) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}}
	w := NewClickWorker(sink, nil, ClickWorkerConfig{Workers: 1, RetryAttempts: 3, RetryDelay: time.Millisecond})
	require.NoError(t, w.Start())

	require.NoError(t, w.Dispatch(model.ClickEvent{ID: "e1"}))
	require.NoError(t, w.Stop())

	assert.EqualValues(t, 3, calls.Load())
}

func TestClickWorker_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int64
	sink := &fakeSink{recordFn: func(context.Context, model.ClickEvent) error {
		calls.Add(1)
		return errors.New("down")
	}}
	w := NewClickWorker(sink, nil, ClickWorkerConfig{Workers: 1, RetryAttempts: 2, RetryDelay: time.Millisecond})
	require.NoError(t, w.Start())

	require.NoError(t, w.Dispatch(model.ClickEvent{ID: "e1"}))
	require.NoError(t, w.Stop())

	assert.EqualValues(t, 2, calls.Load())
}

func TestClickAccounting_ConcurrentRedirects(t *testing.T) {
	store := memory.New()
	recorder := NewClickRecorder(store, "salt", nil, nil)
	worker := NewClickWorker(recorder, nil, ClickWorkerConfig{Workers: 4, BufferSize: 1000})
	require.NoError(t, worker.Start())

	svc := NewLinkService(LinkServiceDeps{
		Store:  store,
		Hasher: NewBcryptHasher(bcrypt.MinCost),
		Clicks: worker,
	})
	ctx := context.Background()
	link, err := svc.CreateLink(ctx, CreateLinkInput{Target: "https://example.com/hot"})
	require.NoError(t, err)

	const visits = 200
	var wg sync.WaitGroup
	for i := 0; i < visits; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Resolve(ctx, link.Slug, Visit{IP: fmt.Sprintf("10.0.0.%d", i%250)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	require.NoError(t, worker.Stop())

	stats, err := svc.Stats(ctx, link.Slug)
	require.NoError(t, err)
	assert.EqualValues(t, visits, stats.TotalClicks)
	assert.Equal(t, visits, store.ClickCount(link.ID))
	assert.Len(t, stats.RecentClicks, RecentClicksLimit)
}
