package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/skillmarket/internal/errs"
)

type fakeIncrementer struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
	calls  chan string
}

func newFakeIncrementer() *fakeIncrementer {
	return &fakeIncrementer{counts: map[string]int{}, calls: make(chan string, 64)}
}

func (f *fakeIncrementer) IncrementDownloads(ctx context.Context, slug string) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("no deadline")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls <- slug
	if f.err != nil {
		return f.err
	}
	f.counts[slug]++
	return nil
}

func (f *fakeIncrementer) count(slug string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[slug]
}

func TestDownloadCounter_AppliesScheduled(t *testing.T) {
	t.Parallel()
	repo := newFakeIncrementer()
	d := NewDownloadCounter(repo, 8, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.True(t, d.Schedule("pdf-tools"))
	require.True(t, d.Schedule("pdf-tools"))
	for range 2 {
		select {
		case <-repo.calls:
		case <-time.After(2 * time.Second):
			t.Fatal("increment not applied")
		}
	}
	require.Equal(t, 2, repo.count("pdf-tools"))

	cancel()
	require.NoError(t, <-done)
}

func TestDownloadCounter_ScheduleNeverBlocks(t *testing.T) {
	t.Parallel()
	repo := newFakeIncrementer()
	d := NewDownloadCounter(repo, 2, zaptest.NewLogger(t))

	// no Run loop: the queue fills up and further increments are dropped
	require.True(t, d.Schedule("a"))
	require.True(t, d.Schedule("b"))
	require.False(t, d.Schedule("c"))
}

func TestDownloadCounter_DrainsOnShutdown(t *testing.T) {
	t.Parallel()
	repo := newFakeIncrementer()
	d := NewDownloadCounter(repo, 16, zaptest.NewLogger(t))
	for range 5 {
		require.True(t, d.Schedule("pdf-tools"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))
	require.Equal(t, 5, repo.count("pdf-tools"))
}

func TestDownloadCounter_ErrorsDoNotStopLoop(t *testing.T) {
	t.Parallel()
	repo := newFakeIncrementer()
	repo.err = errs.ErrNotFound
	d := NewDownloadCounter(repo, 0, zaptest.NewLogger(t))
	require.Equal(t, DefaultQueueSize, cap(d.queue))

	require.True(t, d.Schedule("gone"))
	require.True(t, d.Schedule("gone"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))
	require.Len(t, repo.calls, 2)

	repo.err = errors.New("db down")
	require.True(t, d.Schedule("x"))
	require.NoError(t, d.Run(ctx))
	require.Len(t, repo.calls, 3)
	require.Zero(t, repo.count("x"))
}
