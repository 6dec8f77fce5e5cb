// Package worker runs background jobs that must not hold up request handling.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/skillmarket/internal/errs"
)

const (
	DefaultQueueSize = 1024
	opTimeout        = 5 * time.Second
)

// Incrementer bumps the download counter of an item.
type Incrementer interface {
	IncrementDownloads(ctx context.Context, slug string) error
}

// DownloadCounter applies download-count increments off the request path.
// Schedule never blocks; Run drains the queue until its context is done.
type DownloadCounter struct {
	repo  Incrementer
	log   *zap.Logger
	queue chan string
}

// NewDownloadCounter creates a counter with a bounded queue. size<=0 selects DefaultQueueSize.
func NewDownloadCounter(repo Incrementer, size int, log *zap.Logger) *DownloadCounter {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DownloadCounter{repo: repo, log: log, queue: make(chan string, size)}
}

// Schedule queues one increment for slug. It reports false and drops the
// increment when the queue is full.
func (d *DownloadCounter) Schedule(slug string) bool {
	select {
	case d.queue <- slug:
		return true
	default:
		d.log.Warn("download queue full, dropping increment", zap.String("slug", slug))
		return false
	}
}

// Run processes increments until ctx is cancelled, then applies whatever is
// still queued. Each increment runs under its own deadline, detached from ctx.
// It always returns nil.
func (d *DownloadCounter) Run(ctx context.Context) error {
	for {
		select {
		case slug := <-d.queue:
			d.apply(slug)
		case <-ctx.Done():
			d.drain()
			return nil
		}
	}
}

func (d *DownloadCounter) drain() {
	for {
		select {
		case slug := <-d.queue:
			d.apply(slug)
		default:
			return
		}
	}
}

func (d *DownloadCounter) apply(slug string) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	err := d.repo.IncrementDownloads(ctx, slug)
	switch {
	case err == nil:
	case errors.Is(err, errs.ErrNotFound):
		d.log.Debug("download increment for missing item", zap.String("slug", slug))
	default:
		d.log.Error("increment downloads", zap.String("slug", slug), zap.Error(err))
	}
}
