// Package job holds queue-side domain logic shared by the job service
// and its workers: lease resolution and the notification fan-out that
// wakes idle workers when rows arrive.
package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/popmap/popmap-api/internal/domain/model"
)

// ErrWaiterRequired indicates a notifier cannot be constructed without a waiter.
var ErrWaiterRequired = errors.New("notifier waiter is required")

// Waiter blocks until a job of the given type may be available. The
// data layer implements it over Postgres LISTEN/NOTIFY.
type Waiter interface {
	WaitForNotification(ctx context.Context, jobType model.JobType) error
}

// Notifier fans one wakeup stream per job type out to any number of
// subscribed workers.
type Notifier interface {
	Subscribe(jobType model.JobType) (func(), <-chan struct{})
	StopAll()
}

// NotifierOptions configure the behaviour of the default notifier implementation.
type NotifierOptions struct {
	Waiter Waiter
	// WaitWindow bounds each wait on the Waiter. Returning at least
	// this often turns the broadcast into a periodic poll nudge even
	// when no notification arrives.
	WaitWindow time.Duration
	// Backoff is the pause after a failed wait before listening again.
	Backoff time.Duration
}

// DefaultNotifier is the default implementation of Notifier. It runs
// one listen loop per job type with at least one subscriber, shared by
// all subscribers of that type, and tears the loop down when the last
// one leaves.
type DefaultNotifier struct {
	waiter     Waiter
	waitWindow time.Duration
	backoff    time.Duration

	mu      sync.Mutex
	streams map[model.JobType]*typeStream
}

// typeStream is the listen loop and subscriber set for one job type.
type typeStream struct {
	cancel context.CancelFunc
	subs   map[chan struct{}]struct{}
}

// NewNotifier constructs the default notifier implementation.
func NewNotifier(opts NotifierOptions) (*DefaultNotifier, error) {
	if opts.Waiter == nil {
		return nil, ErrWaiterRequired
	}

	waitWindow := opts.WaitWindow
	if waitWindow <= 0 {
		waitWindow = time.Minute
	}

	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}

	return &DefaultNotifier{
		waiter:     opts.Waiter,
		waitWindow: waitWindow,
		backoff:    backoff,
		streams:    make(map[model.JobType]*typeStream),
	}, nil
}

// Subscribe registers for wakeups on jobType. The channel holds at most
// one pending wakeup; the returned function unsubscribes and closes it,
// and is safe to call more than once.
func (n *DefaultNotifier) Subscribe(jobType model.JobType) (func(), <-chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	stream, ok := n.streams[jobType]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		stream = &typeStream{
			cancel: cancel,
			subs:   make(map[chan struct{}]struct{}),
		}
		n.streams[jobType] = stream
		go n.listenLoop(ctx, jobType)
	}

	ch := make(chan struct{}, 1)
	stream.subs[ch] = struct{}{}

	unsub := func() {
		n.mu.Lock()
		defer n.mu.Unlock()

		stream, ok := n.streams[jobType]
		if !ok {
			return
		}
		if _, ok := stream.subs[ch]; !ok {
			return
		}

		delete(stream.subs, ch)
		drainAndClose(ch)
		if len(stream.subs) == 0 {
			stream.cancel()
			delete(n.streams, jobType)
		}
	}

	return unsub, ch
}

// StopAll cancels every listen loop and closes every subscriber
// channel.
func (n *DefaultNotifier) StopAll() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for jobType, stream := range n.streams {
		stream.cancel()
		for ch := range stream.subs {
			drainAndClose(ch)
		}
		delete(n.streams, jobType)
	}
}

func (n *DefaultNotifier) listenLoop(ctx context.Context, jobType model.JobType) {
	for ctx.Err() == nil {
		waitCtx, cancel := context.WithTimeout(ctx, n.waitWindow)
		err := n.waiter.WaitForNotification(waitCtx, jobType)
		cancel()

		// Broadcast even when the wait timed out or failed. A wakeup is
		// a hint to poll, and spurious ones are cheap against a one-slot
		// channel.
		n.broadcast(jobType)

		if err != nil && ctx.Err() == nil {
			timer := time.NewTimer(n.backoff)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return
			case <-timer.C:
			}
		}
	}
}

func (n *DefaultNotifier) broadcast(jobType model.JobType) {
	n.mu.Lock()
	defer n.mu.Unlock()

	stream, ok := n.streams[jobType]
	if !ok {
		return
	}
	for ch := range stream.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// drainAndClose removes any buffered wakeup before closing so receivers
// observe a closed channel immediately.
func drainAndClose(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			close(ch)
			return
		}
	}
}

var _ Notifier = (*DefaultNotifier)(nil)
