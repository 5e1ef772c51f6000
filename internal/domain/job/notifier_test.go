package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWaiter struct {
	calls chan model.JobType
	err   error
	sleep time.Duration
}

func (s *stubWaiter) WaitForNotification(ctx context.Context, jobType model.JobType) error {
	select {
	case s.calls <- jobType:
	default:
	}

	if s.sleep > 0 {
		timer := time.NewTimer(s.sleep)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	if s.err != nil {
		return s.err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return nil
}

func waitForWakeup(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected a wakeup")
	}
}

func waitForClose(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed")
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected channel to close")
	}
}

func TestNewNotifierRequiresWaiter(t *testing.T) {
	notifier, err := NewNotifier(NotifierOptions{})
	require.ErrorIs(t, err, ErrWaiterRequired)
	assert.Nil(t, notifier)
}

func TestNotifier_SubscribeReceivesWakeups(t *testing.T) {
	waiter := &stubWaiter{
		calls: make(chan model.JobType, 4),
		sleep: 5 * time.Millisecond,
	}
	notifier, err := NewNotifier(NotifierOptions{Waiter: waiter})
	require.NoError(t, err)
	defer notifier.StopAll()

	unsub, ch := notifier.Subscribe(model.JobTypeEmail)
	defer unsub()

	select {
	case jobType := <-waiter.calls:
		assert.Equal(t, model.JobTypeEmail, jobType)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected waiter to be invoked")
	}

	waitForWakeup(t, ch)
}

func TestNotifier_SharedStreamFansOut(t *testing.T) {
	waiter := &stubWaiter{
		calls: make(chan model.JobType, 8),
		sleep: 5 * time.Millisecond,
	}
	notifier, err := NewNotifier(NotifierOptions{Waiter: waiter})
	require.NoError(t, err)
	defer notifier.StopAll()

	unsub1, ch1 := notifier.Subscribe(model.JobTypeEmail)
	defer unsub1()
	unsub2, ch2 := notifier.Subscribe(model.JobTypeEmail)
	defer unsub2()

	waitForWakeup(t, ch1)
	waitForWakeup(t, ch2)
}

func TestNotifier_UnsubscribeClosesChannel(t *testing.T) {
	waiter := &stubWaiter{
		calls: make(chan model.JobType, 1),
		sleep: 5 * time.Millisecond,
	}
	notifier, err := NewNotifier(NotifierOptions{Waiter: waiter})
	require.NoError(t, err)
	defer notifier.StopAll()

	unsub, ch := notifier.Subscribe(model.JobTypeReminders)

	select {
	case <-waiter.calls:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected waiter to be invoked")
	}

	unsub()
	waitForClose(t, ch)

	// A second unsubscribe is a no-op.
	unsub()
}

func TestNotifier_UnsubscribeLeavesOtherSubscribers(t *testing.T) {
	waiter := &stubWaiter{
		calls: make(chan model.JobType, 8),
		sleep: 5 * time.Millisecond,
	}
	notifier, err := NewNotifier(NotifierOptions{Waiter: waiter})
	require.NoError(t, err)
	defer notifier.StopAll()

	unsub1, ch1 := notifier.Subscribe(model.JobTypeRollup)
	unsub2, ch2 := notifier.Subscribe(model.JobTypeRollup)
	defer unsub2()

	unsub1()
	waitForClose(t, ch1)

	// The stream keeps running for the remaining subscriber.
	for range 2 {
		waitForWakeup(t, ch2)
	}
}

func TestNotifier_KeepsListeningAfterWaitErrors(t *testing.T) {
	waiter := &stubWaiter{
		calls: make(chan model.JobType, 8),
		err:   errors.New("connection reset"),
	}
	notifier, err := NewNotifier(NotifierOptions{
		Waiter:  waiter,
		Backoff: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	defer notifier.StopAll()

	unsub, ch := notifier.Subscribe(model.JobTypeEmail)
	defer unsub()

	// The loop backs off and re-listens rather than dying on the error.
	for range 2 {
		select {
		case <-waiter.calls:
		case <-time.After(500 * time.Millisecond):
			t.Fatal("expected waiter to be re-invoked after an error")
		}
	}

	// Failed waits still nudge subscribers to poll.
	waitForWakeup(t, ch)
}

func TestNotifier_StopAllClosesChannels(t *testing.T) {
	waiter := &stubWaiter{
		calls: make(chan model.JobType, 2),
		err:   errors.New("boom"),
	}
	notifier, err := NewNotifier(NotifierOptions{Waiter: waiter})
	require.NoError(t, err)

	unsubEmail, chEmail := notifier.Subscribe(model.JobTypeEmail)
	unsubReminders, chReminders := notifier.Subscribe(model.JobTypeReminders)

	for range 2 {
		select {
		case <-waiter.calls:
		case <-time.After(500 * time.Millisecond):
			t.Fatal("expected waiter to be invoked")
		}
	}

	notifier.StopAll()

	waitForClose(t, chEmail)
	waitForClose(t, chReminders)

	// Unsubscribes stay safe after everything is gone.
	unsubEmail()
	unsubReminders()
}

func TestNotifier_SubscribeAfterStopAll(t *testing.T) {
	waiter := &stubWaiter{
		calls: make(chan model.JobType, 8),
		sleep: 5 * time.Millisecond,
	}
	notifier, err := NewNotifier(NotifierOptions{Waiter: waiter})
	require.NoError(t, err)

	unsub, ch := notifier.Subscribe(model.JobTypeEmail)
	notifier.StopAll()
	waitForClose(t, ch)
	unsub()

	// A fresh subscription starts a fresh stream.
	unsub2, ch2 := notifier.Subscribe(model.JobTypeEmail)
	defer unsub2()
	defer notifier.StopAll()

	waitForWakeup(t, ch2)
}
