package interceptor

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"
)

// ClientSlot holds an *http.Client that other code fills in later.
type ClientSlot struct {
	mu     sync.Mutex
	client *http.Client
}

// Set stores c in the slot.
func (s *ClientSlot) Set(c *http.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = c
}

// Get returns the client in the slot, or nil.
func (s *ClientSlot) Get() *http.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// SlotWatcher polls a ClientSlot and registers the client once it appears.
type SlotWatcher struct {
	i    *Interceptor
	slot *ClientSlot
	cron *cron.Cron

	polls      atomic.Int32
	registered atomic.Bool
	done       chan struct{}
	stopOnce   sync.Once
}

// WatchClientSlot registers the slot's client as soon as it is set. The slot
// is checked immediately, then on a constant-delay schedule of PollInterval
// up to PollAttempts times. The watcher gives up silently when attempts run
// out or ctx is cancelled. Polling is disabled when PollAttempts is not
// positive; only the immediate check runs.
func (i *Interceptor) WatchClientSlot(ctx context.Context, slot *ClientSlot) (*SlotWatcher, error) {
	if slot == nil {
		return nil, errors.New("interceptor: slot is nil")
	}

	w := &SlotWatcher{
		i:    i,
		slot: slot,
		cron: cron.New(),
		done: make(chan struct{}),
	}

	if w.check() || i.attempts <= 0 {
		w.finish()
		return w, nil
	}

	w.cron.Schedule(cron.Every(i.interval), cron.FuncJob(w.poll))
	w.cron.Start()
	i.logger.Debug("watching client slot", "attempts", i.attempts, "interval", i.interval)

	go func() {
		select {
		case <-ctx.Done():
			w.Stop()
		case <-w.done:
		}
	}()
	return w, nil
}

func (w *SlotWatcher) poll() {
	select {
	case <-w.done:
		return
	default:
	}
	n := int(w.polls.Add(1))
	if w.check() {
		go w.Stop()
		return
	}
	if n >= w.i.attempts {
		w.i.logger.Debug("client slot still empty, giving up", "attempts", n)
		go w.Stop()
	}
}

func (w *SlotWatcher) check() bool {
	c := w.slot.Get()
	if c == nil {
		return false
	}
	if err := w.i.RegisterHTTPClient(c); err != nil {
		w.i.logger.Warn("failed to register client from slot", "error", err)
		return false
	}
	w.registered.Store(true)
	return true
}

func (w *SlotWatcher) finish() {
	w.stopOnce.Do(func() { close(w.done) })
}

// Stop ends polling and waits for a running check to finish. It is safe to
// call more than once.
func (w *SlotWatcher) Stop() {
	select {
	case <-w.done:
		return
	default:
	}
	w.finish()
	<-w.cron.Stop().Done()
}

// Done is closed when the watcher has stopped.
func (w *SlotWatcher) Done() <-chan struct{} {
	return w.done
}

// Registered reports whether the slot's client was registered.
func (w *SlotWatcher) Registered() bool {
	return w.registered.Load()
}

// Polls returns the number of scheduled checks that have run.
func (w *SlotWatcher) Polls() int {
	return int(w.polls.Load())
}
