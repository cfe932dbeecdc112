package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock only moves when Advance is called. AfterFunc callbacks run
// synchronously inside Advance in deadline order.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	deadline time.Time
	delay    time.Duration
	callback func()
	channel  chan time.Time
	interval time.Duration
	stopped  bool
	fired    bool
}

// Fake returns a FakeClock set to initial.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := &fakeWaiter{deadline: c.current.Add(d), delay: d, callback: f}
	c.waiters = append(c.waiters, w)
	return &fakeTimer{clock: c, waiter: w}
}

func (c *FakeClock) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	w := &fakeWaiter{deadline: c.current.Add(d), delay: d, channel: make(chan time.Time, 1), interval: d}
	c.waiters = append(c.waiters, w)
	return &fakeTicker{clock: c, waiter: w}
}

// Pending returns the original delays of timers that have neither fired
// nor been stopped, in deadline order. Tickers are not included.
func (c *FakeClock) Pending() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	active := c.activeLocked()
	out := make([]time.Duration, 0, len(active))
	for _, w := range active {
		if w.interval == 0 {
			out = append(out, w.delay)
		}
	}
	return out
}

// Advance moves time forward by d and fires everything now due.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	now := c.current
	var due []*fakeWaiter
	for _, w := range c.activeLocked() {
		if !w.deadline.After(now) {
			due = append(due, w)
		}
	}
	for _, w := range due {
		if w.interval > 0 {
			select {
			case w.channel <- now:
			default:
			}
			for !w.deadline.After(now) {
				w.deadline = w.deadline.Add(w.interval)
			}
			continue
		}
		w.fired = true
	}
	c.mu.Unlock()

	for _, w := range due {
		if w.callback != nil {
			w.callback()
		}
	}
}

func (c *FakeClock) activeLocked() []*fakeWaiter {
	kept := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.stopped && !w.fired {
			kept = append(kept, w)
		}
	}
	c.waiters = kept
	active := append([]*fakeWaiter(nil), kept...)
	sort.SliceStable(active, func(i, j int) bool { return active[i].deadline.Before(active[j].deadline) })
	return active
}

type fakeTimer struct {
	clock  *FakeClock
	waiter *fakeWaiter
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.waiter.stopped || t.waiter.fired {
		return false
	}
	t.waiter.stopped = true
	return true
}

type fakeTicker struct {
	clock  *FakeClock
	waiter *fakeWaiter
}

func (t *fakeTicker) C() <-chan time.Time { return t.waiter.channel }

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.waiter.stopped = true
}
