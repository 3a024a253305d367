package courier

import (
	"sync"
	"time"
)

// Ticker delivers periodic ticks.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Scheduler creates the tickers that drive periodic flushing. Inject a
// ManualScheduler to control time in tests.
type Scheduler interface {
	NewTicker(d time.Duration) Ticker
}

type systemScheduler struct{}

type systemTicker struct {
	t *time.Ticker
}

// SystemScheduler returns a Scheduler backed by time.Ticker.
func SystemScheduler() Scheduler {
	return systemScheduler{}
}

func (systemScheduler) NewTicker(d time.Duration) Ticker {
	return systemTicker{t: time.NewTicker(d)}
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

// ManualScheduler is a Scheduler whose tickers fire only when Tick is called.
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

type manualTicker struct {
	interval time.Duration
	ch       chan time.Time
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewManualScheduler creates a ManualScheduler starting at the current wall-clock time.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{now: time.Now()}
}

// NewTicker implements Scheduler.
func (m *ManualScheduler) NewTicker(d time.Duration) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTicker{
		interval: d,
		ch:       make(chan time.Time),
		stopped:  make(chan struct{}),
	}
	m.tickers = append(m.tickers, t)
	return t
}

// Tick advances virtual time by each ticker's interval and fires every live
// ticker. It blocks until each tick has been received, so the receiver has
// started handling it when Tick returns.
func (m *ManualScheduler) Tick() {
	m.mu.Lock()
	tickers := append([]*manualTicker(nil), m.tickers...)
	m.mu.Unlock()

	for _, t := range tickers {
		m.mu.Lock()
		m.now = m.now.Add(t.interval)
		now := m.now
		m.mu.Unlock()
		select {
		case t.ch <- now:
		case <-t.stopped:
		}
	}
}

// Tickers returns the number of tickers created and not yet stopped.
func (m *ManualScheduler) Tickers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tickers {
		select {
		case <-t.stopped:
		default:
			n++
		}
	}
	return n
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.stopOnce.Do(func() { close(t.stopped) })
}
