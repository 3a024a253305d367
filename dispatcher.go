package courier

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"golang.org/x/sync/semaphore"

	"github.com/Tap30/courier-go/adapters"
)

const (
	inboxCapacity = 100
	maxBackoff    = 30 * time.Second
)

// QueueState is a point-in-time view of the Dispatcher's queue and counters.
type QueueState struct {
	Pending  []Event
	InFlight []Event
	// Sending is the number of batches whose outcome has not arrived yet.
	Sending   int
	Evicted   int
	Delivered int
	Discarded int
	Retried   int
}

type dispatcherMessage interface{}

type enqueueMessage struct {
	event Event
}

type flushMessage struct{}

type drainMessage struct {
	replyCh chan QueueState
}

type outcomeMessage struct {
	batch   []Event
	outcome Outcome
	token   any
}

type stateMessage struct {
	replyCh chan QueueState
}

type saveFlagsMessage struct {
	flags ldvalue.ValueMap
}

type loadFlagsMessage struct {
	replyCh chan ldvalue.ValueMap
}

type stopMessage struct{}

// Dispatcher is the Event Queue component. A single goroutine owns the queue
// and performs every storage operation; other goroutines talk to it through the
// inbox. Network sends run on their own goroutines and report back through the
// inbox, so the loop never waits on the network.
type Dispatcher struct {
	config    DispatcherConfig
	sender    Sender
	store     *snapshotStore
	logger    LoggerAdapter
	lifecycle LifecycleExtension
	scheduler Scheduler

	inbox       chan dispatcherMessage
	done        chan struct{}
	sem         *semaphore.Weighted
	sendCtx     context.Context
	cancelSends context.CancelFunc

	mu      sync.Mutex
	started bool
	closed  bool

	// owned by the loop goroutine
	queue       *Queue
	counters    QueueState
	outstanding int
	idleWaiters []chan QueueState
	stopping    bool
	ticker      Ticker
	final       QueueState
}

// NewDispatcher creates a Dispatcher. Zero fields of config take the package
// defaults. Call Start before enqueueing.
func NewDispatcher(config DispatcherConfig, sender Sender, storageAdapter StorageAdapter) *Dispatcher {
	config = config.withDefaults()
	logger := adapters.NewLoggersAdapter(adapters.LogLevelWarn)
	sendCtx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		config:      config,
		sender:      sender,
		store:       newSnapshotStore(storageAdapter, logger),
		logger:      logger,
		lifecycle:   adapters.NoOpLifecycleExtension{},
		scheduler:   SystemScheduler(),
		inbox:       make(chan dispatcherMessage, inboxCapacity),
		done:        make(chan struct{}),
		sem:         semaphore.NewWeighted(int64(config.MaxConcurrentSends)),
		sendCtx:     sendCtx,
		cancelSends: cancel,
		queue:       NewQueue(),
	}
}

// SetLoggerAdapter sets a custom logger adapter. It must be called before Start.
func (d *Dispatcher) SetLoggerAdapter(logger LoggerAdapter) {
	d.logger = logger
	d.store.logger = logger
}

// SetLifecycleExtension sets the collaborator that keeps the process alive while
// a batch is being sent. It must be called before Start.
func (d *Dispatcher) SetLifecycleExtension(ext LifecycleExtension) {
	if ext == nil {
		ext = adapters.NoOpLifecycleExtension{}
	}
	d.lifecycle = ext
}

// SetScheduler replaces the system scheduler. It must be called before Start.
func (d *Dispatcher) SetScheduler(s Scheduler) {
	if s == nil {
		s = SystemScheduler()
	}
	d.scheduler = s
}

// Start loads the persisted queue and starts the periodic flush timer.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.started {
		return nil
	}
	d.started = true
	go d.run()
	return nil
}

// Enqueue hands event to the loop without waiting for it to be stored. An event
// accepted here reaches the loop before the stop message posted by Close.
func (d *Dispatcher) Enqueue(event Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if !d.started {
		// nothing drains the inbox yet and Start needs d.mu
		select {
		case d.inbox <- enqueueMessage{event: event}:
			return nil
		default:
			return ErrNotInitialized
		}
	}
	if !d.post(enqueueMessage{event: event}) {
		return ErrClosed
	}
	return nil
}

// Flush triggers sending one batch of the oldest pending events. It does not
// wait for the outcome.
func (d *Dispatcher) Flush() {
	d.post(flushMessage{})
}

// FlushAll sends pending events until none are left, waiting for each round of
// outcomes. It gives up after FlushAllMaxAttempts rounds or FlushAllTimeout,
// returning ErrFlushIncomplete, and backs off exponentially between rounds.
func (d *Dispatcher) FlushAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.config.FlushAllTimeout)
	defer cancel()

	pending := -1
	rounds := 0
	for attempt := 0; attempt < d.config.FlushAllMaxAttempts; attempt++ {
		if attempt > 0 {
			sleepDuration := d.backoff(attempt - 1)
			d.logger.Debug("%d events still pending, retrying in %v", pending, sleepDuration)
			if !sleepContext(ctx, sleepDuration) {
				break
			}
		}
		rounds++

		replyCh := make(chan QueueState, 1)
		if !d.post(drainMessage{replyCh: replyCh}) {
			return ErrClosed
		}
		select {
		case state := <-replyCh:
			pending = len(state.Pending)
		case <-ctx.Done():
		case <-d.done:
			return ErrClosed
		}
		if pending == 0 {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
	}

	d.logger.Warn("Flush all gave up after %d attempts", rounds)
	if pending < 0 {
		return fmt.Errorf("%w: %v", ErrFlushIncomplete, ctx.Err())
	}
	return fmt.Errorf("%w: %d events pending", ErrFlushIncomplete, pending)
}

// State returns the current queue contents and counters. After Close it returns
// the final state.
func (d *Dispatcher) State() QueueState {
	d.mu.Lock()
	idle := !d.started && !d.closed
	d.mu.Unlock()
	if idle {
		return QueueState{}
	}

	replyCh := make(chan QueueState, 1)
	if d.post(stateMessage{replyCh: replyCh}) {
		select {
		case state := <-replyCh:
			return state
		case <-d.done:
		}
	}
	<-d.done
	return d.final
}

// SaveFlags persists the flag cache on the loop goroutine.
func (d *Dispatcher) SaveFlags(flags ldvalue.ValueMap) {
	d.post(saveFlagsMessage{flags: flags})
}

// LoadFlags reads the persisted flag cache on the loop goroutine.
func (d *Dispatcher) LoadFlags() ldvalue.ValueMap {
	replyCh := make(chan ldvalue.ValueMap, 1)
	if !d.post(loadFlagsMessage{replyCh: replyCh}) {
		return ldvalue.ValueMap{}
	}
	select {
	case flags := <-replyCh:
		return flags
	case <-d.done:
		return ldvalue.ValueMap{}
	}
}

// Close stops the timer, waits for outstanding sends and writes a final
// snapshot. If ctx ends first, outstanding sends are cancelled; their batches
// return to pending and are kept in the snapshot. Storage adapters that
// implement io.Closer are closed.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return nil
	}
	d.closed = true
	started := d.started
	d.mu.Unlock()

	if !started {
		d.cancelSends()
		d.store.close()
		close(d.done)
		return nil
	}

	d.post(stopMessage{})
	select {
	case <-d.done:
		d.cancelSends()
		return nil
	case <-ctx.Done():
		d.logger.Warn("Close deadline reached, cancelling outstanding sends")
		d.cancelSends()
		<-d.done
		return ctx.Err()
	}
}

func (d *Dispatcher) post(msg dispatcherMessage) bool {
	select {
	case <-d.done:
		return false
	default:
	}
	select {
	case d.inbox <- msg:
		// both cases may have been ready
		select {
		case <-d.done:
			return false
		default:
			return true
		}
	case <-d.done:
		return false
	}
}

func (d *Dispatcher) run() {
	d.queue.LoadFromSlice(d.store.loadQueue())
	if n := d.queue.PendingLen(); n > 0 {
		d.logger.Debug("Restored %d events from snapshot", n)
	}
	d.ticker = d.scheduler.NewTicker(d.config.FlushInterval)

	for {
		select {
		case <-d.ticker.C():
			if !d.stopping {
				d.flushBatch()
			}
		case msg := <-d.inbox:
			d.handle(msg)
		}
		if d.stopping && d.outstanding == 0 {
			d.finish()
			return
		}
	}
}

func (d *Dispatcher) handle(msg dispatcherMessage) {
	switch m := msg.(type) {
	case enqueueMessage:
		d.enqueue(m.event)
	case flushMessage:
		if !d.stopping {
			d.flushBatch()
		}
	case drainMessage:
		for !d.queue.IsEmpty() {
			d.flushBatch()
		}
		if d.outstanding == 0 {
			m.replyCh <- d.snapshotState()
		} else {
			d.idleWaiters = append(d.idleWaiters, m.replyCh)
		}
	case outcomeMessage:
		d.handleOutcome(m)
	case stateMessage:
		m.replyCh <- d.snapshotState()
	case saveFlagsMessage:
		d.store.saveFlags(m.flags)
	case loadFlagsMessage:
		m.replyCh <- d.store.loadFlags()
	case stopMessage:
		d.stopping = true
		d.ticker.Stop()
	}
}

func (d *Dispatcher) enqueue(event Event) {
	if err := adapters.CheckEncodable(event); err != nil {
		d.counters.Discarded++
		d.logger.Error("Dropping event %s (%s) that cannot be encoded: %v", event.MessageID, event.Name, err)
		return
	}
	if !d.queue.Insert(event) {
		d.logger.Debug("Ignoring duplicate event %s", event.MessageID)
		return
	}
	d.evict()
	d.persist()
	if !d.stopping && d.queue.PendingLen() >= d.config.FlushSize {
		d.flushBatch()
	}
}

func (d *Dispatcher) evict() {
	evicted := d.queue.Evict(d.config.MaxQueueSize)
	if len(evicted) == 0 {
		return
	}
	d.counters.Evicted += len(evicted)
	d.logger.Warn("Queue full (max %d), evicted %d oldest events", d.config.MaxQueueSize, len(evicted))
}

func (d *Dispatcher) flushBatch() {
	batch := d.queue.TakeBatch(d.config.MaxBatchSize)
	if len(batch) == 0 {
		return
	}
	d.persist()
	token := d.lifecycle.Begin()
	d.outstanding++
	d.logger.Debug("Sending batch of %d events", len(batch))

	go func() {
		outcome := OutcomeRetry
		if err := d.sem.Acquire(d.sendCtx, 1); err == nil {
			outcome = d.sender.Send(d.sendCtx, batch)
			d.sem.Release(1)
		}
		d.inbox <- outcomeMessage{batch: batch, outcome: outcome, token: token}
	}()
}

func (d *Dispatcher) handleOutcome(m outcomeMessage) {
	defer d.lifecycle.End(m.token)
	d.outstanding--

	switch m.outcome {
	case OutcomeSucceeded:
		d.queue.Complete(m.batch)
		d.counters.Delivered += len(m.batch)
	case OutcomeDiscard:
		d.queue.Complete(m.batch)
		d.counters.Discarded += len(m.batch)
	default:
		d.queue.Requeue(m.batch)
		d.counters.Retried += len(m.batch)
		d.evict()
	}
	d.persist()

	if d.outstanding == 0 && len(d.idleWaiters) > 0 {
		state := d.snapshotState()
		for _, ch := range d.idleWaiters {
			ch <- state
		}
		d.idleWaiters = nil
	}
}

func (d *Dispatcher) persist() {
	d.store.saveQueue(d.queue.ToSlice())
}

func (d *Dispatcher) snapshotState() QueueState {
	state := d.counters
	state.Pending = d.queue.Pending()
	state.InFlight = d.queue.InFlight()
	state.Sending = d.outstanding
	return state
}

func (d *Dispatcher) finish() {
	d.persist()
	d.final = d.snapshotState()
	for _, ch := range d.idleWaiters {
		ch <- d.final
	}
	d.idleWaiters = nil
	d.store.close()
	close(d.done)
}

func (d *Dispatcher) backoff(attempt int) time.Duration {
	base := d.config.RetryBackoff
	backoff := maxBackoff
	if attempt < 31 && base<<attempt < maxBackoff {
		backoff = base << attempt
	}
	jitter := time.Duration(rand.Int63n(int64(base)))
	return backoff + jitter
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
