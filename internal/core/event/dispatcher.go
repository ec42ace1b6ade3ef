package event

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Dispatcher drains a Bus from its own goroutine. Every poll interval it
// delivers at most one batch. Subscribers therefore run off the simulation
// goroutine and must only touch the message or state they own.
type Dispatcher struct {
	bus      *Bus
	interval time.Duration
	batch    int
	log      *zap.Logger

	mu       sync.Mutex // serializes Start and Stop
	stopCh   chan struct{}
	stopOnce sync.Once
	stopped  bool
	wg       sync.WaitGroup
	running  atomic.Bool
}

// NewDispatcher delivers up to batch messages from bus every interval.
func NewDispatcher(bus *Bus, interval time.Duration, batch int, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		bus:      bus,
		interval: interval,
		batch:    batch,
		log:      log,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the polling goroutine. Calling it while running, or after
// Stop, is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		d.log.Warn("message dispatcher already stopped, not restarting")
		return
	}
	if d.running.CompareAndSwap(false, true) {
		d.wg.Add(1)
		go d.loop()
		d.log.Debug("message dispatcher started",
			zap.Duration("interval", d.interval),
			zap.Int("batch", d.batch),
		)
	}
}

// Stop signals the goroutine and waits for it to exit. Messages still queued
// stay on the bus undelivered. A stopped Dispatcher cannot be restarted.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.stopOnce.Do(func() { close(d.stopCh) })
	if d.running.CompareAndSwap(true, false) {
		d.wg.Wait()
		d.log.Debug("message dispatcher stopped", zap.Int("undelivered", d.bus.Len()))
	}
}

func (d *Dispatcher) Running() bool { return d.running.Load() }

func (d *Dispatcher) loop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.bus.DispatchBatch(d.batch)
		}
	}
}
