package container

import (
	"sync"

	"github.com/Workiva/go-datastructures/queue"

	"github.com/srediag/refreshscope/api"
	"github.com/srediag/refreshscope/internal/logutil"
)

// shutdownSentinel tells the dispatch loop to exit after delivering
// everything queued before it.
type shutdownSentinel struct{}

// dispatcher delivers lifecycle events to listeners asynchronously but in
// publish order, through a single drain goroutine.
type dispatcher struct {
	q *queue.Queue

	mu        sync.RWMutex
	listeners []api.EventListener

	done      chan struct{}
	closeOnce sync.Once

	log *logutil.Logger
}

func newDispatcher(capHint int64) *dispatcher {
	d := &dispatcher{
		q:    queue.New(capHint),
		done: make(chan struct{}),
		log:  logutil.New("events", nil),
	}
	go d.loop()
	return d
}

func (d *dispatcher) subscribe(l api.EventListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

func (d *dispatcher) publish(e api.Event) {
	if d.q.Disposed() {
		return
	}
	if err := d.q.Put(e); err != nil {
		d.log.Warnf("dropping event %s: %v", e.Kind, err)
	}
}

func (d *dispatcher) loop() {
	for {
		items, err := d.q.Get(1)
		if err != nil {
			close(d.done)
			return
		}
		for _, item := range items {
			if _, ok := item.(shutdownSentinel); ok {
				close(d.done)
				return
			}
			e, ok := item.(api.Event)
			if !ok {
				continue
			}
			d.mu.RLock()
			listeners := make([]api.EventListener, len(d.listeners))
			copy(listeners, d.listeners)
			d.mu.RUnlock()
			for _, l := range listeners {
				l.OnEvent(e)
			}
		}
	}
}

// close flushes everything queued so far, stops the loop, and disposes the
// queue. Subsequent publishes are dropped.
func (d *dispatcher) close() {
	d.closeOnce.Do(func() {
		if err := d.q.Put(shutdownSentinel{}); err == nil {
			<-d.done
		}
		d.q.Dispose()
	})
}
