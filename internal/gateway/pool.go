package gateway

import (
	"sync"
	"time"

	"github.com/Asadp3406/bus-tracking/internal/metrics"
	"github.com/Asadp3406/bus-tracking/pkg/mqtt/topic"
)

// Job is one queued telemetry message, keyed by the vehicle it concerns.
type Job struct {
	Ref     topic.Ref
	Payload []byte
}

type vehicleQueue struct {
	mu     sync.Mutex
	items  []Job
	notify chan struct{}
}

// workerPool runs one goroutine per active vehicle so samples for one
// vehicle are processed strictly in arrival order while vehicles proceed
// independently. Queues are bounded with a drop-oldest policy: under
// pressure only the most recent positions matter. Idle workers retire.
type workerPool struct {
	size        int
	idleTimeout time.Duration
	process     func(vehicleID string, j Job)

	mu        sync.Mutex
	byVehicle map[string]*vehicleQueue
	stopped   bool

	stop chan struct{}
	wg   sync.WaitGroup
}

func newWorkerPool(size int, idleTimeout time.Duration, process func(vehicleID string, j Job)) *workerPool {
	return &workerPool{
		size:        size,
		idleTimeout: idleTimeout,
		process:     process,
		byVehicle:   make(map[string]*vehicleQueue),
		stop:        make(chan struct{}),
	}
}

// Enqueue adds a job to the vehicle's queue, evicting the oldest entry when
// full. It never blocks. Returns false when the oldest entry was dropped.
func (p *workerPool) Enqueue(vehicleID string, j Job) bool {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return false
	}
	q, ok := p.byVehicle[vehicleID]
	if !ok {
		q = &vehicleQueue{notify: make(chan struct{}, 1)}
		p.byVehicle[vehicleID] = q
		p.wg.Add(1)
		go p.run(vehicleID, q)
	}

	q.mu.Lock()
	kept := true
	if len(q.items) >= p.size {
		q.items = q.items[1:]
		kept = false
		metrics.MessagesRejected.WithLabelValues("queue_full").Inc()
		metrics.QueueDepth.Dec()
	}
	q.items = append(q.items, j)
	q.mu.Unlock()
	p.mu.Unlock()

	metrics.QueueDepth.Inc()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return kept
}

func (p *workerPool) run(vehicleID string, q *vehicleQueue) {
	defer p.wg.Done()

	idle := time.NewTimer(p.idleTimeout)
	defer idle.Stop()

	for {
		for {
			q.mu.Lock()
			if len(q.items) == 0 {
				q.mu.Unlock()
				break
			}
			j := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			metrics.QueueDepth.Dec()
			p.process(vehicleID, j)
		}

		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(p.idleTimeout)

		select {
		case <-p.stop:
			return
		case <-q.notify:
		case <-idle.C:
			p.mu.Lock()
			q.mu.Lock()
			if len(q.items) == 0 {
				delete(p.byVehicle, vehicleID)
				q.mu.Unlock()
				p.mu.Unlock()
				return
			}
			q.mu.Unlock()
			p.mu.Unlock()
		}
	}
}

// ActiveWorkers returns the number of live per-vehicle workers.
func (p *workerPool) ActiveWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byVehicle)
}

// Close stops accepting jobs and waits for workers to finish their current
// item. Queued items are abandoned.
func (p *workerPool) Close() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.stop)
	p.wg.Wait()
}
