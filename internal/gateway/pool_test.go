package gateway

import (
	"sync"
	"testing"
	"time"

	"github.com/Asadp3406/bus-tracking/pkg/mqtt/topic"
)

type jobSink struct {
	mu      sync.Mutex
	jobs    map[string][]Job
	started chan struct{}
	gate    chan struct{}
}

func newJobSink() *jobSink {
	return &jobSink{jobs: make(map[string][]Job)}
}

func (s *jobSink) process(vehicleID string, j Job) {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[vehicleID] = append(s.jobs[vehicleID], j)
}

func (s *jobSink) got(vehicleID string) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, len(s.jobs[vehicleID]))
	copy(out, s.jobs[vehicleID])
	return out
}

func locationJob(payload string) Job {
	return Job{
		Ref:     topic.Ref{Domain: topic.DomainVehicle, EntityID: "bus-1", Kind: topic.KindLocation},
		Payload: []byte(payload),
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestPoolPreservesPerVehicleOrder(t *testing.T) {
	sink := newJobSink()
	pool := newWorkerPool(64, time.Minute, sink.process)
	defer pool.Close()

	for _, p := range []string{"1", "2", "3", "4", "5"} {
		pool.Enqueue("bus-1", locationJob(p))
	}

	waitUntil(t, func() bool { return len(sink.got("bus-1")) == 5 })
	for i, j := range sink.got("bus-1") {
		if string(j.Payload) != string(rune('1'+i)) {
			t.Fatalf("job %d payload = %s, out of order", i, j.Payload)
		}
	}
}

func TestPoolDropsOldestWhenFull(t *testing.T) {
	sink := newJobSink()
	sink.started = make(chan struct{}, 8)
	sink.gate = make(chan struct{})
	pool := newWorkerPool(2, time.Minute, sink.process)
	defer pool.Close()

	// First job occupies the worker; the queue holds at most 2 more.
	pool.Enqueue("bus-1", locationJob("0"))
	<-sink.started
	pool.Enqueue("bus-1", locationJob("1"))
	pool.Enqueue("bus-1", locationJob("2"))
	if kept := pool.Enqueue("bus-1", locationJob("3")); kept {
		t.Error("enqueue into a full queue reported no drop")
	}

	close(sink.gate)
	waitUntil(t, func() bool { return len(sink.got("bus-1")) == 3 })

	got := sink.got("bus-1")
	// "1" was the oldest queued entry and must be the one dropped.
	want := []string{"0", "2", "3"}
	for i, j := range got {
		if string(j.Payload) != want[i] {
			t.Fatalf("delivered %v, want %v", payloads(got), want)
		}
	}
}

func payloads(jobs []Job) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = string(j.Payload)
	}
	return out
}

func TestPoolVehiclesIndependent(t *testing.T) {
	sink := newJobSink()
	pool := newWorkerPool(8, time.Minute, sink.process)
	defer pool.Close()

	pool.Enqueue("bus-1", locationJob("a"))
	pool.Enqueue("bus-2", locationJob("b"))

	waitUntil(t, func() bool {
		return len(sink.got("bus-1")) == 1 && len(sink.got("bus-2")) == 1
	})
	if pool.ActiveWorkers() != 2 {
		t.Errorf("active workers = %d, want 2", pool.ActiveWorkers())
	}
}

func TestPoolIdleRetirement(t *testing.T) {
	sink := newJobSink()
	pool := newWorkerPool(8, 50*time.Millisecond, sink.process)
	defer pool.Close()

	pool.Enqueue("bus-1", locationJob("a"))
	waitUntil(t, func() bool { return pool.ActiveWorkers() == 0 })

	// The vehicle coming back gets a fresh worker.
	pool.Enqueue("bus-1", locationJob("b"))
	waitUntil(t, func() bool { return len(sink.got("bus-1")) == 2 })
}

func TestPoolCloseRejectsNewJobs(t *testing.T) {
	sink := newJobSink()
	pool := newWorkerPool(8, time.Minute, sink.process)
	pool.Close()

	if kept := pool.Enqueue("bus-1", locationJob("a")); kept {
		t.Error("enqueue after close reported success")
	}
}
