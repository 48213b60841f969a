package subscription

import (
	"strconv"
	"sync"
	"testing"
)

type fakeSub struct {
	id     string
	mu     sync.Mutex
	events []any
}

func (f *fakeSub) ID() string { return f.id }

func (f *fakeSub) Send(event any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func TestSubscribeAndSnapshot(t *testing.T) {
	r := NewRegistry()
	a := &fakeSub{id: "a"}
	b := &fakeSub{id: "b"}

	r.Subscribe(a, KindVehicle, "bus-1")
	r.Subscribe(b, KindVehicle, "bus-1")
	r.Subscribe(a, KindRoute, "route-12")

	if got := r.Subscribers(KindVehicle, "bus-1"); len(got) != 2 {
		t.Fatalf("bus-1 subscribers = %d, want 2", len(got))
	}
	if got := r.Subscribers(KindRoute, "route-12"); len(got) != 1 || got[0].ID() != "a" {
		t.Fatalf("route-12 subscribers = %+v, want only a", got)
	}
	if got := r.Subscribers(KindVehicle, "bus-2"); got != nil {
		t.Errorf("bus-2 subscribers = %+v, want nil", got)
	}
	if r.TopicCount() != 2 || r.SubscriberCount() != 2 {
		t.Errorf("counts = %d topics / %d subs, want 2/2", r.TopicCount(), r.SubscriberCount())
	}
}

func TestResubscribeReplaces(t *testing.T) {
	r := NewRegistry()
	a := &fakeSub{id: "a"}

	r.Subscribe(a, KindStop, "stop-7")
	r.Subscribe(a, KindStop, "stop-7")

	if got := r.Subscribers(KindStop, "stop-7"); len(got) != 1 {
		t.Errorf("duplicate subscribe produced %d entries", len(got))
	}
}

func TestUnsubscribe(t *testing.T) {
	r := NewRegistry()
	a := &fakeSub{id: "a"}

	r.Subscribe(a, KindVehicle, "bus-1")
	r.Unsubscribe("a", KindVehicle, "bus-1")

	if got := r.Subscribers(KindVehicle, "bus-1"); got != nil {
		t.Errorf("subscribers after unsubscribe = %+v", got)
	}
	if r.TopicCount() != 0 || r.SubscriberCount() != 0 {
		t.Error("registry not empty after last unsubscribe")
	}

	// Unsubscribing something never registered is a no-op.
	r.Unsubscribe("ghost", KindAdmin, "ops")
}

func TestDropSubscriber(t *testing.T) {
	r := NewRegistry()
	a := &fakeSub{id: "a"}
	b := &fakeSub{id: "b"}

	r.Subscribe(a, KindVehicle, "bus-1")
	r.Subscribe(a, KindRoute, "route-12")
	r.Subscribe(a, KindAdmin, "ops")
	r.Subscribe(b, KindVehicle, "bus-1")

	r.DropSubscriber("a")

	if got := r.Subscribers(KindVehicle, "bus-1"); len(got) != 1 || got[0].ID() != "b" {
		t.Errorf("bus-1 subscribers after drop = %+v, want only b", got)
	}
	if got := r.Subscribers(KindRoute, "route-12"); got != nil {
		t.Errorf("route-12 subscribers after drop = %+v", got)
	}
	if r.SubscriberCount() != 1 {
		t.Errorf("subscriber count = %d, want 1", r.SubscriberCount())
	}
}

func TestSnapshotIsolation(t *testing.T) {
	r := NewRegistry()
	a := &fakeSub{id: "a"}
	r.Subscribe(a, KindVehicle, "bus-1")

	snap := r.Subscribers(KindVehicle, "bus-1")
	r.Subscribe(&fakeSub{id: "late"}, KindVehicle, "bus-1")

	if len(snap) != 1 {
		t.Errorf("snapshot grew after later subscribe: %d entries", len(snap))
	}
}

func TestConcurrentRegistrationChurn(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := "sub-" + strconv.Itoa(n)
			sub := &fakeSub{id: id}
			key := "bus-" + strconv.Itoa(n%8)
			for j := 0; j < 50; j++ {
				r.Subscribe(sub, KindVehicle, key)
				r.Subscribers(KindVehicle, key)
				r.Unsubscribe(id, KindVehicle, key)
			}
			r.Subscribe(sub, KindRoute, "route-"+strconv.Itoa(n%4))
			r.DropSubscriber(id)
		}(i)
	}
	wg.Wait()

	if r.TopicCount() != 0 || r.SubscriberCount() != 0 {
		t.Errorf("counts after churn = %d topics / %d subs, want 0/0",
			r.TopicCount(), r.SubscriberCount())
	}
}

func TestKindValid(t *testing.T) {
	for _, k := range []Kind{KindVehicle, KindRoute, KindStop, KindAdmin} {
		if !k.Valid() {
			t.Errorf("%s reported invalid", k)
		}
	}
	if Kind("pigeon").Valid() {
		t.Error("unknown kind reported valid")
	}
}
