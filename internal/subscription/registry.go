// Package subscription tracks which consumers want which events. The
// registry is the read side of fanout: writers register interest, the
// dispatcher asks for a snapshot of subscribers per topic.
package subscription

import (
	"hash/fnv"
	"sync"
)

const shardCount = 32

// Kind partitions the topic namespace.
type Kind string

const (
	// KindVehicle follows one vehicle's live position.
	KindVehicle Kind = "vehicle"
	// KindRoute follows every vehicle on a route.
	KindRoute Kind = "route"
	// KindStop notifies waiters when a vehicle nears a stop.
	KindStop Kind = "stop"
	// KindAdmin receives operational alerts and emergencies.
	KindAdmin Kind = "admin"
)

// Valid reports whether k is a known topic kind.
func (k Kind) Valid() bool {
	switch k {
	case KindVehicle, KindRoute, KindStop, KindAdmin:
		return true
	}
	return false
}

// Subscriber is one registered consumer. Send must not block: transports
// buffer internally and report failure when the buffer is full.
type Subscriber interface {
	ID() string
	Send(event any) error
}

type topicRef struct {
	kind Kind
	key  string
}

type topicShard struct {
	mu     sync.RWMutex
	topics map[topicRef]map[string]Subscriber
}

type subscriberShard struct {
	mu    sync.Mutex
	bySub map[string]map[topicRef]struct{}
}

// Registry is the subscription table, sharded by topic and by subscriber so
// registrations for unrelated vehicles, routes and stops never contend on
// one lock. Reads take a snapshot so delivery happens outside any lock and
// a subscriber joining mid-dispatch neither blocks nor receives a partial
// event stream. Safe for concurrent use.
//
// Lock order: a subscriber shard lock is held across the topic shard update
// so registration and the reverse index stay consistent; topic shard locks
// are never held while taking a subscriber shard lock.
type Registry struct {
	topicShards [shardCount]*topicShard
	subShards   [shardCount]*subscriberShard
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.topicShards {
		r.topicShards[i] = &topicShard{topics: make(map[topicRef]map[string]Subscriber)}
	}
	for i := range r.subShards {
		r.subShards[i] = &subscriberShard{bySub: make(map[string]map[topicRef]struct{})}
	}
	return r
}

func shardIndex(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32() % shardCount
}

func (r *Registry) topicShardFor(ref topicRef) *topicShard {
	return r.topicShards[shardIndex(string(ref.kind)+"/"+ref.key)]
}

func (r *Registry) subShardFor(subscriberID string) *subscriberShard {
	return r.subShards[shardIndex(subscriberID)]
}

// Subscribe registers sub for one topic. Re-subscribing to the same topic
// replaces the previous registration.
func (r *Registry) Subscribe(sub Subscriber, kind Kind, key string) {
	ref := topicRef{kind: kind, key: key}

	ss := r.subShardFor(sub.ID())
	ss.mu.Lock()
	defer ss.mu.Unlock()

	refs, ok := ss.bySub[sub.ID()]
	if !ok {
		refs = make(map[topicRef]struct{})
		ss.bySub[sub.ID()] = refs
	}
	refs[ref] = struct{}{}

	ts := r.topicShardFor(ref)
	ts.mu.Lock()
	defer ts.mu.Unlock()

	subs, ok := ts.topics[ref]
	if !ok {
		subs = make(map[string]Subscriber)
		ts.topics[ref] = subs
	}
	subs[sub.ID()] = sub
}

// Unsubscribe removes one topic registration.
func (r *Registry) Unsubscribe(subscriberID string, kind Kind, key string) {
	ref := topicRef{kind: kind, key: key}

	ss := r.subShardFor(subscriberID)
	ss.mu.Lock()
	defer ss.mu.Unlock()
	r.drop(ss, subscriberID, ref)
}

// DropSubscriber removes every registration of a disconnected consumer.
func (r *Registry) DropSubscriber(subscriberID string) {
	ss := r.subShardFor(subscriberID)
	ss.mu.Lock()
	defer ss.mu.Unlock()

	for ref := range ss.bySub[subscriberID] {
		r.drop(ss, subscriberID, ref)
	}
}

// drop removes one registration. The subscriber shard lock must be held.
func (r *Registry) drop(ss *subscriberShard, subscriberID string, ref topicRef) {
	ts := r.topicShardFor(ref)
	ts.mu.Lock()
	if subs, ok := ts.topics[ref]; ok {
		delete(subs, subscriberID)
		if len(subs) == 0 {
			delete(ts.topics, ref)
		}
	}
	ts.mu.Unlock()

	if refs, ok := ss.bySub[subscriberID]; ok {
		delete(refs, ref)
		if len(refs) == 0 {
			delete(ss.bySub, subscriberID)
		}
	}
}

// Subscribers returns a snapshot of the consumers registered for one topic.
// The slice is the caller's to keep; later registry changes do not affect it.
func (r *Registry) Subscribers(kind Kind, key string) []Subscriber {
	ref := topicRef{kind: kind, key: key}

	ts := r.topicShardFor(ref)
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	subs := ts.topics[ref]
	if len(subs) == 0 {
		return nil
	}
	out := make([]Subscriber, 0, len(subs))
	for _, s := range subs {
		out = append(out, s)
	}
	return out
}

// TopicCount returns the number of topics with at least one subscriber.
func (r *Registry) TopicCount() int {
	n := 0
	for _, ts := range r.topicShards {
		ts.mu.RLock()
		n += len(ts.topics)
		ts.mu.RUnlock()
	}
	return n
}

// SubscriberCount returns the number of distinct registered consumers.
func (r *Registry) SubscriberCount() int {
	n := 0
	for _, ss := range r.subShards {
		ss.mu.Lock()
		n += len(ss.bySub)
		ss.mu.Unlock()
	}
	return n
}
