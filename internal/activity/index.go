package activity

import "sync"

// SubscriberIndex is the in-memory set of subscribers known to hold at least
// one rule. It keeps the evaluator from querying the store for every author
// of every message; the command layer adds on rule creation and a periodic
// job reloads from the store.
type SubscriberIndex struct {
	mu  sync.RWMutex
	ids map[int64]struct{}
}

func NewSubscriberIndex() *SubscriberIndex {
	return &SubscriberIndex{ids: map[int64]struct{}{}}
}

func (x *SubscriberIndex) Add(id int64) {
	x.mu.Lock()
	x.ids[id] = struct{}{}
	x.mu.Unlock()
}

func (x *SubscriberIndex) Remove(id int64) {
	x.mu.Lock()
	delete(x.ids, id)
	x.mu.Unlock()
}

// Replace swaps the whole set (used by the periodic store reload).
func (x *SubscriberIndex) Replace(ids []int64) {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	x.mu.Lock()
	x.ids = m
	x.mu.Unlock()
}

func (x *SubscriberIndex) Subscribers() []int64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]int64, 0, len(x.ids))
	for id := range x.ids {
		out = append(out, id)
	}
	return out
}

func (x *SubscriberIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}
