// internal/sched/waitset.go

package sched

import (
	"sync"

	"github.com/emirpasic/gods/sets/hashset"
)

// WaitSet holds the threads a thread must see finish starting before it may
// start itself. Members are added before Seal and only removed afterwards;
// once a sealed set is empty it stays empty.
type WaitSet struct {
	mu      sync.Mutex
	members *hashset.Set
	sealed  bool
	drained chan struct{} // closed once sealed and empty
}

func NewWaitSet() *WaitSet {
	return &WaitSet{
		members: hashset.New(),
		drained: make(chan struct{}),
	}
}

// Add inserts t. It is a no-op once the set has been sealed.
func (w *WaitSet) Add(t *Thread) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sealed {
		return
	}
	w.members.Add(t)
}

// Seal stops further growth. If the set is already empty it is drained
// immediately.
func (w *WaitSet) Seal() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sealed {
		return
	}
	w.sealed = true
	if w.members.Empty() {
		close(w.drained)
	}
}

// Remove deletes t if present.
func (w *WaitSet) Remove(t *Thread) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.members.Contains(t) {
		return
	}
	w.members.Remove(t)
	if w.sealed && w.members.Empty() {
		close(w.drained)
	}
}

func (w *WaitSet) Contains(t *Thread) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.members.Contains(t)
}

func (w *WaitSet) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.members.Size()
}

// Pending returns the names of the threads still being waited for.
func (w *WaitSet) Pending() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	names := make([]string, 0, w.members.Size())
	for _, v := range w.members.Values() {
		names = append(names, v.(*Thread).Name())
	}
	return names
}

// Drained is closed once the set is sealed and empty.
func (w *WaitSet) Drained() <-chan struct{} { return w.drained }
