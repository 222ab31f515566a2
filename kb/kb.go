package kb

import (
	"fmt"
	"sort"
	"sync"

	"github.com/EmmaVellard/SolarConflux/core"
	"github.com/EmmaVellard/SolarConflux/model"
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventTrajectoryLoaded EventType = iota
)

// Event is emitted to subscribers when a trajectory is added.
type Event struct {
	Type    EventType
	Body    string
	Samples int
}

// KnowledgeBase is an in-memory, thread-safe store of body trajectories
// sharing one time grid.
type KnowledgeBase struct {
	mu sync.RWMutex

	trajectories map[string]model.Trajectory

	subs map[int]func(Event)
	next int
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		trajectories: make(map[string]model.Trajectory),
		subs:         make(map[int]func(Event)),
	}
}

// AddTrajectory stores a copy of traj under body. It returns an error if the
// body already exists or the name is empty.
func (kb *KnowledgeBase) AddTrajectory(body string, traj model.Trajectory) error {
	if body == "" {
		return fmt.Errorf("trajectory with empty body name")
	}
	kb.mu.Lock()
	if _, exists := kb.trajectories[body]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("trajectory for body %q already exists", body)
	}
	kb.trajectories[body] = append(model.Trajectory(nil), traj...)
	subs := kb.subscribers()
	kb.mu.Unlock()

	kb.notify(subs, Event{Type: EventTrajectoryLoaded, Body: body, Samples: len(traj)})
	return nil
}

// Snapshot returns a shallow copy of the stored trajectories, suitable for
// handing to a scan while the KB keeps changing.
func (kb *KnowledgeBase) Snapshot() map[string]model.Trajectory {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	out := make(map[string]model.Trajectory, len(kb.trajectories))
	for name, traj := range kb.trajectories {
		out[name] = traj
	}
	return out
}

// Validate checks that every stored trajectory shares one time grid.
func (kb *KnowledgeBase) Validate() error {
	return core.ValidateTrajectories(kb.Snapshot())
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.next
	kb.next++
	kb.subs[id] = fn

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		delete(kb.subs, id)
	}
}

// subscribers copies the callbacks; the caller must hold kb.mu.
func (kb *KnowledgeBase) subscribers() []func(Event) {
	ids := make([]int, 0, len(kb.subs))
	for id := range kb.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		out = append(out, kb.subs[id])
	}
	return out
}

// notify runs callbacks outside the lock to avoid deadlocks.
func (kb *KnowledgeBase) notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}
