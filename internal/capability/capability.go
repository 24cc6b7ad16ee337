// Package capability derives which follow-on actions are available from
// session lifecycle transitions and instance loads.
//
// The controller is purely reactive. A capability unlocks only when its
// triggering event is observed and is never locked again, even when a new
// session starts.
package capability

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zjrosen/antrail/internal/log"
	"github.com/zjrosen/antrail/internal/pubsub"
	"github.com/zjrosen/antrail/internal/session"
)

// ErrLocked is returned by Require for a capability that has not unlocked.
var ErrLocked = errors.New("capability is locked")

// Capability names a follow-on action.
type Capability string

const (
	ViewGraph      Capability = "view-graph"
	ViewBestRoute  Capability = "view-best-route"
	ViewStatistics Capability = "view-statistics"
	Run            Capability = "run"
	RunSeeded      Capability = "run-seeded"
	RunBatch       Capability = "run-batch"
)

// All lists every capability in display order.
var All = []Capability{Run, RunSeeded, RunBatch, ViewGraph, ViewBestRoute, ViewStatistics}

func (c Capability) String() string {
	return string(c)
}

// Controller tracks unlocked capabilities. It is safe for concurrent use.
type Controller struct {
	mu       sync.RWMutex
	unlocked map[Capability]bool
	broker   *pubsub.Broker[Capability]
}

// NewController returns a controller with everything locked.
func NewController() *Controller {
	return &Controller{
		unlocked: make(map[Capability]bool),
		broker:   pubsub.NewBroker[Capability](),
	}
}

// Broker publishes an UnlockedEvent for every newly unlocked capability.
func (c *Controller) Broker() *pubsub.Broker[Capability] {
	return c.broker
}

// InstanceLoaded records that the backend has a problem instance.
func (c *Controller) InstanceLoaded() {
	c.unlock("instance loaded", ViewGraph, Run, RunSeeded, RunBatch)
}

// Observe applies one session transition.
func (c *Controller) Observe(change session.StateChange) {
	if change.To != session.Completed {
		return
	}
	switch change.Kind {
	case session.KindRun:
		c.unlock(fmt.Sprintf("run %s completed", change.SessionID.Short()), ViewBestRoute, ViewStatistics)
	case session.KindBatch:
		c.unlock(fmt.Sprintf("batch %s completed", change.SessionID.Short()), ViewStatistics)
	}
}

// Watch observes every transition published on sub until ctx is done or
// the broker closes. It subscribes reliably so no completion is missed.
// The returned channel is closed once the watcher has stopped.
func (c *Controller) Watch(ctx context.Context, sub pubsub.Subscriber[session.StateChange]) <-chan struct{} {
	ch := sub.SubscribeReliable(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				c.Observe(ev.Payload)
			}
		}
	}()
	return done
}

// Unlocked reports whether k is available.
func (c *Controller) Unlocked(k Capability) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.unlocked[k]
}

// Require returns ErrLocked unless k is available.
func (c *Controller) Require(k Capability) error {
	if !c.Unlocked(k) {
		return fmt.Errorf("%w: %s", ErrLocked, k)
	}
	return nil
}

// Snapshot returns the unlocked capabilities in display order.
func (c *Controller) Snapshot() []Capability {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Capability, 0, len(c.unlocked))
	for _, k := range All {
		if c.unlocked[k] {
			out = append(out, k)
		}
	}
	return out
}

func (c *Controller) unlock(reason string, caps ...Capability) {
	var fresh []Capability

	c.mu.Lock()
	for _, k := range caps {
		if !c.unlocked[k] {
			c.unlocked[k] = true
			fresh = append(fresh, k)
		}
	}
	c.mu.Unlock()

	for _, k := range fresh {
		log.Info(log.CatCapability, "unlocked", "capability", k, "reason", reason)
		c.broker.Publish(pubsub.UnlockedEvent, k)
	}
}
