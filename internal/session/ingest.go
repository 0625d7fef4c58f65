package session

import (
	"fmt"

	"github.com/nhle/notehub/internal/model"
	"github.com/nhle/notehub/internal/realtime"
)

// ingest applies channel events to the session until the subscription
// stops. State events from a replaced subscription are not forwarded.
func (c *Controller) ingest(a *active, sub *realtime.Subscription) {
	for ev := range sub.Events() {
		if !c.live(a) {
			continue
		}

		switch ev.Type {
		case realtime.EventNotification:
			c.receive(a, ev.Notification)
		case realtime.EventPresence:
			a.presence.Set(ev.Presence)
			c.obs.PresenceChanged(ev.Presence)
		case realtime.EventState:
			if a.sub.Load() != sub {
				continue
			}
			c.obs.ConnectionChanged(ev.State, ev.Attempt)
			if ev.State == realtime.StateOffline {
				c.obs.Notice("Live updates stopped. Run 'reconnect' to try again.")
			}
		}
	}
}

// receive stores a pushed notification and, when it was new, raises an
// alert. The alert runs on its own goroutine and may fail without
// affecting the store.
func (c *Controller) receive(a *active, n model.Notification) {
	if !a.store.Prepend(n) {
		c.logg.Debug(c.logg.WithField(a.ctx, "notification_id", n.ID), "duplicate notification ignored")
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				c.logg.Error(a.ctx, "alert failed", fmt.Errorf("panic: %v", r))
			}
		}()
		c.obs.Alert(n.Message)
	}()
}
