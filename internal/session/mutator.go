package session

import (
	"context"
)

// MarkRead marks id read locally, then on the portal. When the portal
// call fails the full list is reloaded so the store matches the server.
// Marking an absent or already read entry does nothing.
func (c *Controller) MarkRead(ctx context.Context, id string) error {
	a := c.current()
	if a == nil {
		return ErrNoIdentity
	}
	if !a.store.MarkRead(id) {
		return nil
	}

	reqCtx, cancel := withSession(ctx, a.ctx)
	defer cancel()
	err := c.api.MarkRead(reqCtx, id)
	if !c.live(a) {
		return nil
	}
	if err != nil {
		c.logg.Error(c.logg.WithField(a.ctx, "notification_id", id), "mark read failed; resyncing", err)
		c.obs.Notice("Could not mark notification as read")
		c.reload(a)
		return err
	}
	return nil
}

// ClearAll marks every entry read locally, then deletes read entries on
// the portal. A failed portal call leaves the local state cleared.
func (c *Controller) ClearAll(ctx context.Context) error {
	a := c.current()
	if a == nil {
		return ErrNoIdentity
	}
	a.store.ClearAll()

	reqCtx, cancel := withSession(ctx, a.ctx)
	defer cancel()
	err := c.api.DeleteRead(reqCtx, a.identity.RecipientID)
	if !c.live(a) {
		return nil
	}
	if err != nil {
		// TODO: reload the list here like MarkRead does; the portal still
		// has these entries unread after a failed delete.
		c.logg.Error(a.ctx, "clear all failed", err)
		c.obs.Notice("Could not clear notifications")
		return err
	}
	return nil
}

// withSession derives a request context from ctx that is also cancelled
// when the session ends.
func withSession(ctx, session context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	merged, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(session, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
