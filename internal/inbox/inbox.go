// Package inbox keeps the notification feed with read state tracked on
// this client.
package inbox

import (
	"context"
	"sync"

	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/models"
)

// Source fetches a user's notifications.
type Source interface {
	Notifications(ctx context.Context, userID string) ([]models.Notification, error)
}

// Inbox is safe for concurrent use.
type Inbox struct {
	src Source

	mu    sync.Mutex
	items []models.Notification
	// read survives reloads so a refresh does not undo local reads.
	read map[int64]bool
}

// New creates an empty inbox.
func New(src Source) *Inbox {
	return &Inbox{src: src, read: make(map[int64]bool)}
}

// Load replaces the feed. On failure the previous feed is kept.
func (i *Inbox) Load(ctx context.Context, userID string) ([]models.Notification, error) {
	items, err := i.src.Notifications(ctx, userID)
	if err != nil {
		return nil, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.items = append([]models.Notification(nil), items...)
	for idx := range i.items {
		if i.read[i.items[idx].ID] {
			i.items[idx].Unread = false
		}
	}
	return i.listLocked(), nil
}

// List returns a copy of the feed.
func (i *Inbox) List() []models.Notification {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.listLocked()
}

func (i *Inbox) listLocked() []models.Notification {
	return append([]models.Notification{}, i.items...)
}

// ToggleRead flips the read state of one notification.
func (i *Inbox) ToggleRead(id int64) (models.Notification, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for idx := range i.items {
		if i.items[idx].ID != id {
			continue
		}
		i.items[idx].Unread = !i.items[idx].Unread
		i.read[id] = !i.items[idx].Unread
		return i.items[idx], nil
	}
	return models.Notification{}, apperr.Validation("inbox.ToggleRead", "no such notification")
}

// MarkAllRead marks every notification read.
func (i *Inbox) MarkAllRead() {
	i.mu.Lock()
	defer i.mu.Unlock()
	for idx := range i.items {
		i.items[idx].Unread = false
		i.read[i.items[idx].ID] = true
	}
}

// Unread counts unread notifications.
func (i *Inbox) Unread() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	n := 0
	for _, item := range i.items {
		if item.Unread {
			n++
		}
	}
	return n
}
