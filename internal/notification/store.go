package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/UnknownOlympus/hotelgate/internal/storage"
)

const (
	feedKey      = "hotel_notifications"
	lastCheckKey = "hotel_notifications_last_check"
	feedVersion  = 1
)

// DefaultCapacity is the number of notifications kept in the feed.
const DefaultCapacity = 100

var (
	// ErrNotFound is returned when a notification id is not in the feed.
	ErrNotFound = errors.New("notification not found")
	// ErrFeedVersion is returned when the stored feed has an unknown schema version.
	ErrFeedVersion = errors.New("unsupported notification feed version")
)

// Type groups notifications by what triggered them.
type Type string

// Notification types.
const (
	TypeBooking  Type = "booking"
	TypeCustomer Type = "customer"
	TypeCheckIn  Type = "checkin"
	TypeSystem   Type = "system"
)

// Priority of a notification. High priority notifications are also pushed to sinks.
type Priority string

// Priorities.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Notification is one entry of the staff notification feed.
type Notification struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Read      bool           `json:"read"`
	Priority  Priority       `json:"priority"`
	Data      map[string]any `json:"data,omitempty"`
}

type feed struct {
	Version       int            `json:"version"`
	Notifications []Notification `json:"notifications"`
}

// Store is the capped, newest-first notification feed.
type Store struct {
	store    storage.Store
	capacity int
}

// NewStore keeps at most capacity notifications, DefaultCapacity when capacity is not positive.
func NewStore(store storage.Store, capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{store: store, capacity: capacity}
}

// List returns the feed, newest first.
func (s *Store) List(ctx context.Context) ([]Notification, error) {
	raw, err := s.store.Get(ctx, feedKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return []Notification{}, nil
		}
		return nil, fmt.Errorf("failed to load notifications: %w", err)
	}
	current, err := decodeFeed(raw)
	if err != nil {
		return nil, err
	}
	return current.Notifications, nil
}

// Add inserts notifications whose id is not in the feed yet and returns the ones inserted.
func (s *Store) Add(ctx context.Context, items ...Notification) ([]Notification, error) {
	var added []Notification
	err := s.update(ctx, func(current *feed) {
		added = nil
		for _, item := range items {
			exists := slices.ContainsFunc(current.Notifications, func(n Notification) bool { return n.ID == item.ID })
			if exists || slices.ContainsFunc(added, func(n Notification) bool { return n.ID == item.ID }) {
				continue
			}
			added = append(added, item)
		}
		current.Notifications = append(current.Notifications, added...)
		slices.SortStableFunc(current.Notifications, func(a, b Notification) int {
			return b.Timestamp.Compare(a.Timestamp)
		})
		if len(current.Notifications) > s.capacity {
			current.Notifications = current.Notifications[:s.capacity]
			added = slices.DeleteFunc(added, func(item Notification) bool {
				return !slices.ContainsFunc(current.Notifications, func(n Notification) bool { return n.ID == item.ID })
			})
		}
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// MarkRead marks one notification as read. Read notifications never become unread.
func (s *Store) MarkRead(ctx context.Context, id string) error {
	found := false
	err := s.update(ctx, func(current *feed) {
		for i := range current.Notifications {
			if current.Notifications[i].ID == id {
				current.Notifications[i].Read = true
				found = true
			}
		}
	})
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead marks every notification as read.
func (s *Store) MarkAllRead(ctx context.Context) error {
	return s.update(ctx, func(current *feed) {
		for i := range current.Notifications {
			current.Notifications[i].Read = true
		}
	})
}

// UnreadCount returns the number of unread notifications.
func (s *Store) UnreadCount(ctx context.Context) (int, error) {
	items, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, n := range items {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

// Clear empties the feed. The last check time is kept.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.store.Delete(ctx, feedKey); err != nil {
		return fmt.Errorf("failed to clear notifications: %w", err)
	}
	return nil
}

// LastCheck returns the time of the last successful poll; ok is false before the first one.
func (s *Store) LastCheck(ctx context.Context) (time.Time, bool, error) {
	raw, err := s.store.Get(ctx, lastCheckKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to load last check: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse last check: %w", err)
	}
	return parsed, true, nil
}

// SetLastCheck stores the time of a successful poll.
func (s *Store) SetLastCheck(ctx context.Context, at time.Time) error {
	if err := s.store.Put(ctx, lastCheckKey, []byte(at.UTC().Format(time.RFC3339Nano))); err != nil {
		return fmt.Errorf("failed to save last check: %w", err)
	}
	return nil
}

func (s *Store) update(ctx context.Context, mutate func(current *feed)) error {
	err := s.store.Update(ctx, feedKey, func(raw []byte) ([]byte, error) {
		current := feed{Version: feedVersion, Notifications: []Notification{}}
		if raw != nil {
			decoded, err := decodeFeed(raw)
			if err != nil {
				return nil, err
			}
			current = decoded
		}
		mutate(&current)
		return json.Marshal(current)
	})
	if err != nil {
		return fmt.Errorf("failed to update notifications: %w", err)
	}
	return nil
}

func decodeFeed(raw []byte) (feed, error) {
	var current feed
	if err := json.Unmarshal(raw, &current); err != nil {
		return feed{}, fmt.Errorf("failed to decode notifications: %w", err)
	}
	if current.Version != feedVersion {
		return feed{}, fmt.Errorf("%w: %d", ErrFeedVersion, current.Version)
	}
	if current.Notifications == nil {
		current.Notifications = []Notification{}
	}
	return current, nil
}
