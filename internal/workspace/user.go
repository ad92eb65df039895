package workspace

import (
	"sync"

	"coherence/internal/portal"
)

var _ portal.UserClient = &SlackUser{}

// SlackUser is a simulated workspace member with its own event stream.
type SlackUser struct {
	username string
	token    string

	mu     sync.RWMutex
	events []*Event
}

// NewSlackUser creates a user with an empty event stream.
func NewSlackUser(username, token string) *SlackUser {
	return &SlackUser{username: username, token: token}
}

// Username returns the user's name.
func (u *SlackUser) Username() string { return u.username }

// Token returns the user's API token.
func (u *SlackUser) Token() string { return u.token }

// LoadEvents delivers payloads to the user in order and returns the new events.
func (u *SlackUser) LoadEvents(payloads ...map[string]interface{}) []*Event {
	loaded := make([]*Event, 0, len(payloads))
	for _, payload := range payloads {
		loaded = append(loaded, NewEvent(payload))
	}

	u.mu.Lock()
	u.events = append(u.events, loaded...)
	u.mu.Unlock()
	return loaded
}

// Events returns a snapshot of every event delivered so far.
func (u *SlackUser) Events() []portal.Event {
	u.mu.RLock()
	defer u.mu.RUnlock()

	events := make([]portal.Event, len(u.events))
	for i, event := range u.events {
		events[i] = event
	}
	return events
}

// RawEvents returns a snapshot of the concrete events delivered so far.
func (u *SlackUser) RawEvents() []*Event {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return append([]*Event(nil), u.events...)
}

// NextEvent consumes the oldest unprocessed event.
func (u *SlackUser) NextEvent() (*Event, bool) {
	return u.FindEvent(func(*Event) bool { return true })
}

// FindEvent consumes the oldest unprocessed event accepted by match.
func (u *SlackUser) FindEvent(match func(*Event) bool) (*Event, bool) {
	for _, event := range u.RawEvents() {
		if event.Processed() || !match(event) {
			continue
		}
		if event.MarkProcessed() {
			return event, true
		}
	}
	return nil, false
}

// PendingCount returns the number of unprocessed events.
func (u *SlackUser) PendingCount() int {
	count := 0
	for _, event := range u.RawEvents() {
		if !event.Processed() {
			count++
		}
	}
	return count
}

// ClearEvents drops every delivered event.
func (u *SlackUser) ClearEvents() {
	u.mu.Lock()
	u.events = nil
	u.mu.Unlock()
}
