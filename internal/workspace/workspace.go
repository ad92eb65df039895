package workspace

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"coherence/internal/portal"
)

var _ portal.Workspace = &SlackUserWorkspace{}

var (
	// ErrUserNotFound indicates that no user has the requested username
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateUser indicates that a username is already registered
	ErrDuplicateUser = errors.New("user already registered")
)

// EventTypeMessage is the payload type of events produced by PostMessage.
const EventTypeMessage = "message"

// SlackUserWorkspace is an in-memory chat workspace shared by its users.
type SlackUserWorkspace struct {
	mu    sync.RWMutex
	users []*SlackUser
	seq   int
}

// NewSlackUserWorkspace creates an empty workspace.
func NewSlackUserWorkspace() *SlackUserWorkspace {
	return &SlackUserWorkspace{}
}

// AddSlackUserClient registers user with the workspace.
func (w *SlackUserWorkspace) AddSlackUserClient(user *SlackUser) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, existing := range w.users {
		if existing.Username() == user.Username() {
			return fmt.Errorf("%w: %s", ErrDuplicateUser, user.Username())
		}
	}
	w.users = append(w.users, user)
	return nil
}

// User returns the user named username. An empty name selects the first
// registered user.
func (w *SlackUserWorkspace) User(username string) (*SlackUser, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if username == "" {
		if len(w.users) == 0 {
			return nil, false
		}
		return w.users[0], true
	}
	for _, user := range w.users {
		if user.Username() == username {
			return user, true
		}
	}
	return nil, false
}

// FindUserClientByUsername implements portal.Workspace.
func (w *SlackUserWorkspace) FindUserClientByUsername(username string) (portal.UserClient, bool) {
	user, ok := w.User(username)
	if !ok {
		return nil, false
	}
	return user, true
}

// Users returns the registered users in registration order.
func (w *SlackUserWorkspace) Users() []*SlackUser {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]*SlackUser(nil), w.users...)
}

// PostMessage sends text to channel as from. Every other user receives a
// message event; the sender does not.
func (w *SlackUserWorkspace) PostMessage(from, channel, text string) (map[string]interface{}, error) {
	sender, ok := w.User(from)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, from)
	}

	w.mu.Lock()
	w.seq++
	ts := strconv.FormatInt(time.Now().Unix(), 10) + "." + fmt.Sprintf("%06d", w.seq)
	recipients := append([]*SlackUser(nil), w.users...)
	w.mu.Unlock()

	for _, user := range recipients {
		if user == sender {
			continue
		}
		user.LoadEvents(map[string]interface{}{
			"type":    EventTypeMessage,
			"channel": channel,
			"user":    sender.Username(),
			"text":    text,
			"ts":      ts,
		})
	}

	return map[string]interface{}{
		"ok":      true,
		"channel": channel,
		"ts":      ts,
	}, nil
}

// Reset drops every event delivered to every user.
func (w *SlackUserWorkspace) Reset() {
	for _, user := range w.Users() {
		user.ClearEvents()
	}
}
