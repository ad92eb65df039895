package portal

// Event is an externally observed event a step may consume.
type Event interface {
	// Processed reports whether a step has consumed the event
	Processed() bool
	// String renders the event compactly for call-stack traces
	String() string
}

// UserClient exposes the events received by one workspace user.
type UserClient interface {
	Events() []Event
}

// Workspace is the stateful system steps interact with. An empty username
// selects the workspace's default user.
type Workspace interface {
	FindUserClientByUsername(username string) (UserClient, bool)
}

// unprocessedEvents returns the observed user's events that have not been
// consumed yet. A nil workspace or unknown user yields nothing.
func unprocessedEvents(ws Workspace, username string) []Event {
	if ws == nil {
		return nil
	}
	client, ok := ws.FindUserClientByUsername(username)
	if !ok || client == nil {
		return nil
	}

	var pending []Event
	for _, event := range client.Events() {
		if !event.Processed() {
			pending = append(pending, event)
		}
	}
	return pending
}

// firstNewlyProcessed renders the first event of before that is now processed.
func firstNewlyProcessed(before []Event) string {
	for _, event := range before {
		if event.Processed() {
			return event.String()
		}
	}
	return ""
}
