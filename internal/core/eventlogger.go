package core

// Activity events emitted by TaskList. The names match the observability
// event types so the activity log can filter on them.
const (
	EventSessionExpired = "session.expired"
	EventSessionLogout  = "session.logout"
	EventTaskCreated    = "task.created"
	EventTaskDeleted    = "task.deleted"
	EventStatusChanged  = "task.status_changed"
)

// EventLogger records activity. TaskList treats logging failures as
// non-fatal; the operation has already succeeded by the time it logs.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

