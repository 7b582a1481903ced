package observability

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Activity event types.
const (
	EventLogin         = "session.login"
	EventLogout        = "session.logout"
	EventExpired       = "session.expired"
	EventTaskCreated   = "task.created"
	EventTaskDeleted   = "task.deleted"
	EventStatusChanged = "task.status_changed"
)

// EventTypes lists the known activity event types.
var EventTypes = []string{
	EventLogin, EventLogout, EventExpired,
	EventTaskCreated, EventTaskDeleted, EventStatusChanged,
}

// Event is a single entry in the activity log.
type Event struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"` // INFO, WARN
	Type    string         `json:"type"`
	Message string         `json:"msg"`
	Data    map[string]any `json:"data,omitempty"`
}

// EventFilter selects events when reading.
type EventFilter struct {
	Since *time.Time
	Until *time.Time
	Type  string
	Level string
	// Limit keeps only the newest Limit matches when positive.
	Limit int
}

// EventLog writes and reads activity events.
type EventLog interface {
	Write(event Event) error
	Read(filter EventFilter) ([]Event, error)
	Close() error
}

type jsonlEventLog struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// NewJSONLEventLog opens (creating if needed) an append-only JSONL activity
// log at path.
func NewJSONLEventLog(path string) (EventLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	return &jsonlEventLog{path: path, file: f}, nil
}

// NewEvent builds an event of the given type stamped with the current time.
// Expired sessions are logged at WARN, everything else at INFO.
func NewEvent(eventType string, data map[string]any) Event {
	level := "INFO"
	if eventType == EventExpired {
		level = "WARN"
	}
	return Event{
		Time:    time.Now().UTC(),
		Level:   level,
		Type:    eventType,
		Message: eventMessage(eventType),
		Data:    data,
	}
}

func eventMessage(eventType string) string {
	switch eventType {
	case EventLogin:
		return "signed in"
	case EventLogout:
		return "signed out"
	case EventExpired:
		return "session expired"
	case EventTaskCreated:
		return "task created"
	case EventTaskDeleted:
		return "task deleted"
	case EventStatusChanged:
		return "task status changed"
	default:
		return strings.ReplaceAll(eventType, ".", " ")
	}
}

// Write appends one JSON-encoded event line.
func (l *jsonlEventLog) Write(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	data = append(data, '\n')

	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}

// Read scans the log and returns the events matching filter in file order.
func (l *jsonlEventLog) Read(filter EventFilter) ([]Event, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening event log for reading: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue // skip malformed lines
		}
		if matchesEventFilter(event, filter) {
			events = append(events, event)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning event log: %w", err)
	}

	if filter.Limit > 0 && len(events) > filter.Limit {
		events = events[len(events)-filter.Limit:]
	}
	return events, nil
}

func (l *jsonlEventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("closing event log: %w", err)
	}
	return nil
}

func matchesEventFilter(event Event, filter EventFilter) bool {
	if filter.Since != nil && event.Time.Before(*filter.Since) {
		return false
	}
	if filter.Until != nil && event.Time.After(*filter.Until) {
		return false
	}
	if filter.Type != "" && event.Type != filter.Type {
		return false
	}
	if filter.Level != "" && !strings.EqualFold(event.Level, filter.Level) {
		return false
	}
	return true
}
