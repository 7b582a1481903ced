package observability

import (
	"fmt"
	"time"
)

// Summary aggregates the activity log.
type Summary struct {
	Logins         int            `json:"logins"`
	Logouts        int            `json:"logouts"`
	Expirations    int            `json:"expirations"`
	TasksCreated   int            `json:"tasks_created"`
	TasksDeleted   int            `json:"tasks_deleted"`
	StatusChanges  int            `json:"status_changes"`
	TasksCompleted int            `json:"tasks_completed"`
	StatusChanged  map[string]int `json:"status_changed_to"`
	EventCount     int            `json:"event_count"`
	OldestEvent    *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent    *time.Time     `json:"newest_event,omitempty"`
}

// ActivitySummarizer derives a Summary from the event log.
type ActivitySummarizer interface {
	Summarize(since time.Time) (*Summary, error)
}

type activitySummarizer struct {
	eventLog EventLog
}

// NewActivitySummarizer creates an ActivitySummarizer reading from eventLog.
func NewActivitySummarizer(eventLog EventLog) ActivitySummarizer {
	return &activitySummarizer{eventLog: eventLog}
}

// Summarize counts the events at or after since.
func (s *activitySummarizer) Summarize(since time.Time) (*Summary, error) {
	events, err := s.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for summary: %w", err)
	}

	sum := &Summary{StatusChanged: make(map[string]int), EventCount: len(events)}
	for i, event := range events {
		t := event.Time
		if i == 0 {
			sum.OldestEvent = &t
		}
		sum.NewestEvent = &t

		switch event.Type {
		case EventLogin:
			sum.Logins++
		case EventLogout:
			sum.Logouts++
		case EventExpired:
			sum.Expirations++
		case EventTaskCreated:
			sum.TasksCreated++
		case EventTaskDeleted:
			sum.TasksDeleted++
		case EventStatusChanged:
			sum.StatusChanges++
			if to, ok := event.Data["to"].(string); ok {
				sum.StatusChanged[to]++
				if to == "completed" {
					sum.TasksCompleted++
				}
			}
		}
	}
	return sum, nil
}
