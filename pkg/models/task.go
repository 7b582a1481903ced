package models

import (
	"fmt"
	"strings"
)

// TaskStatus represents the current lifecycle state of a task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

// AllStatuses lists the task statuses in display order.
var AllStatuses = []TaskStatus{StatusPending, StatusInProgress, StatusCompleted}

// Valid reports whether s is one of the enumerated statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Label returns the human-readable name shown in the status selector.
func (s TaskStatus) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	default:
		return string(s)
	}
}

// Next returns the status that follows s in display order, wrapping around.
func (s TaskStatus) Next() TaskStatus {
	for i, st := range AllStatuses {
		if st == s {
			return AllStatuses[(i+1)%len(AllStatuses)]
		}
	}
	return StatusPending
}

// ParseStatus converts user input into a TaskStatus.
func ParseStatus(s string) (TaskStatus, error) {
	st := TaskStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", &ValidationError{Field: "status", Message: fmt.Sprintf("invalid status %q: must be one of pending, in_progress, completed", s)}
	}
	return st, nil
}

// Priority is the urgency of a task, from 1 (lowest) to 5 (highest).
type Priority int

const (
	MinPriority     Priority = 1
	MaxPriority     Priority = 5
	DefaultPriority Priority = 3
)

// Valid reports whether p lies within [MinPriority, MaxPriority].
func (p Priority) Valid() bool {
	return p >= MinPriority && p <= MaxPriority
}

// Clamp forces p into the valid priority range.
func (p Priority) Clamp() Priority {
	if p < MinPriority {
		return MinPriority
	}
	if p > MaxPriority {
		return MaxPriority
	}
	return p
}

func (p Priority) String() string {
	return fmt.Sprintf("P%d", int(p))
}

// Task represents a unit of work owned by the signed-in user.
type Task struct {
	ID                  int64      `json:"id"`
	Title               string     `json:"title"`
	Description         string     `json:"description,omitempty"`
	Priority            Priority   `json:"priority"`
	Deadline            *Date      `json:"deadline,omitempty"`
	Status              TaskStatus `json:"status"`
	AIPriorityScore     *Priority  `json:"ai_priority_score,omitempty"`
	AISuggestedDeadline *Timestamp `json:"ai_suggested_deadline,omitempty"`
	CreatedAt           *Timestamp `json:"created_at,omitempty"`
}

// Validate checks the task-level invariants: a non-empty title, a priority
// within range and one of the enumerated statuses.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return &ValidationError{Field: "title", Message: "Title is required"}
	}
	if !t.Priority.Valid() {
		return &ValidationError{Field: "priority", Message: fmt.Sprintf("priority %d out of range 1-5", t.Priority)}
	}
	if !t.Status.Valid() {
		return &ValidationError{Field: "status", Message: fmt.Sprintf("invalid status %q", t.Status)}
	}
	return nil
}

// Fields returns the write payload for t.
func (t *Task) Fields() TaskFields {
	return TaskFields{
		Title:               t.Title,
		Description:         t.Description,
		Priority:            t.Priority,
		Deadline:            t.Deadline,
		Status:              t.Status,
		AIPriorityScore:     t.AIPriorityScore,
		AISuggestedDeadline: t.AISuggestedDeadline,
	}
}

// TaskFields is the body sent to the API when creating or updating a task.
type TaskFields struct {
	Title               string     `json:"title"`
	Description         string     `json:"description,omitempty"`
	Priority            Priority   `json:"priority"`
	Deadline            *Date      `json:"deadline,omitempty"`
	Status              TaskStatus `json:"status,omitempty"`
	AIPriorityScore     *Priority  `json:"ai_priority_score,omitempty"`
	AISuggestedDeadline *Timestamp `json:"ai_suggested_deadline,omitempty"`
}

// ToTask builds a Task carrying the given ID and these fields.
func (f TaskFields) ToTask(id int64) Task {
	return Task{
		ID:                  id,
		Title:               f.Title,
		Description:         f.Description,
		Priority:            f.Priority,
		Deadline:            f.Deadline,
		Status:              f.Status,
		AIPriorityScore:     f.AIPriorityScore,
		AISuggestedDeadline: f.AISuggestedDeadline,
	}
}

// AISuggestion is a priority/deadline pair proposed by an analysis step.
type AISuggestion struct {
	SuggestedPriority Priority  `json:"suggested_priority"`
	SuggestedDeadline Timestamp `json:"suggested_deadline"`
}

// ValidationError reports a missing or malformed field caught before any
// network call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
