// Package task is the domain store: users, tasks, categories and reminders
// persisted in SQLite. Task numbers shown to users are 1-based display
// positions into the user's current ordering, not database identifiers.
package task

import "time"

const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

type Task struct {
	ID          int64
	UserID      int64
	// Position is the task's 1-based place in the user's full display
	// ordering. Filtered listings keep it, so the number shown next to a
	// task always resolves back to that task.
	Position    int
	Title       string
	Description string
	Status      string
	Priority    string
	Category    string
	DueDate     *time.Time
	CreatedAt   time.Time
}

type User struct {
	ID         int64
	ChannelKey string
	Name       string
}

type Reminder struct {
	ID        int64
	UserID    int64
	Message   string
	RemindAt  time.Time
	Sent      bool
	CreatedAt time.Time
}

// Progress aggregates a user's task counts. Percentage is completed/total,
// rounded to one decimal.
type Progress struct {
	Total      int     `json:"total"`
	Completed  int     `json:"completed"`
	InProgress int     `json:"in_progress"`
	Pending    int     `json:"pending"`
	Percentage float64 `json:"percentage"`
}

func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
