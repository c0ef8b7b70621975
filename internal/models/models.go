// Package models defines the core domain types for Taskdeck.
package models

import "time"

// Priority represents how urgent a task is.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Priorities lists every valid priority, highest first.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// ValidPriority reports whether p is a known priority value.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	StatusNotStarted TaskStatus = "not_started"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
	StatusBlocked    TaskStatus = "blocked"
)

// Statuses lists every valid task status.
var Statuses = []TaskStatus{StatusNotStarted, StatusInProgress, StatusDone, StatusBlocked}

// ValidStatus reports whether s is a known status value.
func ValidStatus(s TaskStatus) bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusDone, StatusBlocked:
		return true
	}
	return false
}

// Task is a unit of work tracked by the backend. The backend owns the
// record; clients hold transient copies refreshed by polling.
type Task struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Priority      Priority   `json:"priority"`
	Status        TaskStatus `json:"status"`
	DueDate       string     `json:"due_date,omitempty"` // YYYY-MM-DD, empty = none
	LoggedMinutes int        `json:"logged_minutes"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Overdue reports whether the task has a due date in the past and is
// not done.
func (t Task) Overdue(now time.Time) bool {
	if t.DueDate == "" || t.Status == StatusDone {
		return false
	}
	due, err := time.Parse("2006-01-02", t.DueDate)
	if err != nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return due.Before(today)
}

// TaskUpdate carries a partial task edit. Nil fields are left unchanged.
type TaskUpdate struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Priority    *Priority   `json:"priority,omitempty"`
	Status      *TaskStatus `json:"status,omitempty"`
	DueDate     *string     `json:"due_date,omitempty"`
}

// ActiveTimer is an open work interval on a task, as reported by the
// backend. Elapsed time is derived client-side from StartTime.
type ActiveTimer struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	TaskTitle string    `json:"task_title"`
	Priority  Priority  `json:"priority"`
	StartTime time.Time `json:"start_time"`
}

// TimeLog is a closed (or still open) work interval with its accounted
// duration in minutes.
type TimeLog struct {
	ID              int64      `json:"id"`
	TaskID          int64      `json:"task_id"`
	TaskTitle       string     `json:"task_title,omitempty"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	Notes           string     `json:"notes,omitempty"`
}

// BreakdownSlice is one segment of a time breakdown (per priority or
// per status).
type BreakdownSlice struct {
	Minutes    int     `json:"minutes"`
	Hours      float64 `json:"hours"`
	Percentage float64 `json:"percentage"`
	Formatted  string  `json:"formatted"`
}

// Dashboard is the aggregate analytics object served by the backend.
type Dashboard struct {
	TotalTasks           int                `json:"total_tasks"`
	StatusCounts         map[TaskStatus]int `json:"task_status_distribution"`
	PriorityCounts       map[Priority]int   `json:"task_priority_distribution"`
	CompletionRate       float64            `json:"completion_rate"`
	CompletedToday       int                `json:"completed_today"`
	CreatedToday         int                `json:"created_today"`
	CompletedThisWeek    int                `json:"completed_this_week"`
	OverdueCount         int                `json:"overdue_count"`
	BlockedCount         int                `json:"blocked_count"`
	TotalLoggedMinutes   int                `json:"total_logged_minutes"`
	TotalLoggedFormatted string             `json:"total_logged_formatted"`
}

// ExportScope selects which tasks a calendar export covers.
type ExportScope string

const (
	ExportAll     ExportScope = "all"
	ExportUndone  ExportScope = "undone"
	ExportOverdue ExportScope = "overdue"
)
