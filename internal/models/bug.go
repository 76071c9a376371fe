package models

import "time"

// Status represents where a bug is in its lifecycle.
// Any status may move to any other; there is no workflow graph.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in-progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// AllStatuses returns every status in display order.
func AllStatuses() []Status {
	return []Status{StatusOpen, StatusInProgress, StatusResolved, StatusClosed}
}

// Priority represents the urgency of a bug.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// AllPriorities returns every priority from least to most urgent.
func AllPriorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
}

// Bug is a tracked defect report.
type Bug struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Priority         Priority  `json:"priority"`
	Status           Status    `json:"status"`
	Assignee         string    `json:"assignee"`
	Reporter         string    `json:"reporter"`
	Environment      string    `json:"environment"`
	Reproducible     bool      `json:"reproducible"`
	StepsToReproduce string    `json:"stepsToReproduce,omitempty"`
	Tags             []string  `json:"tags"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of b. Tags is never nil on the copy.
func (b *Bug) Clone() *Bug {
	c := *b
	c.Tags = append(make([]string, 0, len(b.Tags)), b.Tags...)
	return &c
}

