package views

import (
	"math"

	"github.com/joescharf/bugboard/internal/models"
)

// StatusCounts holds one count per status. All four keys are always present.
type StatusCounts struct {
	Open       int `json:"open"`
	InProgress int `json:"in-progress"`
	Resolved   int `json:"resolved"`
	Closed     int `json:"closed"`
}

// PriorityCounts holds one count per priority.
type PriorityCounts struct {
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

// Stats summarizes a list of bugs.
type Stats struct {
	Total              int            `json:"total"`
	ByStatus           StatusCounts   `json:"byStatus"`
	ByPriority         PriorityCounts `json:"byPriority"`
	ResolvedPercentage int            `json:"resolvedPercentage"`
}

// ComputeStats counts bugs by status and priority. ResolvedPercentage counts
// only the resolved status, rounded to the nearest integer, and is 0 for an
// empty list.
func ComputeStats(bugs []*models.Bug) Stats {
	var s Stats
	s.Total = len(bugs)
	for _, b := range bugs {
		switch b.Status {
		case models.StatusOpen:
			s.ByStatus.Open++
		case models.StatusInProgress:
			s.ByStatus.InProgress++
		case models.StatusResolved:
			s.ByStatus.Resolved++
		case models.StatusClosed:
			s.ByStatus.Closed++
		}
		switch b.Priority {
		case models.PriorityLow:
			s.ByPriority.Low++
		case models.PriorityMedium:
			s.ByPriority.Medium++
		case models.PriorityHigh:
			s.ByPriority.High++
		case models.PriorityCritical:
			s.ByPriority.Critical++
		}
	}
	if s.Total > 0 {
		s.ResolvedPercentage = int(math.Round(float64(s.ByStatus.Resolved) / float64(s.Total) * 100))
	}
	return s
}

// Status returns the count for st.
func (c StatusCounts) Status(st models.Status) int {
	switch st {
	case models.StatusOpen:
		return c.Open
	case models.StatusInProgress:
		return c.InProgress
	case models.StatusResolved:
		return c.Resolved
	case models.StatusClosed:
		return c.Closed
	}
	return 0
}

// Priority returns the count for p.
func (c PriorityCounts) Priority(p models.Priority) int {
	switch p {
	case models.PriorityLow:
		return c.Low
	case models.PriorityMedium:
		return c.Medium
	case models.PriorityHigh:
		return c.High
	case models.PriorityCritical:
		return c.Critical
	}
	return 0
}
