// Package views derives filtered lists and summary statistics from a
// snapshot of bugs. Nothing here performs I/O or mutates its input.
package views

import (
	"strings"

	"github.com/joescharf/bugboard/internal/models"
)

// Criteria holds optional exact-match filters. A zero value field is unset.
type Criteria struct {
	Status       models.Status
	Priority     models.Priority
	Assignee     string
	Reproducible *bool
}

// IsEmpty reports whether no filter is set.
func (c Criteria) IsEmpty() bool {
	return c.Status == "" && c.Priority == "" && c.Assignee == "" && c.Reproducible == nil
}

func (c Criteria) match(b *models.Bug) bool {
	if c.Status != "" && b.Status != c.Status {
		return false
	}
	if c.Priority != "" && b.Priority != c.Priority {
		return false
	}
	if c.Assignee != "" && b.Assignee != c.Assignee {
		return false
	}
	if c.Reproducible != nil && b.Reproducible != *c.Reproducible {
		return false
	}
	return true
}

// Filter returns the bugs matching every set field of c, in input order.
// With empty criteria the input is returned unchanged.
func Filter(bugs []*models.Bug, c Criteria) []*models.Bug {
	if c.IsEmpty() {
		return bugs
	}
	out := make([]*models.Bug, 0, len(bugs))
	for _, b := range bugs {
		if c.match(b) {
			out = append(out, b)
		}
	}
	return out
}

// Search returns the bugs whose title, description, assignee, reporter or
// any tag contains term, ignoring case. A blank term returns the input.
func Search(bugs []*models.Bug, term string) []*models.Bug {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return bugs
	}
	out := make([]*models.Bug, 0, len(bugs))
	for _, b := range bugs {
		if matches(b, term) {
			out = append(out, b)
		}
	}
	return out
}

func matches(b *models.Bug, term string) bool {
	for _, field := range []string{b.Title, b.Description, b.Assignee, b.Reporter} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	for _, tag := range b.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

// Apply filters by c and then searches for term.
func Apply(bugs []*models.Bug, c Criteria, term string) []*models.Bug {
	return Search(Filter(bugs, c), term)
}
