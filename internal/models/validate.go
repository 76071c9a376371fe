package models

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Field length limits, counted in characters after trimming whitespace.
const (
	TitleMaxLen       = 100
	DescriptionMinLen = 10
	DescriptionMaxLen = 1000
)

// BugInput holds the caller-supplied fields for creating a bug.
// Status, id and timestamps are assigned by the service, never by the caller.
type BugInput struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Priority         Priority `json:"priority"`
	Assignee         string   `json:"assignee"`
	Reporter         string   `json:"reporter"`
	Environment      string   `json:"environment"`
	Reproducible     *bool    `json:"reproducible,omitempty"`
	StepsToReproduce string   `json:"stepsToReproduce,omitempty"`
	Tags             []string `json:"tags,omitempty"`
}

// BugPatch is a partial update. A nil field is not part of the patch.
type BugPatch struct {
	Title            *string   `json:"title,omitempty"`
	Description      *string   `json:"description,omitempty"`
	Priority         *Priority `json:"priority,omitempty"`
	Status           *Status   `json:"status,omitempty"`
	Assignee         *string   `json:"assignee,omitempty"`
	Reporter         *string   `json:"reporter,omitempty"`
	Environment      *string   `json:"environment,omitempty"`
	Reproducible     *bool     `json:"reproducible,omitempty"`
	StepsToReproduce *string   `json:"stepsToReproduce,omitempty"`
	Tags             *[]string `json:"tags,omitempty"`
}

// IsEmpty reports whether the patch carries no fields.
func (p *BugPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil &&
		p.Status == nil && p.Assignee == nil && p.Reporter == nil &&
		p.Environment == nil && p.Reproducible == nil &&
		p.StepsToReproduce == nil && p.Tags == nil
}

// Apply merges the present fields of the patch onto b.
// Identity and timestamps are left untouched.
func (p *BugPatch) Apply(b *Bug) {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.Priority != nil {
		b.Priority = *p.Priority
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.Assignee != nil {
		b.Assignee = *p.Assignee
	}
	if p.Reporter != nil {
		b.Reporter = *p.Reporter
	}
	if p.Environment != nil {
		b.Environment = *p.Environment
	}
	if p.Reproducible != nil {
		b.Reproducible = *p.Reproducible
	}
	if p.StepsToReproduce != nil {
		b.StepsToReproduce = *p.StepsToReproduce
	}
	if p.Tags != nil {
		b.Tags = append([]string{}, (*p.Tags)...)
	}
}

// FieldError describes one violated field constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether the given field is among the violations.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func (e *ValidationError) add(field, format string, a ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, a...)})
}

func (e *ValidationError) errOrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ValidateCreate checks a create input and returns the normalized bug.
// The result has status open and no id or timestamps.
func ValidateCreate(in BugInput) (*Bug, error) {
	ve := &ValidationError{}

	title := strings.TrimSpace(in.Title)
	checkTitle(ve, title)
	desc := strings.TrimSpace(in.Description)
	checkDescription(ve, desc)
	checkPriority(ve, in.Priority)
	assignee := strings.TrimSpace(in.Assignee)
	checkRequired(ve, "assignee", assignee)
	reporter := strings.TrimSpace(in.Reporter)
	checkRequired(ve, "reporter", reporter)
	env := strings.TrimSpace(in.Environment)
	checkRequired(ve, "environment", env)

	if err := ve.errOrNil(); err != nil {
		return nil, err
	}

	b := &Bug{
		Title:            title,
		Description:      desc,
		Priority:         in.Priority,
		Status:           StatusOpen,
		Assignee:         assignee,
		Reporter:         reporter,
		Environment:      env,
		StepsToReproduce: in.StepsToReproduce,
		Tags:             NormalizeTags(in.Tags),
	}
	if in.Reproducible != nil {
		b.Reproducible = *in.Reproducible
	}
	return b, nil
}

// ValidatePatch checks the present fields of a patch and returns a
// normalized copy. An empty patch is valid and yields an empty patch.
func ValidatePatch(in BugPatch) (*BugPatch, error) {
	ve := &ValidationError{}
	out := BugPatch{
		Priority:         in.Priority,
		Status:           in.Status,
		Reproducible:     in.Reproducible,
		StepsToReproduce: in.StepsToReproduce,
	}

	if in.Title != nil {
		v := strings.TrimSpace(*in.Title)
		checkTitle(ve, v)
		out.Title = &v
	}
	if in.Description != nil {
		v := strings.TrimSpace(*in.Description)
		checkDescription(ve, v)
		out.Description = &v
	}
	if in.Priority != nil {
		checkPriority(ve, *in.Priority)
	}
	if in.Status != nil && !in.Status.Valid() {
		ve.add("status", "must be one of: %s", joinStatuses())
	}
	out.Assignee = trimmedRequired(ve, "assignee", in.Assignee)
	out.Reporter = trimmedRequired(ve, "reporter", in.Reporter)
	out.Environment = trimmedRequired(ve, "environment", in.Environment)
	if in.Tags != nil {
		tags := NormalizeTags(*in.Tags)
		out.Tags = &tags
	}

	if err := ve.errOrNil(); err != nil {
		return nil, err
	}
	return &out, nil
}

// NormalizeTags trims each tag, drops empty ones and removes duplicates,
// keeping the first occurrence. The result is never nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func checkTitle(ve *ValidationError, v string) {
	switch n := utf8.RuneCountInString(v); {
	case n == 0:
		ve.add("title", "is required")
	case n > TitleMaxLen:
		ve.add("title", "must be at most %d characters", TitleMaxLen)
	}
}

func checkDescription(ve *ValidationError, v string) {
	switch n := utf8.RuneCountInString(v); {
	case n == 0:
		ve.add("description", "is required")
	case n < DescriptionMinLen || n > DescriptionMaxLen:
		ve.add("description", "must be between %d and %d characters", DescriptionMinLen, DescriptionMaxLen)
	}
}

func checkPriority(ve *ValidationError, p Priority) {
	if p == "" {
		ve.add("priority", "is required")
		return
	}
	if !p.Valid() {
		ve.add("priority", "must be one of: %s", joinPriorities())
	}
}

func checkRequired(ve *ValidationError, field, v string) {
	if v == "" {
		ve.add(field, "is required")
	}
}

func trimmedRequired(ve *ValidationError, field string, v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	checkRequired(ve, field, t)
	return &t
}

func joinStatuses() string {
	all := AllStatuses()
	s := make([]string, len(all))
	for i, v := range all {
		s[i] = string(v)
	}
	return strings.Join(s, ", ")
}

func joinPriorities() string {
	all := AllPriorities()
	s := make([]string, len(all))
	for i, v := range all {
		s[i] = string(v)
	}
	return strings.Join(s, ", ")
}
