package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joescharf/bugboard/internal/models"
)

// maxSuggestedTags bounds how many tags a suggestion may carry.
const maxSuggestedTags = 5

// Suggestion is the model's triage proposal for a bug.
type Suggestion struct {
	Priority models.Priority `json:"priority"`
	Tags     []string        `json:"tags"`
	Summary  string          `json:"summary"`
}

// Validate rejects a suggestion that could not be applied as a bug patch.
func (s *Suggestion) Validate() error {
	if !s.Priority.Valid() {
		return fmt.Errorf("invalid suggested priority %q", s.Priority)
	}
	if strings.TrimSpace(s.Summary) == "" {
		return errors.New("empty suggested summary")
	}
	return nil
}

// Patch turns the suggestion into a bug patch. Suggested tags are merged
// after the existing ones; the summary is informational and not applied.
func (s *Suggestion) Patch(existing []string) models.BugPatch {
	p := s.Priority
	tags := models.NormalizeTags(append(append([]string{}, existing...), s.Tags...))
	return models.BugPatch{Priority: &p, Tags: &tags}
}

// Client wraps the Anthropic API for bug triage.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildTriagePrompt constructs the system and user prompts for bug triage.
func buildTriagePrompt(b *models.Bug) (system string, user string) {
	system = `You triage bug reports for an issue tracker. Given a bug report, return a JSON object with exactly three fields:

- "priority": one of "low", "medium", "high", "critical"
- "tags": an array of at most 5 short lowercase tags naming the affected area (for example "ui", "auth", "performance")
- "summary": one sentence describing the defect and its impact

Rules:
- Use "critical" only for crashes, data loss or security problems
- Prefer the reporter's wording for tags when it names a component
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	sb.WriteString("Title: ")
	sb.WriteString(b.Title)
	sb.WriteString("\nDescription: ")
	sb.WriteString(b.Description)
	sb.WriteString("\nEnvironment: ")
	sb.WriteString(b.Environment)
	sb.WriteString("\nCurrent priority: ")
	sb.WriteString(string(b.Priority))
	fmt.Fprintf(&sb, "\nReproducible: %t\n", b.Reproducible)
	if b.StepsToReproduce != "" {
		sb.WriteString("\nSteps to reproduce:\n")
		sb.WriteString(b.StepsToReproduce)
		sb.WriteString("\n")
	}
	if len(b.Tags) > 0 {
		sb.WriteString("\nExisting tags: ")
		sb.WriteString(strings.Join(b.Tags, ", "))
		sb.WriteString("\n")
	}
	user = sb.String()
	return
}

// TriageBug asks the model for a priority, tags and summary for b.
func (c *Client) TriageBug(ctx context.Context, b *models.Bug) (*Suggestion, error) {
	systemPrompt, userPrompt := buildTriagePrompt(b)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return parseSuggestion(text)
}

func parseSuggestion(text string) (*Suggestion, error) {
	text = stripFences(text)

	var s Suggestion
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	s.Priority = models.Priority(strings.ToLower(strings.TrimSpace(string(s.Priority))))
	s.Summary = strings.TrimSpace(s.Summary)
	s.Tags = models.NormalizeTags(s.Tags)
	if len(s.Tags) > maxSuggestedTags {
		s.Tags = s.Tags[:maxSuggestedTags]
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}
