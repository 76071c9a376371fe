package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/bugboard/internal/bugs"
	"github.com/joescharf/bugboard/internal/git"
	"github.com/joescharf/bugboard/internal/llm"
	"github.com/joescharf/bugboard/internal/models"
	"github.com/joescharf/bugboard/internal/output"
	"github.com/joescharf/bugboard/internal/views"
)

var triageApply bool

// gitClient supplies the default reporter, replaceable in tests.
var gitClient git.Client = git.NewClient()

var bugCmd = &cobra.Command{
	Use:   "bug",
	Short: "Manage bug reports",
	Long:  "File, list, update and triage bug reports in the local store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugListRun(context.Background(), views.Criteria{}, "")
	},
}

var bugAddCmd = &cobra.Command{
	Use:   "add",
	Short: "File a new bug",
	Long: `File a new bug. Title, description, assignee, reporter and environment
are required. Without --priority, the priority is guessed from the title and
description. Without --reporter, git user.name is used.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := bugInputFromFlags(cmd)
		if err != nil {
			return err
		}
		return bugAddRun(context.Background(), in)
	},
}

var bugListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List bugs",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, term, err := criteriaFromFlags(cmd)
		if err != nil {
			return err
		}
		return bugListRun(context.Background(), c, term)
	},
}

var bugShowCmd = &cobra.Command{
	Use:   "show <bug-id>",
	Short: "Show bug details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugShowRun(context.Background(), args[0])
	},
}

var bugUpdateCmd = &cobra.Command{
	Use:   "update <bug-id>",
	Short: "Update a bug",
	Long:  "Update any field of a bug. Only the flags you pass are changed.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := bugPatchFromFlags(cmd)
		if err != nil {
			return err
		}
		return bugUpdateRun(context.Background(), args[0], patch)
	},
}

var bugDeleteCmd = &cobra.Command{
	Use:     "delete <bug-id>",
	Aliases: []string{"rm"},
	Short:   "Delete a bug",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugDeleteRun(context.Background(), args[0])
	},
}

var bugTriageCmd = &cobra.Command{
	Use:   "triage <bug-id>",
	Short: "Ask the LLM for a priority, tags and summary",
	Long: `Ask the configured Anthropic model to triage a bug. Requires
anthropic.api_key or ANTHROPIC_API_KEY. With --apply, the suggested priority
is set and the suggested tags are merged into the bug.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newLLMClient()
		if client == nil {
			return fmt.Errorf("no Anthropic API key configured (set anthropic.api_key or ANTHROPIC_API_KEY)")
		}
		return bugTriageRun(cmd.Context(), client, args[0], triageApply)
	},
}

func init() {
	addCreateFlags(bugAddCmd)
	addFilterFlags(bugListCmd)
	addUpdateFlags(bugUpdateCmd)
	bugTriageCmd.Flags().BoolVar(&triageApply, "apply", false, "Apply the suggested priority and tags")

	bugCmd.AddCommand(bugAddCmd)
	bugCmd.AddCommand(bugListCmd)
	bugCmd.AddCommand(bugShowCmd)
	bugCmd.AddCommand(bugUpdateCmd)
	bugCmd.AddCommand(bugDeleteCmd)
	bugCmd.AddCommand(bugTriageCmd)
	rootCmd.AddCommand(bugCmd)
}

// addCreateFlags registers the fields of a new bug on cmd.
func addCreateFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("title", "", "Bug title (required)")
	f.String("desc", "", "Bug description, at least 10 characters (required)")
	f.String("priority", "", "Priority: low, medium, high, critical (guessed when omitted)")
	f.String("assignee", "", "Assignee (required)")
	f.String("reporter", "", "Reporter (defaults to git user.name)")
	f.String("env", "", "Environment, e.g. \"Chrome 120 / macOS\" (required)")
	f.Bool("reproducible", false, "Bug can be reproduced")
	f.String("steps", "", "Steps to reproduce")
	f.StringSlice("tag", nil, "Tag to apply (repeatable or comma separated)")
}

// addUpdateFlags registers every patchable field on cmd.
func addUpdateFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("title", "", "New title")
	f.String("desc", "", "New description")
	f.String("priority", "", "New priority: low, medium, high, critical")
	f.String("status", "", "New status: open, in-progress, resolved, closed")
	f.String("assignee", "", "New assignee")
	f.String("reporter", "", "New reporter")
	f.String("env", "", "New environment")
	f.Bool("reproducible", false, "Bug can be reproduced (use --reproducible=false to clear)")
	f.String("steps", "", "New steps to reproduce (empty clears)")
	f.StringSlice("tag", nil, "Replace tags (repeatable or comma separated)")
}

// addFilterFlags registers the list filters on cmd.
func addFilterFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("status", "", "Filter by status: open, in-progress, resolved, closed")
	f.String("priority", "", "Filter by priority: low, medium, high, critical")
	f.String("assignee", "", "Filter by assignee")
	f.String("reproducible", "", "Filter by reproducibility: true or false")
	f.String("search", "", "Case-insensitive search over title, description, people and tags")
}

func bugInputFromFlags(cmd *cobra.Command) (models.BugInput, error) {
	f := cmd.Flags()
	var in models.BugInput
	in.Title, _ = f.GetString("title")
	in.Description, _ = f.GetString("desc")
	priority, _ := f.GetString("priority")
	in.Priority = models.Priority(strings.ToLower(priority))
	in.Assignee, _ = f.GetString("assignee")
	in.Reporter, _ = f.GetString("reporter")
	in.Environment, _ = f.GetString("env")
	in.StepsToReproduce, _ = f.GetString("steps")
	in.Tags, _ = f.GetStringSlice("tag")
	if f.Changed("reproducible") {
		v, err := f.GetBool("reproducible")
		if err != nil {
			return in, err
		}
		in.Reproducible = &v
	}
	return in, nil
}

// bugPatchFromFlags builds a patch from the flags the user actually set.
func bugPatchFromFlags(cmd *cobra.Command) (models.BugPatch, error) {
	f := cmd.Flags()
	var p models.BugPatch

	str := func(name string) *string {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetString(name)
		return &v
	}

	p.Title = str("title")
	p.Description = str("desc")
	p.Assignee = str("assignee")
	p.Reporter = str("reporter")
	p.Environment = str("env")
	p.StepsToReproduce = str("steps")
	if v := str("priority"); v != nil {
		pr := models.Priority(strings.ToLower(*v))
		p.Priority = &pr
	}
	if v := str("status"); v != nil {
		st := models.Status(strings.ToLower(*v))
		p.Status = &st
	}
	if f.Changed("reproducible") {
		v, err := f.GetBool("reproducible")
		if err != nil {
			return p, err
		}
		p.Reproducible = &v
	}
	if f.Changed("tag") {
		tags, _ := f.GetStringSlice("tag")
		p.Tags = &tags
	}

	if p.IsEmpty() {
		return p, fmt.Errorf("no updates specified (use --status, --priority, --title, --desc, --assignee, --reporter, --env, --reproducible, --steps or --tag)")
	}
	return p, nil
}

// criteriaFromFlags reads the list filters and the search term.
func criteriaFromFlags(cmd *cobra.Command) (views.Criteria, string, error) {
	f := cmd.Flags()
	var c views.Criteria

	status, _ := f.GetString("status")
	if status != "" {
		c.Status = models.Status(strings.ToLower(status))
		if !c.Status.Valid() {
			return c, "", fmt.Errorf("invalid --status %q (want open, in-progress, resolved or closed)", status)
		}
	}
	priority, _ := f.GetString("priority")
	if priority != "" {
		c.Priority = models.Priority(strings.ToLower(priority))
		if !c.Priority.Valid() {
			return c, "", fmt.Errorf("invalid --priority %q (want low, medium, high or critical)", priority)
		}
	}
	c.Assignee, _ = f.GetString("assignee")
	if repro, _ := f.GetString("reproducible"); repro != "" {
		v, err := strconv.ParseBool(repro)
		if err != nil {
			return c, "", fmt.Errorf("invalid --reproducible %q (want true or false)", repro)
		}
		c.Reproducible = &v
	}
	term, _ := f.GetString("search")
	return c, term, nil
}

func bugAddRun(ctx context.Context, in models.BugInput) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	if strings.TrimSpace(in.Reporter) == "" {
		if name, err := git.Reporter(gitClient, "."); err == nil {
			in.Reporter = name
			ui.VerboseLog("Reporter from git config: %s", name)
		}
	}
	if in.Priority == "" {
		in.Priority = classifyPriority(in.Title + " " + in.Description)
		ui.Info("Priority guessed from text: %s", output.PriorityColor(string(in.Priority)))
	}

	if dryRun {
		if _, err := models.ValidateCreate(in); err != nil {
			return reportBugError(err)
		}
		ui.DryRunMsg("Would file bug: %s [%s] assigned to %s", in.Title, in.Priority, in.Assignee)
		return nil
	}

	bug, err := svc.Create(ctx, in)
	if err != nil {
		return reportBugError(err)
	}

	ui.Success("Filed bug %s: %s", output.Cyan(shortID(bug.ID)), bug.Title)
	return nil
}

func bugListRun(ctx context.Context, c views.Criteria, term string) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	all, err := svc.GetAll(ctx)
	if err != nil {
		return err
	}
	list := views.Apply(all, c, term)

	if len(list) == 0 {
		ui.Info("No bugs found.")
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "Status", "Priority", "Assignee", "Repro", "Tags"})
	for _, b := range list {
		repro := ""
		if b.Reproducible {
			repro = "yes"
		}
		_ = table.Append([]string{
			shortID(b.ID),
			b.Title,
			output.StatusColor(string(b.Status)),
			output.PriorityColor(string(b.Priority)),
			b.Assignee,
			repro,
			strings.Join(b.Tags, ", "),
		})
	}
	_ = table.Render()
	ui.VerboseLog("%d of %d bugs shown", len(list), len(all))
	return nil
}

func bugShowRun(ctx context.Context, id string) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	bug, err := resolveBug(ctx, svc, id)
	if err != nil {
		return err
	}

	printBug(bug)
	return nil
}

func printBug(bug *models.Bug) {
	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(shortID(bug.ID)), bug.Title)
	ui.Field("Status", output.StatusColor(string(bug.Status)))
	ui.Field("Priority", output.PriorityColor(string(bug.Priority)))
	ui.Field("Assignee", bug.Assignee)
	ui.Field("Reporter", bug.Reporter)
	ui.Field("Environment", bug.Environment)
	ui.Field("Reproducible", strconv.FormatBool(bug.Reproducible))
	ui.Field("Description", bug.Description)
	if bug.StepsToReproduce != "" {
		ui.Field("Steps", bug.StepsToReproduce)
	}
	if len(bug.Tags) > 0 {
		ui.Field("Tags", strings.Join(bug.Tags, ", "))
	}
	ui.Field("Created", bug.CreatedAt.Format(time.RFC3339))
	ui.Field("Updated", bug.UpdatedAt.Format(time.RFC3339))
	ui.Field("Full ID", bug.ID)
}

func bugUpdateRun(ctx context.Context, id string, patch models.BugPatch) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	bug, err := resolveBug(ctx, svc, id)
	if err != nil {
		return err
	}

	if dryRun {
		if _, err := models.ValidatePatch(patch); err != nil {
			return reportBugError(err)
		}
		ui.DryRunMsg("Would update bug %s", shortID(bug.ID))
		return nil
	}

	updated, err := svc.Update(ctx, bug.ID, patch)
	if err != nil {
		return reportBugError(err)
	}

	ui.Success("Updated bug %s (%s)", output.Cyan(shortID(updated.ID)), output.StatusColor(string(updated.Status)))
	return nil
}

func bugDeleteRun(ctx context.Context, id string) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	bug, err := resolveBug(ctx, svc, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would delete bug %s: %s", shortID(bug.ID), bug.Title)
		return nil
	}

	if err := svc.Delete(ctx, bug.ID); err != nil {
		return err
	}

	ui.Success("Deleted bug %s: %s", output.Cyan(shortID(bug.ID)), bug.Title)
	return nil
}

// triager is the part of the LLM client the triage command needs.
type triager interface {
	TriageBug(ctx context.Context, b *models.Bug) (*llm.Suggestion, error)
}

func bugTriageRun(ctx context.Context, t triager, id string, apply bool) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	bug, err := resolveBug(ctx, svc, id)
	if err != nil {
		return err
	}

	ui.VerboseLog("Asking model to triage %s", shortID(bug.ID))
	s, err := t.TriageBug(ctx, bug)
	if err != nil {
		return fmt.Errorf("triage bug: %w", err)
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(shortID(bug.ID)), bug.Title)
	ui.Field("Priority", fmt.Sprintf("%s -> %s", output.PriorityColor(string(bug.Priority)), output.PriorityColor(string(s.Priority))))
	ui.Field("Tags", strings.Join(s.Tags, ", "))
	ui.Field("Summary", s.Summary)

	if !apply {
		return nil
	}
	if dryRun {
		ui.DryRunMsg("Would apply suggestion to bug %s", shortID(bug.ID))
		return nil
	}

	if _, err := svc.Update(ctx, bug.ID, s.Patch(bug.Tags)); err != nil {
		return reportBugError(err)
	}
	ui.Success("Applied suggestion to bug %s", output.Cyan(shortID(bug.ID)))
	return nil
}

// resolveBug finds a bug by full ID or unique prefix.
func resolveBug(ctx context.Context, svc *bugs.Service, id string) (*models.Bug, error) {
	bug, err := svc.Get(ctx, id)
	if err == nil {
		return bug, nil
	}
	var nf *bugs.NotFoundError
	if !errors.As(err, &nf) {
		return nil, err
	}

	// Try prefix match
	upper := strings.ToUpper(strings.TrimSpace(id))
	if upper == "" {
		return nil, err
	}
	all, err := svc.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var matches []*models.Bug
	for _, b := range all {
		if strings.HasPrefix(b.ID, upper) {
			matches = append(matches, b)
		}
	}

	switch len(matches) {
	case 0:
		return nil, &bugs.NotFoundError{ID: id}
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous bug ID %s: matches %d bugs", id, len(matches))
	}
}

// reportBugError prints each field of a validation error before returning it.
func reportBugError(err error) error {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		for _, f := range ve.Fields {
			ui.Error("%s: %s", f.Field, f.Message)
		}
		return fmt.Errorf("invalid bug: %d field(s) rejected", len(ve.Fields))
	}
	return err
}

// shortID returns a truncated ULID for display (first 12 chars).
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
