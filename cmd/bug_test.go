package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/bugboard/internal/bugs"
	"github.com/joescharf/bugboard/internal/export"
	"github.com/joescharf/bugboard/internal/git"
	"github.com/joescharf/bugboard/internal/llm"
	"github.com/joescharf/bugboard/internal/models"
	"github.com/joescharf/bugboard/internal/views"
)

func addInput(title string, p models.Priority) models.BugInput {
	return models.BugInput{
		Title:       title,
		Description: "Something goes wrong every time.",
		Priority:    p,
		Assignee:    "dana",
		Reporter:    "lee",
		Environment: "Firefox 128 / Linux",
		Tags:        []string{"ui"},
	}
}

// seedBug files a bug through the service and returns it.
func seedBug(t *testing.T, title string, p models.Priority) *models.Bug {
	t.Helper()
	svc, err := getService()
	require.NoError(t, err)
	b, err := svc.Create(context.Background(), addInput(title, p))
	require.NoError(t, err)
	return b
}

func allBugs(t *testing.T) []*models.Bug {
	t.Helper()
	svc, err := getService()
	require.NoError(t, err)
	list, err := svc.GetAll(context.Background())
	require.NoError(t, err)
	return list
}

func TestBugAddRun(t *testing.T) {
	testEnv(t)
	out, _ := captureUI(t)

	require.NoError(t, bugAddRun(context.Background(), addInput("Save button does nothing", models.PriorityHigh)))
	assert.Contains(t, out.String(), "Filed bug")

	list := allBugs(t)
	require.Len(t, list, 1)
	assert.Equal(t, "Save button does nothing", list[0].Title)
	assert.Equal(t, models.StatusOpen, list[0].Status)
	assert.Equal(t, models.PriorityHigh, list[0].Priority)
}

func TestBugAddRun_GuessesPriority(t *testing.T) {
	testEnv(t)
	out, _ := captureUI(t)

	require.NoError(t, bugAddRun(context.Background(), addInput("App crashes on launch", "")))
	assert.Contains(t, out.String(), "guessed")

	list := allBugs(t)
	require.Len(t, list, 1)
	assert.Equal(t, models.PriorityCritical, list[0].Priority)
}

type fakeGit struct{ name string }

func (f fakeGit) UserName(string) (string, error) { return f.name, nil }

func (f fakeGit) UserEmail(string) (string, error) { return "", git.ErrUnset }

func TestBugAddRun_ReporterFromGit(t *testing.T) {
	testEnv(t)
	captureUI(t)
	orig := gitClient
	gitClient = fakeGit{name: "Robin"}
	t.Cleanup(func() { gitClient = orig })

	in := addInput("Avatar upload spins forever", models.PriorityMedium)
	in.Reporter = ""
	require.NoError(t, bugAddRun(context.Background(), in))

	list := allBugs(t)
	require.Len(t, list, 1)
	assert.Equal(t, "Robin", list[0].Reporter)
}

func TestBugAddRun_ValidationListsFields(t *testing.T) {
	testEnv(t)
	_, errOut := captureUI(t)

	in := addInput("", models.PriorityLow)
	in.Description = "short"
	in.Assignee = ""

	err := bugAddRun(context.Background(), in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 field(s)")
	assert.Contains(t, errOut.String(), "title:")
	assert.Contains(t, errOut.String(), "description:")
	assert.Contains(t, errOut.String(), "assignee:")
	assert.Empty(t, allBugs(t))
}

func TestBugAddRun_DryRun(t *testing.T) {
	testEnv(t)
	dryRun = true
	t.Cleanup(func() { dryRun = false })
	ui.DryRun = true
	_, errOut := captureUI(t)

	require.NoError(t, bugAddRun(context.Background(), addInput("Dry run bug", models.PriorityLow)))
	assert.Contains(t, errOut.String(), "Would file bug")
	assert.Empty(t, allBugs(t))
}

func TestBugInputFromFlags(t *testing.T) {
	cmd := &cobra.Command{}
	addCreateFlags(cmd)
	require.NoError(t, cmd.Flags().Set("title", "Broken link"))
	require.NoError(t, cmd.Flags().Set("priority", "HIGH"))
	require.NoError(t, cmd.Flags().Set("tag", "docs,web"))

	in, err := bugInputFromFlags(cmd)
	require.NoError(t, err)
	assert.Equal(t, "Broken link", in.Title)
	assert.Equal(t, models.PriorityHigh, in.Priority)
	assert.Equal(t, []string{"docs", "web"}, in.Tags)
	assert.Nil(t, in.Reproducible, "unset flag stays absent")

	require.NoError(t, cmd.Flags().Set("reproducible", "true"))
	in, err = bugInputFromFlags(cmd)
	require.NoError(t, err)
	require.NotNil(t, in.Reproducible)
	assert.True(t, *in.Reproducible)
}

func TestBugPatchFromFlags(t *testing.T) {
	cmd := &cobra.Command{}
	addUpdateFlags(cmd)

	_, err := bugPatchFromFlags(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no updates specified")

	require.NoError(t, cmd.Flags().Set("status", "Resolved"))
	require.NoError(t, cmd.Flags().Set("steps", ""))
	require.NoError(t, cmd.Flags().Set("reproducible", "false"))

	p, err := bugPatchFromFlags(cmd)
	require.NoError(t, err)
	require.NotNil(t, p.Status)
	assert.Equal(t, models.StatusResolved, *p.Status)
	require.NotNil(t, p.StepsToReproduce)
	assert.Equal(t, "", *p.StepsToReproduce)
	require.NotNil(t, p.Reproducible)
	assert.False(t, *p.Reproducible)
	assert.Nil(t, p.Title)
	assert.Nil(t, p.Priority)
	assert.Nil(t, p.Tags)
}

func TestCriteriaFromFlags(t *testing.T) {
	tests := []struct {
		name    string
		flags   map[string]string
		want    views.Criteria
		term    string
		wantErr string
	}{
		{name: "none"},
		{
			name:  "all",
			flags: map[string]string{"status": "in-progress", "priority": "critical", "assignee": "dana", "search": "crash"},
			want:  views.Criteria{Status: models.StatusInProgress, Priority: models.PriorityCritical, Assignee: "dana"},
			term:  "crash",
		},
		{name: "bad status", flags: map[string]string{"status": "done"}, wantErr: "--status"},
		{name: "bad priority", flags: map[string]string{"priority": "urgent"}, wantErr: "--priority"},
		{name: "bad reproducible", flags: map[string]string{"reproducible": "maybe"}, wantErr: "--reproducible"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			addFilterFlags(cmd)
			for k, v := range tt.flags {
				require.NoError(t, cmd.Flags().Set(k, v))
			}

			c, term, err := criteriaFromFlags(cmd)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c)
			assert.Equal(t, tt.term, term)
		})
	}
}

func TestCriteriaFromFlags_Reproducible(t *testing.T) {
	cmd := &cobra.Command{}
	addFilterFlags(cmd)
	require.NoError(t, cmd.Flags().Set("reproducible", "false"))

	c, _, err := criteriaFromFlags(cmd)
	require.NoError(t, err)
	require.NotNil(t, c.Reproducible)
	assert.False(t, *c.Reproducible)
}

func TestBugListRun(t *testing.T) {
	testEnv(t)
	seedBug(t, "Login page crash", models.PriorityCritical)
	seedBug(t, "Footer misaligned", models.PriorityLow)
	out, _ := captureUI(t)

	require.NoError(t, bugListRun(context.Background(), views.Criteria{}, ""))
	assert.Contains(t, out.String(), "Login page crash")
	assert.Contains(t, out.String(), "Footer misaligned")

	out.Reset()
	require.NoError(t, bugListRun(context.Background(), views.Criteria{Priority: models.PriorityLow}, ""))
	assert.NotContains(t, out.String(), "Login page crash")
	assert.Contains(t, out.String(), "Footer misaligned")

	out.Reset()
	require.NoError(t, bugListRun(context.Background(), views.Criteria{}, "CRASH"))
	assert.Contains(t, out.String(), "Login page crash")
	assert.NotContains(t, out.String(), "Footer misaligned")
}

func TestBugListRun_Empty(t *testing.T) {
	testEnv(t)
	out, _ := captureUI(t)

	require.NoError(t, bugListRun(context.Background(), views.Criteria{}, ""))
	assert.Contains(t, out.String(), "No bugs found")
}

func TestBugShowRun(t *testing.T) {
	testEnv(t)
	b := seedBug(t, "Search returns stale results", models.PriorityMedium)
	out, _ := captureUI(t)

	require.NoError(t, bugShowRun(context.Background(), b.ID))
	assert.Contains(t, out.String(), "Search returns stale results")
	assert.Contains(t, out.String(), "Firefox 128 / Linux")
	assert.Contains(t, out.String(), b.ID)
}

func TestResolveBug(t *testing.T) {
	testEnv(t)
	b := seedBug(t, "First", models.PriorityLow)
	svc, err := getService()
	require.NoError(t, err)
	ctx := context.Background()

	got, err := resolveBug(ctx, svc, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	got, err = resolveBug(ctx, svc, strings.ToLower(shortID(b.ID)))
	require.NoError(t, err, "lowercase prefix resolves")
	assert.Equal(t, b.ID, got.ID)

	_, err = resolveBug(ctx, svc, "ZZZZZZZZ")
	var nf *bugs.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestResolveBug_Ambiguous(t *testing.T) {
	testEnv(t)
	seedBug(t, "One", models.PriorityLow)
	seedBug(t, "Two", models.PriorityLow)
	svc, err := getService()
	require.NoError(t, err)

	// ULIDs from the same process share the leading timestamp character.
	_, err = resolveBug(context.Background(), svc, "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")
}

func TestBugUpdateRun(t *testing.T) {
	testEnv(t)
	b := seedBug(t, "Stale cache", models.PriorityLow)
	out, _ := captureUI(t)

	status := models.StatusResolved
	require.NoError(t, bugUpdateRun(context.Background(), shortID(b.ID), models.BugPatch{Status: &status}))
	assert.Contains(t, out.String(), "Updated bug")

	list := allBugs(t)
	require.Len(t, list, 1)
	assert.Equal(t, models.StatusResolved, list[0].Status)
	assert.Equal(t, "Stale cache", list[0].Title)
	assert.True(t, list[0].UpdatedAt.After(b.UpdatedAt))
}

func TestBugUpdateRun_Invalid(t *testing.T) {
	testEnv(t)
	b := seedBug(t, "Stale cache", models.PriorityLow)
	_, errOut := captureUI(t)

	status := models.Status("done")
	err := bugUpdateRun(context.Background(), b.ID, models.BugPatch{Status: &status})
	require.Error(t, err)
	assert.Contains(t, errOut.String(), "status:")
}

func TestBugUpdateRun_NotFound(t *testing.T) {
	testEnv(t)
	captureUI(t)

	title := "New"
	err := bugUpdateRun(context.Background(), "01NOPE", models.BugPatch{Title: &title})
	var nf *bugs.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestBugDeleteRun(t *testing.T) {
	testEnv(t)
	b := seedBug(t, "Doomed", models.PriorityLow)
	out, _ := captureUI(t)

	require.NoError(t, bugDeleteRun(context.Background(), b.ID))
	assert.Contains(t, out.String(), "Deleted bug")
	assert.Empty(t, allBugs(t))

	err := bugDeleteRun(context.Background(), b.ID)
	var nf *bugs.NotFoundError
	assert.True(t, errors.As(err, &nf), "second delete is not found")
}

func TestBugDeleteRun_DryRun(t *testing.T) {
	testEnv(t)
	b := seedBug(t, "Survivor", models.PriorityLow)
	dryRun = true
	t.Cleanup(func() { dryRun = false })
	ui.DryRun = true
	captureUI(t)

	require.NoError(t, bugDeleteRun(context.Background(), b.ID))
	assert.Len(t, allBugs(t), 1)
}

type stubTriager struct {
	s   *llm.Suggestion
	err error
}

func (f *stubTriager) TriageBug(ctx context.Context, b *models.Bug) (*llm.Suggestion, error) {
	return f.s, f.err
}

func TestBugTriageRun(t *testing.T) {
	testEnv(t)
	b := seedBug(t, "Checkout spinner never stops", models.PriorityLow)
	out, _ := captureUI(t)

	tr := &stubTriager{s: &llm.Suggestion{
		Priority: models.PriorityHigh,
		Tags:     []string{"checkout", "ui"},
		Summary:  "Checkout hangs after submitting payment.",
	}}

	require.NoError(t, bugTriageRun(context.Background(), tr, b.ID, false))
	assert.Contains(t, out.String(), "Checkout hangs after submitting payment.")
	assert.Equal(t, models.PriorityLow, allBugs(t)[0].Priority, "no apply leaves the bug alone")

	require.NoError(t, bugTriageRun(context.Background(), tr, b.ID, true))
	got := allBugs(t)[0]
	assert.Equal(t, models.PriorityHigh, got.Priority)
	assert.Equal(t, []string{"ui", "checkout"}, got.Tags)
}

func TestBugTriageRun_Error(t *testing.T) {
	testEnv(t)
	b := seedBug(t, "Checkout spinner never stops", models.PriorityLow)
	captureUI(t)

	err := bugTriageRun(context.Background(), &stubTriager{err: errors.New("rate limited")}, b.ID, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestStatsRun(t *testing.T) {
	testEnv(t)
	b := seedBug(t, "One", models.PriorityLow)
	seedBug(t, "Two", models.PriorityHigh)
	status := models.StatusResolved
	svc, err := getService()
	require.NoError(t, err)
	_, err = svc.Update(context.Background(), b.ID, models.BugPatch{Status: &status})
	require.NoError(t, err)
	out, _ := captureUI(t)

	require.NoError(t, statsRun(context.Background(), views.Criteria{}, ""))
	assert.Contains(t, out.String(), "2 bugs, 50% resolved")
	assert.Contains(t, out.String(), "in-progress")
	assert.Contains(t, out.String(), "critical")
}

func TestExportRun_ToFile(t *testing.T) {
	dir := testEnv(t)
	seedBug(t, "First", models.PriorityLow)
	seedBug(t, "Second", models.PriorityHigh)
	captureUI(t)

	path := filepath.Join(dir, "bugs.csv")
	require.NoError(t, exportRun(context.Background(), export.FormatCSV, path, views.Criteria{}, ""))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "First")
	assert.Contains(t, lines[2], "Second")
}

func TestExportRun_Stdout(t *testing.T) {
	testEnv(t)
	seedBug(t, "Only", models.PriorityLow)
	out, _ := captureUI(t)

	require.NoError(t, exportRun(context.Background(), export.FormatMarkdown, "", views.Criteria{}, ""))
	assert.Contains(t, out.String(), "| Only |")
}

func TestImportRun_RoundTrip(t *testing.T) {
	dir := testEnv(t)
	seedBug(t, "Alpha", models.PriorityLow)
	seedBug(t, "Beta", models.PriorityCritical)
	captureUI(t)

	path := filepath.Join(dir, "bugs.jsonl")
	require.NoError(t, exportRun(context.Background(), export.FormatJSONL, path, views.Criteria{}, ""))

	// Import into a fresh store.
	require.NoError(t, dataStore.Close())
	dataStore = nil

	require.NoError(t, importRun(context.Background(), path))
	list := allBugs(t)
	require.Len(t, list, 2)
	assert.Equal(t, "Alpha", list[0].Title)
	assert.Equal(t, "Beta", list[1].Title)
	assert.Equal(t, models.PriorityCritical, list[1].Priority)
}

func TestImportRun_ReportsInvalidRecords(t *testing.T) {
	dir := testEnv(t)
	_, errOut := captureUI(t)

	path := filepath.Join(dir, "in.jsonl")
	content := `{"title":"Good","description":"A long enough description","priority":"low","assignee":"a","reporter":"b","environment":"c"}

{"title":"","description":"short","priority":"low","assignee":"a","reporter":"b","environment":"c"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	err := importRun(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 record(s) failed")
	assert.Contains(t, errOut.String(), "record 2")
	assert.Len(t, allBugs(t), 1)
}

func TestImportRun_MalformedLine(t *testing.T) {
	dir := testEnv(t)
	captureUI(t)

	path := filepath.Join(dir, "bad.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"title\":\"x\"}\nnot json\n"), 0o644))

	err := importRun(context.Background(), path)
	require.Error(t, err)
	var le *export.LineError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 2, le.Line)
	assert.Empty(t, allBugs(t))
}

func TestImportRun_DryRun(t *testing.T) {
	dir := testEnv(t)
	dryRun = true
	t.Cleanup(func() { dryRun = false })
	ui.DryRun = true
	captureUI(t)

	path := filepath.Join(dir, "in.jsonl")
	content := `{"title":"Good","description":"A long enough description","priority":"low","assignee":"a","reporter":"b","environment":"c"}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	require.NoError(t, importRun(context.Background(), path))
	assert.Empty(t, allBugs(t))
}
