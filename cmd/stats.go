package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joescharf/bugboard/internal/models"
	"github.com/joescharf/bugboard/internal/output"
	"github.com/joescharf/bugboard/internal/views"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show bug counts by status and priority",
	Long:  "Show bug counts by status and priority. Accepts the same filters as 'bug list'.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, term, err := criteriaFromFlags(cmd)
		if err != nil {
			return err
		}
		return statsRun(context.Background(), c, term)
	},
}

func init() {
	addFilterFlags(statsCmd)
	rootCmd.AddCommand(statsCmd)
}

func statsRun(ctx context.Context, c views.Criteria, term string) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	all, err := svc.GetAll(ctx)
	if err != nil {
		return err
	}
	st := views.ComputeStats(views.Apply(all, c, term))

	fmt.Fprintf(ui.Out, "%d bugs, %s resolved\n\n", st.Total, output.PercentColor(st.ResolvedPercentage))

	table := ui.Table([]string{"Status", "Count"})
	for _, s := range models.AllStatuses() {
		_ = table.Append([]string{output.StatusColor(string(s)), strconv.Itoa(st.ByStatus.Status(s))})
	}
	_ = table.Render()
	fmt.Fprintln(ui.Out)

	table = ui.Table([]string{"Priority", "Count"})
	for _, p := range models.AllPriorities() {
		_ = table.Append([]string{output.PriorityColor(string(p)), strconv.Itoa(st.ByPriority.Priority(p))})
	}
	_ = table.Render()
	return nil
}
