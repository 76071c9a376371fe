package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/joescharf/bugboard/internal/export"
	"github.com/joescharf/bugboard/internal/views"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export bugs as json, jsonl, csv or markdown",
	Long: `Export bugs in insertion order. Without --out, the export is written to
stdout. With --out, the file is replaced atomically. Accepts the same filters
as 'bug list'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}
		c, term, err := criteriaFromFlags(cmd)
		if err != nil {
			return err
		}
		return exportRun(context.Background(), f, exportOut, c, term)
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Output format: json, jsonl, csv, markdown")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Write to this file instead of stdout")
	addFilterFlags(exportCmd)
	rootCmd.AddCommand(exportCmd)
}

func exportRun(ctx context.Context, f export.Format, out string, c views.Criteria, term string) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	all, err := svc.GetAll(ctx)
	if err != nil {
		return err
	}
	list := views.Apply(all, c, term)

	if out == "" {
		return export.Write(ui.Out, f, list)
	}

	if dryRun {
		ui.DryRunMsg("Would write %d bugs as %s to %s", len(list), f, out)
		return nil
	}

	if err := export.WriteFile(out, f, list); err != nil {
		return err
	}
	ui.Success("Exported %d bugs to %s", len(list), out)
	return nil
}
