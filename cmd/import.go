package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joescharf/bugboard/internal/export"
	"github.com/joescharf/bugboard/internal/models"
	"github.com/joescharf/bugboard/internal/output"
)

var importCmd = &cobra.Command{
	Use:   "import <file.jsonl|->",
	Short: "Import bugs from a JSONL file",
	Long: `Import bugs from a JSONL file, one bug per line. Use - to read stdin.

Each line is validated like a new bug; id, status and timestamps in the file
are ignored, so 'bugboard export --format jsonl' output can be re-imported.
Lines that fail validation are reported and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return importRun(context.Background(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func importRun(ctx context.Context, file string) error {
	var r io.Reader = os.Stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("open import file: %w", err)
		}
		defer f.Close()
		r = f
	}

	inputs, err := export.ReadJSONL(r)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	if len(inputs) == 0 {
		ui.Info("No bugs to import.")
		return nil
	}

	svc, err := getService()
	if err != nil {
		return err
	}

	imported, failed := 0, 0
	for i, in := range inputs {
		if dryRun {
			if _, err := models.ValidateCreate(in); err != nil {
				failed++
				reportImportFailure(i+1, in.Title, err)
				continue
			}
			ui.DryRunMsg("Would import: %s [%s]", in.Title, in.Priority)
			imported++
			continue
		}

		bug, err := svc.Create(ctx, in)
		if err != nil {
			var ve *models.ValidationError
			if !errors.As(err, &ve) {
				return fmt.Errorf("import record %d: %w", i+1, err)
			}
			failed++
			reportImportFailure(i+1, in.Title, err)
			continue
		}
		imported++
		ui.VerboseLog("Imported %s: %s", output.Cyan(shortID(bug.ID)), bug.Title)
	}

	if dryRun {
		ui.Info("%d of %d bugs would be imported", imported, len(inputs))
	} else {
		ui.Success("Imported %d of %d bugs", imported, len(inputs))
	}
	if failed > 0 {
		return fmt.Errorf("%d record(s) failed validation", failed)
	}
	return nil
}

func reportImportFailure(record int, title string, err error) {
	ui.Error("record %d (%q): %v", record, title, err)
}
