package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/reqtrace/internal/importer"
	"github.com/alfredjeanlab/reqtrace/internal/model"
	"github.com/alfredjeanlab/reqtrace/internal/service"
	"github.com/alfredjeanlab/reqtrace/internal/sheet"
	"github.com/alfredjeanlab/reqtrace/internal/store/memory"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import requirements from a spreadsheet (.xlsx) or CSV file",
	Long: `Import requirements from a spreadsheet or CSV file.

Two layouts are understood. A flat list has one requirement per row with
Title, Description, Type, Status, Priority, Source, Effort, Acceptance
Criteria and Tags columns. A hierarchical outline starts with the columns
S/N and Module followed by Level, Item, Description, Effort, Dependencies,
Status and Comments; parents are reconstructed from the levels.

Every row is validated before anything is written. Use --dry-run to
validate and preview against an in-memory store.`,
	GroupID: "requirements",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, _ := cmd.Flags().GetString("project")
		layoutName, _ := cmd.Flags().GetString("layout")
		sheetName, _ := cmd.Flags().GetString("sheet")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		layout, err := sheet.ParseLayout(layoutName)
		if err != nil {
			return err
		}
		raw, err := readRows(args[0], sheetName)
		if err != nil {
			return err
		}

		var svc *service.Service
		if dryRun {
			svc = service.New(memory.New(), service.Options{Logger: logger, IDs: cfg.IDOptions()})
		} else {
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer b.Close()
			svc = b.svc
		}

		res, err := importer.New(svc, logger).ImportSheet(cmd.Context(), raw, layout, project, actor)
		if err != nil {
			var bve *model.BatchValidationError
			if errors.As(err, &bve) {
				printValidationErrors(bve)
				return fmt.Errorf("import rejected: %d invalid row(s), nothing was written", len(bve.Rows))
			}
			return err
		}
		if jsonOutput {
			printJSON(res)
		} else {
			printImportResult(os.Stdout, res, dryRun)
		}
		if res.FailedCount > 0 {
			return fmt.Errorf("%d of %d row(s) failed", res.FailedCount, res.FailedCount+res.SuccessCount)
		}
		return nil
	},
}

// readRows reads path; sheetName selects a worksheet of an xlsx workbook.
func readRows(path, sheetName string) ([]sheet.Row, error) {
	if sheetName == "" {
		return sheet.ReadFile(path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
	default:
		return nil, fmt.Errorf("--sheet applies to xlsx workbooks, not %s", filepath.Base(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return sheet.ReadXLSX(f, sheetName)
}

// printValidationErrors lists each rejected row on stderr.
func printValidationErrors(err *model.BatchValidationError) {
	for _, msg := range err.Messages() {
		fmt.Fprintf(os.Stderr, "  %s\n", msg)
	}
}

func init() {
	importCmd.Flags().StringP("project", "p", "", "project to import into (required)")
	importCmd.Flags().String("layout", "auto", "source layout: auto, flat or hierarchical")
	importCmd.Flags().String("sheet", "", "worksheet name (default: first sheet)")
	importCmd.Flags().Bool("dry-run", false, "validate and preview without writing to the database")
	_ = importCmd.MarkFlagRequired("project")
}
