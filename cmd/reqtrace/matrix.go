package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/reqtrace/internal/matrix"
)

var matrixCmd = &cobra.Command{
	Use:     "matrix",
	Short:   "Show the traceability matrix of a project",
	GroupID: "trace",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, _ := cmd.Flags().GetString("project")
		summary, _ := cmd.Flags().GetBool("summary")

		b, err := openBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		rows, err := matrix.Build(cmd.Context(), b.store, project)
		if err != nil {
			return err
		}
		if summary {
			s := matrix.Summarize(project, rows)
			if jsonOutput {
				printJSON(s)
			} else {
				printSummary(os.Stdout, s)
			}
			return nil
		}
		if jsonOutput {
			printJSON(rows)
		} else {
			printMatrix(os.Stdout, rows)
		}
		return nil
	},
}

func init() {
	matrixCmd.Flags().StringP("project", "p", "", "project (required)")
	matrixCmd.Flags().Bool("summary", false, "show coverage and effort totals instead of rows")
	_ = matrixCmd.MarkFlagRequired("project")
}
