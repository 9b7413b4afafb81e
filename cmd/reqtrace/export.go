package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/reqtrace/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the traceability matrix as JSONL",
	Long: `Export the traceability matrix of a project as JSON lines: a header
record, one record per requirement and a closing summary record.

Without --out or --s3 the export is written to stdout. With --interval the
export repeats until interrupted.`,
	GroupID: "trace",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, _ := cmd.Flags().GetString("project")
		out, _ := cmd.Flags().GetString("out")
		toS3, _ := cmd.Flags().GetBool("s3")
		interval := cfg.ExportInterval
		if cmd.Flags().Changed("interval") {
			interval, _ = cmd.Flags().GetDuration("interval")
		}

		var dests []export.Destination
		if out != "" && out != "-" {
			dests = append(dests, export.FileDestination{Path: out})
		}
		if toS3 {
			opts, ok := cfg.S3Options()
			if !ok {
				return errors.New("--s3 requires REQTRACE_EXPORT_S3_BUCKET")
			}
			dest, err := export.NewS3Destination(cmd.Context(), opts)
			if err != nil {
				return err
			}
			dests = append(dests, dest)
		}
		if len(dests) == 0 || out == "-" {
			dests = append(dests, export.WriterDestination{W: os.Stdout})
		}

		b, err := openBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		if interval <= 0 {
			return export.Deliver(cmd.Context(), b.store, project, dests, logger)
		}

		scheduler := export.NewScheduler(b.store, project, dests, interval, logger)
		scheduler.Start()
		logger.Info("export scheduler started", "project_id", project, "interval", interval)
		<-cmd.Context().Done()
		scheduler.Stop()
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("project", "p", "", "project (required)")
	exportCmd.Flags().StringP("out", "o", "", "write to this file (\"-\" for stdout)")
	exportCmd.Flags().Bool("s3", false, "upload to the configured S3 bucket")
	exportCmd.Flags().Duration("interval", 0, "repeat the export on this interval (default REQTRACE_EXPORT_INTERVAL)")
	_ = exportCmd.MarkFlagRequired("project")
}
