package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importPath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import job snapshots from JSON",
	Long:  "Reads a JSON array or one job per line. A snapshot only replaces a stored job when its version is newer.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		jobs, err := readJobsFile(importPath)
		if err != nil {
			return err
		}

		svc, closeFn, err := initService(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		written, err := svc.Import(ctx, jobs, actorName)
		if err != nil {
			return eris.Wrap(err, "import jobs")
		}

		zap.L().Info("import complete",
			zap.Int("read", len(jobs)),
			zap.Int64("written", written),
			zap.String("file", importPath),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importPath, "file", "", "path to the JSON file, - for stdin (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
