package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/drylogs/internal/model"
	"github.com/sells-group/drylogs/internal/store"
)

var (
	reportFormat string
	reportOut    string
)

// -- queue --

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show the review queue in priority order",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		svc, closeFn, err := initService(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		limit, _ := cmd.Flags().GetInt("limit")
		status, _ := cmd.Flags().GetString("status")
		filter := store.JobFilter{Status: model.JobStatus(status)}
		if filter.Status != "" && !filter.Status.Valid() {
			return eris.Errorf("unknown job status %q", status)
		}

		items, err := svc.ReviewQueue(ctx, filter, limit)
		if err != nil {
			return eris.Wrap(err, "queue")
		}
		return writeReport(reportFormat, reportOut, newReportBuilder().Queue(items), items)
	},
}

// -- bottlenecks --

var bottlenecksCmd = &cobra.Command{
	Use:   "bottlenecks",
	Short: "Group jobs stuck for the same reason",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		svc, closeFn, err := initService(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		out, err := svc.Bottlenecks(ctx)
		if err != nil {
			return eris.Wrap(err, "bottlenecks")
		}
		return writeReport(reportFormat, reportOut, newReportBuilder().Bottlenecks(out), out)
	},
}

// -- analytics --

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Summarize review throughput",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		svc, closeFn, err := initService(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		out, err := svc.Analytics(ctx)
		if err != nil {
			return eris.Wrap(err, "analytics")
		}
		return writeReport(reportFormat, reportOut, newReportBuilder().Analytics(out), out)
	},
}

func init() {
	for _, c := range []*cobra.Command{queueCmd, bottlenecksCmd, analyticsCmd} {
		c.Flags().StringVar(&reportFormat, "format", formatTable, "output format: table, json, csv, xlsx")
		c.Flags().StringVar(&reportOut, "out", "", "write to this file instead of stdout")
	}
	queueCmd.Flags().Int("limit", 0, "max jobs to show (default from engine.queue.limit)")
	queueCmd.Flags().String("status", "", "only jobs with this job status")

	rootCmd.AddCommand(queueCmd, bottlenecksCmd, analyticsCmd)
}
