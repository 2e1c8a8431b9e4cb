package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/drylogs/internal/model"
	"github.com/sells-group/drylogs/internal/workflow"
)

var actorName string

// -- size --

var sizeCmd = &cobra.Command{
	Use:   "size [job-id]",
	Short: "Recommend drying equipment for a stored job or a job file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		file, _ := cmd.Flags().GetString("file")
		if (len(args) == 0) == (file == "") {
			return eris.New("pass either a job id or --file")
		}

		svc, closeFn, err := initService(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		if file != "" {
			jobs, err := readJobsFile(file)
			if err != nil {
				return err
			}
			out := make([]any, 0, len(jobs))
			for _, j := range jobs {
				out = append(out, svc.SizeJob(j))
			}
			if len(out) == 1 {
				return printJSON(os.Stdout, out[0])
			}
			return printJSON(os.Stdout, out)
		}

		rep, err := svc.Size(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "size")
		}
		return printJSON(os.Stdout, rep)
	},
}

// -- flags --

var flagsCmd = &cobra.Command{
	Use:   "flags <job-id>",
	Short: "Detect red flags on a job",
	Long:  "Runs every detector as of now. With --save the result is reconciled into the stored flag list.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, closeFn, err := initService(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		save, _ := cmd.Flags().GetBool("save")
		if save {
			job, err := svc.Rescan(ctx, args[0], actorName)
			if err != nil {
				return eris.Wrap(err, "flags rescan")
			}
			return printFlags(os.Stdout, job.PSMData.RedFlags)
		}

		flags, err := svc.DetectFlags(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "flags")
		}
		return printFlags(os.Stdout, flags)
	},
}

// -- transition --

var transitionCmd = &cobra.Command{
	Use:   "transition <job-id> <phase> <status>",
	Short: "Move a workflow phase to a new status",
	Long:  "Phases: install, demo, checkService (or check-service), pull. Statuses: pending, in-progress, completed.",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, closeFn, err := initService(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		notes, _ := cmd.Flags().GetString("notes")
		lead, _ := cmd.Flags().GetBool("lead-approved")
		req := workflow.Request{
			Phase:        parsePhase(args[1]),
			To:           model.PhaseStatus(args[2]),
			Technician:   actorName,
			Notes:        notes,
			LeadApproved: lead,
		}
		if lead {
			req.ApprovedBy = actorName
		}

		res, err := svc.Transition(ctx, args[0], req, actorName)
		if ite, ok := workflow.AsInvalidTransition(err); ok {
			return eris.Errorf("transition rejected by %s: %s", ite.Guard, ite.Reason)
		}
		if err != nil {
			return eris.Wrap(err, "transition")
		}

		if !res.Changed {
			fmt.Printf("%s %s already %s (job status %s)\n", args[0], res.Phase, res.To, res.JobStatus)
			return nil
		}
		fmt.Printf("%s %s: %s -> %s (job status %s)\n", args[0], res.Phase, res.From, res.To, res.JobStatus)
		return nil
	},
}

// -- visit --

var visitCmd = &cobra.Command{
	Use:   "visit <job-id>",
	Short: "Record a check-service visit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, closeFn, err := initService(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		verified, _ := cmd.Flags().GetBool("verified")
		dry, _ := cmd.Flags().GetBool("materials-dry")
		notes, _ := cmd.Flags().GetString("notes")
		v := model.Visit{
			Technician:       actorName,
			Notes:            notes,
			ReadingsVerified: verified,
			MaterialsDry:     dry,
			CompletedAt:      timePtr(time.Now().UTC()),
		}

		job, err := svc.AddVisit(ctx, args[0], v, actorName)
		if ite, ok := workflow.AsInvalidTransition(err); ok {
			return eris.Errorf("visit rejected by %s: %s", ite.Guard, ite.Reason)
		}
		if err != nil {
			return eris.Wrap(err, "visit")
		}
		visits := job.WorkflowPhases.CheckService.Visits
		fmt.Printf("%s visit #%d recorded\n", args[0], visits[len(visits)-1].VisitNumber)
		return nil
	},
}

// -- hold --

var holdCmd = &cobra.Command{
	Use:   "hold <job-id>",
	Short: "Place a job on hold, or release it with --release",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, closeFn, err := initService(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		release, _ := cmd.Flags().GetBool("release")
		reason, _ := cmd.Flags().GetString("reason")

		var job *model.Job
		if release {
			job, err = svc.Release(ctx, args[0], actorName)
		} else {
			job, err = svc.Hold(ctx, args[0], reason, actorName)
		}
		if err != nil {
			return eris.Wrap(err, "hold")
		}
		fmt.Printf("%s is %s\n", args[0], job.JobStatus)
		return nil
	},
}

// -- resolve --

var resolveCmd = &cobra.Command{
	Use:   "resolve <job-id> <flag-id>",
	Short: "Resolve a red flag with notes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, closeFn, err := initService(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		notes, _ := cmd.Flags().GetString("notes")
		job, err := svc.ResolveFlag(ctx, args[0], args[1], notes, actorName)
		if err != nil {
			return eris.Wrap(err, "resolve")
		}
		zap.L().Info("flag resolved",
			zap.String("job_id", args[0]),
			zap.String("flag_id", args[1]),
			zap.Int("open_flags", len(job.UnresolvedFlags())),
		)
		return printFlags(os.Stdout, job.PSMData.RedFlags)
	},
}

func timePtr(t time.Time) *time.Time { return &t }

// parsePhase accepts phase names in any case with or without separators,
// so "check-service" and "CHECK_SERVICE" both mean checkService. Unknown
// names pass through for the engine to reject.
func parsePhase(s string) model.Phase {
	key := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
	for _, p := range model.Phases {
		if strings.ToLower(string(p)) == key {
			return p
		}
	}
	return model.Phase(s)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&actorName, "actor", "cli", "name recorded on writes")

	sizeCmd.Flags().String("file", "", "size jobs from a JSON file instead of the store (- for stdin)")

	flagsCmd.Flags().Bool("save", false, "persist the reconciled flag list")

	transitionCmd.Flags().String("notes", "", "transition notes")
	transitionCmd.Flags().Bool("lead-approved", false, "Lead sign-off for pull completion")

	visitCmd.Flags().Bool("verified", false, "moisture readings were verified on this visit")
	visitCmd.Flags().Bool("materials-dry", false, "materials reached dry standard")
	visitCmd.Flags().String("notes", "", "visit notes")

	holdCmd.Flags().String("reason", "", "hold reason (required unless --release)")
	holdCmd.Flags().Bool("release", false, "release the hold")

	resolveCmd.Flags().String("notes", "", "resolution notes (required)")
	_ = resolveCmd.MarkFlagRequired("notes")

	rootCmd.AddCommand(sizeCmd, flagsCmd, transitionCmd, visitCmd, holdCmd, resolveCmd)
}
