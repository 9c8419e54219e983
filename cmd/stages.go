package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/internal/pipeline"
)

// newStageCmd builds a command that runs one stage for one user.
func newStageCmd(use, short string, stage model.JobType) *cobra.Command {
	c := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			env, err := initPipeline(ctx, "pipeline")
			if err != nil {
				return err
			}
			defer env.Close()

			var s *model.Settings
			if stage == model.JobCleanup {
				s = &model.Settings{UserID: pipeline.SystemUser}
			} else {
				user, _ := cmd.Flags().GetString("user")
				s, err = loadSettings(ctx, env.Store, user)
				if err != nil {
					return err
				}
			}

			rep, err := env.Pipeline.Run(ctx, stage, s, pipeline.TriggerManual)
			if err != nil {
				return eris.Wrapf(err, "run %s", stage)
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
	if stage != model.JobCleanup {
		c.Flags().String("user", "", "user whose settings and records to use (required)")
		_ = c.MarkFlagRequired("user")
	}
	return c
}

var (
	discoverCmd = newStageCmd("discover", "Search the company registry for new incorporations", model.JobDiscovery)
	enrichCmd   = newStageCmd("enrich", "Enrich discovered founders and companies", model.JobEnrichment)
	qualifyCmd  = newStageCmd("qualify", "Score companies and advance qualified ones", model.JobQualification)
	matchCmd    = newStageCmd("match", "Match qualified companies to investors", model.JobMatching)
	cleanupCmd  = newStageCmd("cleanup", "Expire rate-limit counters and prune job history", model.JobCleanup)
)

var outreachCmd = &cobra.Command{
	Use:   "outreach",
	Short: "Queue and send founder outreach",
}

var (
	outreachQueueCmd    = newStageCmd("queue", "Queue outreach for newly qualified founders", model.JobOutreachQueue)
	outreachDispatchCmd = newStageCmd("dispatch", "Send due outreach emails", model.JobOutreachDispatch)
)

func init() {
	outreachCmd.AddCommand(outreachQueueCmd, outreachDispatchCmd)
	rootCmd.AddCommand(discoverCmd, enrichCmd, qualifyCmd, matchCmd, cleanupCmd, outreachCmd)
}
