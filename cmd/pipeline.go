package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/internal/pipeline"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run the full sourcing pipeline",
}

var pipelineRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage in order for one user, or for all users",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "pipeline")
		if err != nil {
			return err
		}
		defer env.Close()

		var users []model.Settings
		if user, _ := cmd.Flags().GetString("user"); user != "" {
			s, err := loadSettings(ctx, env.Store, user)
			if err != nil {
				return err
			}
			users = []model.Settings{*s}
		} else {
			users, err = env.Store.ListSettings(ctx)
			if err != nil {
				return eris.Wrap(err, "list settings")
			}
		}
		if len(users) == 0 {
			zap.L().Warn("no users configured")
			return nil
		}

		var all []pipeline.Report
		var failed int
		for i := range users {
			reports, err := env.Pipeline.RunAll(ctx, &users[i], pipeline.TriggerManual)
			all = append(all, reports...)
			if err != nil {
				failed++
				zap.L().Error("pipeline failed", zap.String("user", users[i].UserID), zap.Error(err))
			}
		}
		if err := printJSON(cmd.OutOrStdout(), all); err != nil {
			return err
		}
		if failed > 0 {
			return eris.Errorf("pipeline failed for %d of %d users", failed, len(users))
		}
		return nil
	},
}

func init() {
	pipelineRunCmd.Flags().String("user", "", "run for a single user (default: every user with settings)")
	pipelineCmd.AddCommand(pipelineRunCmd)
	rootCmd.AddCommand(pipelineCmd)
}
