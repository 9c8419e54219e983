package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/internal/pipeline"
	"github.com/sells-group/dealflow-cli/internal/store"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List recent job runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		user, _ := cmd.Flags().GetString("user")
		jobType, _ := cmd.Flags().GetString("type")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.JobFilter{
			UserID: user,
			Status: model.JobStatus(status),
			Limit:  limit,
		}
		if jobType != "" {
			stage, err := pipeline.ParseStage(jobType)
			if err != nil {
				return err
			}
			filter.JobType = stage
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.FindJobRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "list job runs")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No job runs found.")
			return nil
		}

		formatJobsList(cmd.OutOrStdout(), runs)
		return nil
	},
}

func formatJobsList(out io.Writer, runs []model.JobRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tUSER\tTYPE\tSTATUS\tPROCESSED\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t----\t----\t------\t---------\t-------\t--------")

	for _, r := range runs {
		dur := "-"
		if r.CompletedAt != nil {
			dur = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			truncateID(r.ID),
			r.UserID,
			r.JobType,
			r.Status,
			r.Progress.Processed,
			r.Progress.Total,
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	jobsCmd.Flags().String("user", "", "filter by user")
	jobsCmd.Flags().String("type", "", "filter by stage (e.g. discovery, outreach-dispatch)")
	jobsCmd.Flags().String("status", "", "filter by status (running, completed, failed)")
	jobsCmd.Flags().Int("limit", 20, "maximum number of runs to show")
	rootCmd.AddCommand(jobsCmd)
}
