package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/dealflow-cli/internal/fetcher"
	"github.com/sells-group/dealflow-cli/internal/model"
)

var investorsCmd = &cobra.Command{
	Use:   "investors",
	Short: "Load investors from spreadsheets or Notion",
}

var investorsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import investors from an XLSX spreadsheet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		user, _ := cmd.Flags().GetString("user")
		path, _ := cmd.Flags().GetString("file")
		sheet, _ := cmd.Flags().GetString("sheet")
		skip, _ := cmd.Flags().GetInt("skip-rows")

		env, err := initPipeline(ctx, "pipeline")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.ImportInvestors(ctx, user, path, fetcher.XLSXOptions{
			SheetName: sheet,
			SkipRows:  skip,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var investorsSyncCmd = newStageCmd("sync", "Sync investors from the user's Notion database", model.JobInvestorSync)

func init() {
	investorsImportCmd.Flags().String("user", "", "user who owns the investors (required)")
	investorsImportCmd.Flags().String("file", "", "path to the XLSX file (required)")
	investorsImportCmd.Flags().String("sheet", "", "sheet name (default: first sheet)")
	investorsImportCmd.Flags().Int("skip-rows", 0, "rows to skip before the header")
	_ = investorsImportCmd.MarkFlagRequired("user")
	_ = investorsImportCmd.MarkFlagRequired("file")

	investorsCmd.AddCommand(investorsImportCmd, investorsSyncCmd)
	rootCmd.AddCommand(investorsCmd)
}
