package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dealflow-cli/internal/model"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage per-user settings",
}

var settingsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Load user settings from a YAML file",
	Long:  "Reads a YAML document with a top-level users list and upserts each entry by user_id.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		path, _ := cmd.Flags().GetString("file")

		f, err := os.Open(path)
		if err != nil {
			return eris.Wrap(err, "open settings file")
		}
		defer f.Close() //nolint:errcheck

		users, err := parseSettings(f)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		for i := range users {
			if err := st.PutSettings(ctx, &users[i]); err != nil {
				return eris.Wrapf(err, "save settings for %s", users[i].UserID)
			}
		}
		zap.L().Info("settings imported", zap.Int("users", len(users)), zap.String("file", path))
		return nil
	},
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users and which API keys they have configured",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		users, err := st.ListSettings(ctx)
		if err != nil {
			return eris.Wrap(err, "list settings")
		}
		if len(users) == 0 {
			fmt.Fprintln(os.Stderr, "No users configured.")
			return nil
		}
		formatSettingsList(cmd.OutOrStdout(), users)
		return nil
	},
}

// parseSettings decodes a users document. Every entry needs a user_id and
// ids must be unique.
func parseSettings(r io.Reader) ([]model.Settings, error) {
	var doc struct {
		Users []model.Settings `yaml:"users"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, eris.Wrap(err, "parse settings file")
	}
	if len(doc.Users) == 0 {
		return nil, eris.New("settings file has no users")
	}
	seen := make(map[string]bool, len(doc.Users))
	for i, u := range doc.Users {
		id := strings.TrimSpace(u.UserID)
		if id == "" {
			return nil, eris.Errorf("users[%d]: user_id is required", i)
		}
		if seen[id] {
			return nil, eris.Errorf("users[%d]: duplicate user_id %q", i, id)
		}
		seen[id] = true
		doc.Users[i].UserID = id
	}
	return doc.Users, nil
}

func formatSettingsList(out io.Writer, users []model.Settings) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "USER\tSENDER\tAUTO_OUTREACH\tKEYS")
	_, _ = fmt.Fprintln(w, "----\t------\t-------------\t----")
	for _, u := range users {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", u.UserID, u.SenderEmail, u.AutoOutreach, strings.Join(configuredKeys(u), ","))
	}
	_ = w.Flush()
}

func configuredKeys(s model.Settings) []string {
	keys := []struct {
		name string
		val  string
	}{
		{"registry", s.CompaniesHouseKey},
		{"search", s.ExaKey},
		{"apollo", s.ApolloKey},
		{"hunter", s.HunterKey},
		{"github", s.GitHubToken},
		{"resend", s.ResendKey},
		{"anthropic", s.AnthropicKey},
		{"notion", s.NotionToken},
	}
	var out []string
	for _, k := range keys {
		if k.val != "" {
			out = append(out, k.name)
		}
	}
	if len(out) == 0 {
		return []string{"-"}
	}
	return out
}

func init() {
	settingsImportCmd.Flags().String("file", "", "path to the settings YAML (required)")
	_ = settingsImportCmd.MarkFlagRequired("file")

	settingsCmd.AddCommand(settingsImportCmd, settingsListCmd)
	rootCmd.AddCommand(settingsCmd)
}
