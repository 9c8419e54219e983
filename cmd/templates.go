package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dealflow-cli/internal/model"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage outreach templates",
}

var templatesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an outreach template from a file",
	Long: "Stores a template body read from --body-file. Bodies may use {{first_name}}, {{last_name}}, {{name}}, " +
		"{{company}}, {{headline}}, {{opener}}, {{sender_name}} and {{sender_company}}.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		user, _ := cmd.Flags().GetString("user")
		name, _ := cmd.Flags().GetString("name")
		channel, _ := cmd.Flags().GetString("channel")
		subject, _ := cmd.Flags().GetString("subject")
		bodyFile, _ := cmd.Flags().GetString("body-file")
		isDefault, _ := cmd.Flags().GetBool("default")

		t, err := buildTemplate(user, name, channel, subject, bodyFile, isDefault)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.PutTemplate(ctx, t); err != nil {
			return eris.Wrap(err, "save template")
		}
		return printJSON(cmd.OutOrStdout(), t)
	},
}

func buildTemplate(user, name, channel, subject, bodyFile string, isDefault bool) (*model.Template, error) {
	ch := model.Channel(channel)
	switch ch {
	case model.ChannelEmail:
		if subject == "" {
			return nil, eris.New("--subject is required for email templates")
		}
	case model.ChannelLinkedIn:
	default:
		return nil, eris.Errorf("unknown channel %q (email or linkedin)", channel)
	}

	body, err := os.ReadFile(bodyFile)
	if err != nil {
		return nil, eris.Wrap(err, "read template body")
	}
	if len(body) == 0 {
		return nil, eris.New("template body is empty")
	}

	return &model.Template{
		UserID:    user,
		Name:      name,
		Channel:   ch,
		Subject:   subject,
		Body:      string(body),
		IsDefault: isDefault,
	}, nil
}

func init() {
	templatesAddCmd.Flags().String("user", "", "owning user (required)")
	templatesAddCmd.Flags().String("name", "", "template name (required)")
	templatesAddCmd.Flags().String("channel", string(model.ChannelEmail), "channel: email or linkedin")
	templatesAddCmd.Flags().String("subject", "", "email subject line")
	templatesAddCmd.Flags().String("body-file", "", "path to the template body (required)")
	templatesAddCmd.Flags().Bool("default", false, "make this the user's default for the channel")
	for _, f := range []string{"user", "name", "body-file"} {
		_ = templatesAddCmd.MarkFlagRequired(f)
	}

	templatesCmd.AddCommand(templatesAddCmd)
	rootCmd.AddCommand(templatesCmd)
}
