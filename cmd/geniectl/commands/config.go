package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and print it with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigCheck(cmd)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configCheckCmd)
}

func runConfigCheck(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	pairs := cfg.Masked()
	if jsonOutput {
		m := make(map[string]string, len(pairs))
		for _, kv := range pairs {
			m[kv[0]] = kv[1]
		}
		return writeJSON(out, m)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, kv := range pairs {
		fmt.Fprintf(tw, "%s\t%s\n", kv[0], kv[1])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if !cfg.DexcomOAuthEnabled() {
		warning(out, "Dexcom OAuth is not configured; users cannot connect accounts")
	}
	if cfg.Notify.SendGridAPIKey == "" {
		warning(out, "SENDGRID_API_KEY is unset; emails will not be sent")
	}
	success(out, "Configuration is valid")
	return nil
}
