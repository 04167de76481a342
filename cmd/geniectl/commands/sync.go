package commands

import (
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync <user-id>",
	Short: "Pull recent Dexcom readings for one user",
	Long: `Run the same merge as POST /api/sync for one user.

Readings already on the timeline are skipped, so running it twice is safe.
Alert notifications for new readings are delivered before the command exits.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, userID string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	// Close drains the notification queue.
	defer a.Close()
	a.Start()

	added, err := a.Sync.Sync(cmd.Context(), userID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, map[string]int{"readings_added": added})
	}
	if added == 0 {
		muted(out, "No new readings for %s", userID)
		return nil
	}
	success(out, "Added %d readings for %s", added, userID)
	return nil
}
