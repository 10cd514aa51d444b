package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	a := mustOpenApp(false)
	defer a.Close()

	stats, err := a.store.Stats(cmd.Context(), a.cfg.DBPath)
	if err != nil {
		exitErr("stats", err)
	}

	printResult(stats, func(w io.Writer) {
		fmt.Fprintf(w, "db:        %s (%d bytes, schema v%d)\n", stats.DBPath, stats.DBSizeBytes, stats.SchemaVersion)
		fmt.Fprintf(w, "memories:  %d total, %d active, %d pinned, %d global, %d embedded\n",
			stats.TotalMemories, stats.ActiveMemories, stats.PinnedMemories, stats.GlobalMemories, stats.EmbeddedMemories)
		fmt.Fprintf(w, "sessions:  %d (%d messages)\n", stats.Sessions, stats.Messages)
		for _, c := range stats.Categories {
			name := c.Category
			if name == "" {
				name = "(none)"
			}
			fmt.Fprintf(w, "  %-18s %d\n", name, c.Count)
		}
	})
}
