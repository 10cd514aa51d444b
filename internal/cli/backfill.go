package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Embed memories stored without an embedding",
		Run:   runMemoryBackfill,
	}

	cmd.Flags().IntP("limit", "l", 500, "Max memories to embed")

	memoryCmd.AddCommand(cmd)
}

func runMemoryBackfill(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	a := mustOpenApp(false)
	defer a.Close()

	if a.embedder == nil {
		exitErr("memory backfill", fmt.Errorf("no embedding provider configured"))
	}

	n, err := a.memory.BackfillEmbeddings(cmd.Context(), limit)
	if err != nil {
		exitErr("memory backfill", fmt.Errorf("embedded %d before failing: %w", n, err))
	}

	fmt.Printf(`{"ok":true,"embedded":%d}`+"\n", n)
}
