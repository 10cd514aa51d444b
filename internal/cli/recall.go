package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recall [query]",
		Short: "Find the memories most relevant to a query",
		Args:  cobra.MinimumNArgs(1),
		Run:   runMemoryRecall,
	}

	cmd.Flags().IntP("k", "k", 0, "Max results (default: memory.retrieval_k)")

	memoryCmd.AddCommand(cmd)
}

func runMemoryRecall(cmd *cobra.Command, args []string) {
	k, _ := cmd.Flags().GetInt("k")
	query := strings.Join(args, " ")

	a := mustOpenApp(false)
	defer a.Close()

	res := a.memory.Retrieve(cmd.Context(), currentCaller(), query, k)

	printResult(res, func(w io.Writer) {
		fmt.Fprintf(w, "tier: %s\n", res.Tier)
		printMemories(w, res.Memories)
	})
}
