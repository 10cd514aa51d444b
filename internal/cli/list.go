package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/vox-os/vox-memory/internal/memory"
)

func init() {
	list := &cobra.Command{
		Use:   "list",
		Short: "List memories, newest first",
		Run:   runMemoryList,
	}

	list.Flags().Bool("all-users", false, "List every user's memories (requires --admin)")
	list.Flags().Bool("active", false, "Only active memories")
	list.Flags().IntP("limit", "l", 0, "Max results (0 = no limit)")

	core := &cobra.Command{
		Use:   "core",
		Short: "List the memories always included in context",
		Run:   runMemoryCore,
	}

	memoryCmd.AddCommand(list, core)
}

func runMemoryList(cmd *cobra.Command, args []string) {
	allUsers, _ := cmd.Flags().GetBool("all-users")
	active, _ := cmd.Flags().GetBool("active")
	limit, _ := cmd.Flags().GetInt("limit")

	a := mustOpenApp(false)
	defer a.Close()

	mems, err := a.memory.List(cmd.Context(), currentCaller(), memory.ListParams{
		AllOwners:  allUsers,
		ActiveOnly: active,
		Limit:      limit,
	})
	if err != nil {
		exitErr("memory list", err)
	}

	printResult(mems, func(w io.Writer) { printMemories(w, mems) })
}

func runMemoryCore(cmd *cobra.Command, args []string) {
	a := mustOpenApp(false)
	defer a.Close()

	mems, err := a.memory.Core(cmd.Context(), currentCaller().UserID)
	if err != nil {
		exitErr("memory core", err)
	}

	printResult(mems, func(w io.Writer) { printMemories(w, mems) })
}
