package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a memory permanently",
		Long:  "Delete a memory permanently. Use 'memory update --inactive' to hide it from context instead.",
		Args:  cobra.ExactArgs(1),
		Run:   runMemoryRm,
	}

	memoryCmd.AddCommand(cmd)
}

func runMemoryRm(cmd *cobra.Command, args []string) {
	a := mustOpenApp(false)
	defer a.Close()

	if err := a.memory.Delete(cmd.Context(), currentCaller(), args[0]); err != nil {
		exitErr("memory rm", err)
	}

	fmt.Printf(`{"ok":true,"deleted":%q}`+"\n", args[0])
}
