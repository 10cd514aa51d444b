package cli

import (
	"io"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Show one memory",
		Args:  cobra.ExactArgs(1),
		Run:   runMemoryGet,
	}

	memoryCmd.AddCommand(cmd)
}

func runMemoryGet(cmd *cobra.Command, args []string) {
	a := mustOpenApp(false)
	defer a.Close()

	m, err := a.memory.Get(cmd.Context(), currentCaller(), args[0])
	if err != nil {
		exitErr("memory get", err)
	}

	printResult(m, func(w io.Writer) { printMemory(w, *m) })
}
