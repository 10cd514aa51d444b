package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [message]",
		Short: "Show the prompt a message would be sent with",
		Long:  "Fetch core and relevant memories for a message and print the assembled prompt without calling the model.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runContext,
	}

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	message := strings.Join(args, " ")

	a := mustOpenApp(false)
	defer a.Close()

	asm, err := a.chat.Preview(cmd.Context(), currentCaller(), message)
	if err != nil {
		exitErr("context", err)
	}

	printResult(asm, func(w io.Writer) {
		for _, m := range asm.Messages {
			fmt.Fprintf(w, "[%s]\n%s\n\n", m.Role, m.Content)
		}
		fmt.Fprintf(w, "tier=%s used=%d/%d chars\n", asm.Tier, asm.Used, a.cfg.Memory.ContextCharBudget)
	})
}
