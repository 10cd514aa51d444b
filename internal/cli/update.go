package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vox-os/vox-memory/internal/memory"
)

func init() {
	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Change a memory",
		Long:  "Change a memory's text, category, pin or active flag. New text is re-classified, re-summarized and re-embedded.",
		Args:  cobra.ExactArgs(1),
		Run:   runMemoryUpdate,
	}

	cmd.Flags().String("text", "", "New text")
	cmd.Flags().String("category", "", "New category (empty string clears it)")
	cmd.Flags().Bool("pin", false, "Pin or unpin (--pin=false)")
	cmd.Flags().Bool("active", true, "Activate or deactivate (--active=false)")

	memoryCmd.AddCommand(cmd)
}

func runMemoryUpdate(cmd *cobra.Command, args []string) {
	var p memory.UpdateParams
	flags := cmd.Flags()
	if flags.Changed("text") {
		v, _ := flags.GetString("text")
		p.Text = &v
	}
	if flags.Changed("category") {
		v, _ := flags.GetString("category")
		p.Category = &v
	}
	if flags.Changed("pin") {
		v, _ := flags.GetBool("pin")
		p.Pinned = &v
	}
	if flags.Changed("active") {
		v, _ := flags.GetBool("active")
		p.Active = &v
	}
	if p.Text == nil && p.Category == nil && p.Pinned == nil && p.Active == nil {
		exitErr("memory update", fmt.Errorf("nothing to update"))
	}

	a := mustOpenApp(p.Text != nil)
	defer a.Close()

	m, err := a.memory.Update(cmd.Context(), currentCaller(), args[0], p)
	if err != nil {
		exitErr("memory update", err)
	}

	printResult(m, func(w io.Writer) { printMemory(w, *m) })
}
