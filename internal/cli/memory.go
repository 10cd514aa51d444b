package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vox-os/vox-memory/internal/memory"
	"github.com/vox-os/vox-memory/internal/model"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Manage long-term memories",
}

func init() {
	cmd := &cobra.Command{
		Use:   "add [text]",
		Short: "Store a memory",
		Long: "Store a memory. Text can be a positional arg or piped via stdin.\n" +
			"Without --category the text is classified first and rejected if it is not worth keeping.",
		Run: runMemoryAdd,
	}

	cmd.Flags().String("category", "", "Category: "+model.CategoryList())
	cmd.Flags().BoolP("pin", "p", false, "Always include in context")
	cmd.Flags().Bool("global", false, "Visible to every user (requires --admin)")

	memoryCmd.AddCommand(cmd)
	RootCmd.AddCommand(memoryCmd)
}

func runMemoryAdd(cmd *cobra.Command, args []string) {
	category, _ := cmd.Flags().GetString("category")
	pin, _ := cmd.Flags().GetBool("pin")
	global, _ := cmd.Flags().GetBool("global")

	text := readContent(args)
	if strings.TrimSpace(text) == "" {
		exitErr("memory add", fmt.Errorf("text is required (positional arg or stdin)"))
	}

	a := mustOpenApp(true)
	defer a.Close()

	m, err := a.memory.Create(cmd.Context(), currentCaller(), memory.CreateParams{
		Text:     text,
		Category: category,
		Pinned:   pin,
		Global:   global,
	})
	if err != nil {
		exitErr("memory add", err)
	}

	printResult(m, func(w io.Writer) { printMemory(w, *m) })
}

// readContent takes the positional args, falling back to piped stdin.
func readContent(args []string) string {
	if len(args) > 0 {
		return strings.Join(args, " ")
	}
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			exitErr("read stdin", err)
		}
		return string(b)
	}
	return ""
}

func printMemory(w io.Writer, m model.Memory) {
	var flags []string
	if m.Pinned {
		flags = append(flags, "pinned")
	}
	if !m.Active {
		flags = append(flags, "inactive")
	}
	if m.Global() {
		flags = append(flags, "global")
	}
	cat := m.CategoryName()
	if cat == "" {
		cat = "-"
	}
	line := fmt.Sprintf("%s  %-16s %s", m.ID, cat, m.Display())
	if len(flags) > 0 {
		line += "  [" + strings.Join(flags, ",") + "]"
	}
	fmt.Fprintln(w, line)
}

func printMemories(w io.Writer, mems []model.Memory) {
	if len(mems) == 0 {
		fmt.Fprintln(w, "(no memories)")
		return
	}
	for _, m := range mems {
		printMemory(w, m)
	}
}
