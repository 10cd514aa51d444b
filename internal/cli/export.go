package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vox-os/vox-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export memories as JSON",
		Long:  "Export your memories, active and inactive, as a JSON array. Global memories are included.",
		Run:   runExport,
	}

	cmd.Flags().Bool("all-users", false, "Export every user's memories (requires --admin)")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	allUsers, _ := cmd.Flags().GetBool("all-users")
	caller := currentCaller()
	if allUsers && !caller.Privileged {
		exitErr("export", fmt.Errorf("--all-users requires --admin"))
	}

	a := mustOpenApp(false)
	defer a.Close()

	mems, err := a.store.ExportAll(cmd.Context(), store.Scope{
		Owner:         caller.UserID,
		IncludeGlobal: true,
		AllOwners:     allUsers,
	})
	if err != nil {
		exitErr("export", err)
	}

	printResult(mems, nil)
}
