// Package cli implements the vox-memory CLI commands.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vox-os/vox-memory/internal/config"
	"github.com/vox-os/vox-memory/internal/logger"
	"github.com/vox-os/vox-memory/internal/model"
)

var (
	dbPath     string
	configPath string
	userFlag   string
	adminFlag  bool
	formatFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "vox-memory",
	Short: "Long-term memory for the Vox assistant",
	Long:  "Chat with Vox and manage the long-term memories it keeps about you. SQLite-backed, single binary.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $VOX_DB or ~/.vox-memory/vox.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default: $VOX_CONFIG)")
	RootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "Act as this user (default: $VOX_USER or $USER)")
	RootCmd.PersistentFlags().BoolVar(&adminFlag, "admin", false, "Act as a privileged user")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	logger.SetLevel(cfg.Log.Level)
	return cfg, nil
}

func currentCaller() model.Caller {
	user := userFlag
	if user == "" {
		user = os.Getenv("VOX_USER")
	}
	if user == "" {
		user = os.Getenv("USER")
	}
	if user == "" {
		user = "local"
	}
	return model.Caller{UserID: user, Privileged: adminFlag}
}

func textOutput() bool { return formatFlag == "text" }

// printResult writes v as indented JSON, or calls text when --format text is set.
func printResult(v any, text func(w io.Writer)) {
	if textOutput() && text != nil {
		text(os.Stdout)
		return
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		exitErr("encode output", err)
	}
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
