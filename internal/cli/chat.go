package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/vox-os/vox-memory/internal/chat"
	"github.com/vox-os/vox-memory/internal/logger"
	"github.com/vox-os/vox-memory/internal/metrics"
	"github.com/vox-os/vox-memory/internal/model"
)

// backfillBatch bounds one scheduled embedding backfill run.
const backfillBatch = 50

func init() {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to Vox",
		Long: "Send one message, or start an interactive session when no message is given.\n" +
			"In the interactive session, /clear empties the session and /exit quits.",
		Run: runChat,
	}

	cmd.Flags().StringP("session", "s", "", "Session id (default: your Default session)")

	RootCmd.AddCommand(cmd)
}

func runChat(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")

	a := mustOpenApp(true)
	defer a.Close()
	caller := currentCaller()

	if len(args) > 0 {
		res, err := a.chat.SendTurn(cmd.Context(), caller, chat.TurnRequest{
			Message:   strings.Join(args, " "),
			SessionID: sessionID,
		})
		if err != nil {
			exitErr("chat", err)
		}
		printResult(res, func(w io.Writer) { printTurn(w, res) })
		return
	}

	stopCron := startBackfill(a)
	defer stopCron()
	stopMetrics := startMetrics(a.cfg.Metrics.Addr)
	defer stopMetrics()

	repl(cmd.Context(), a, caller, sessionID, os.Stdin, os.Stdout)
}

func repl(ctx context.Context, a *app, caller model.Caller, sessionID string, in io.Reader, out io.Writer) {
	fmt.Fprintf(out, "Vox (%s). /clear to reset, /exit to quit.\n", caller.UserID)
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return
		case "/clear":
			if _, err := a.chat.ClearSession(ctx, caller.UserID, sessionID); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintln(out, "(session cleared)")
			continue
		}

		res, err := a.chat.SendTurn(ctx, caller, chat.TurnRequest{Message: line, SessionID: sessionID})
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		sessionID = res.SessionID
		printTurn(out, res)
	}
}

func printTurn(w io.Writer, res *chat.TurnResult) {
	fmt.Fprintln(w, res.Reply)
	if res.MemorySaved {
		fmt.Fprintf(w, "  [remembered: %s]\n", res.SavedMemory.Display())
	}
	if !res.Persisted {
		fmt.Fprintln(w, "  [warning: this turn was not saved to history]")
	}
}

// startBackfill embeds memories stored while the embedding service was down,
// on the configured schedule.
func startBackfill(a *app) func() {
	if a.embedder == nil || a.cfg.Memory.BackfillSchedule == "" {
		return func() {}
	}
	c := cron.New()
	_, err := c.AddFunc(a.cfg.Memory.BackfillSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := a.memory.BackfillEmbeddings(ctx, backfillBatch); err != nil {
			logger.Warn("scheduled backfill failed", "error", err)
		}
	})
	if err != nil {
		logger.Warn("invalid backfill schedule", "schedule", a.cfg.Memory.BackfillSchedule, "error", err)
		return func() {}
	}
	c.Start()
	return func() { <-c.Stop().Done() }
}

func startMetrics(addr string) func() {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("metrics listening", "addr", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
