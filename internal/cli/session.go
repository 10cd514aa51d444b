package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage chat sessions",
}

func init() {
	list := &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recently used first",
		Run:   runSessionList,
	}
	newCmd := &cobra.Command{
		Use:   "new [title]",
		Short: "Start a session (default title: current time)",
		Run:   runSessionNew,
	}
	messages := &cobra.Command{
		Use:   "messages [id]",
		Short: "Show a session's messages (default: your Default session)",
		Args:  cobra.MaximumNArgs(1),
		Run:   runSessionMessages,
	}
	clearCmd := &cobra.Command{
		Use:   "clear [id]",
		Short: "Delete a session's messages but keep the session",
		Args:  cobra.MaximumNArgs(1),
		Run:   runSessionClear,
	}
	rm := &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a session and its messages",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionRm,
	}

	sessionCmd.AddCommand(list, newCmd, messages, clearCmd, rm)
	RootCmd.AddCommand(sessionCmd)
}

func runSessionList(cmd *cobra.Command, args []string) {
	a := mustOpenApp(false)
	defer a.Close()

	sessions, err := a.chat.ListSessions(cmd.Context(), currentCaller().UserID)
	if err != nil {
		exitErr("session list", err)
	}

	printResult(sessions, func(w io.Writer) {
		for _, s := range sessions {
			fmt.Fprintf(w, "%s  %-24s updated %s\n", s.ID, s.Title, s.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
	})
}

func runSessionNew(cmd *cobra.Command, args []string) {
	a := mustOpenApp(false)
	defer a.Close()

	sess, err := a.chat.StartSession(cmd.Context(), currentCaller().UserID, strings.Join(args, " "))
	if err != nil {
		exitErr("session new", err)
	}

	printResult(sess, func(w io.Writer) { fmt.Fprintln(w, sess.ID) })
}

func runSessionMessages(cmd *cobra.Command, args []string) {
	a := mustOpenApp(false)
	defer a.Close()
	owner := currentCaller().UserID

	var id string
	if len(args) == 1 {
		id = args[0]
	} else {
		var err error
		if id, err = a.chat.DefaultSession(cmd.Context(), owner); err != nil {
			exitErr("session messages", err)
		}
	}

	msgs, err := a.chat.ListMessages(cmd.Context(), owner, id)
	if err != nil {
		exitErr("session messages", err)
	}

	printResult(msgs, func(w io.Writer) {
		for _, m := range msgs {
			fmt.Fprintf(w, "%-9s %s\n", m.Role+":", m.Content)
		}
	})
}

func runSessionClear(cmd *cobra.Command, args []string) {
	var id string
	if len(args) == 1 {
		id = args[0]
	}

	a := mustOpenApp(false)
	defer a.Close()

	cleared, err := a.chat.ClearSession(cmd.Context(), currentCaller().UserID, id)
	if err != nil {
		exitErr("session clear", err)
	}

	fmt.Printf(`{"ok":true,"cleared":%q}`+"\n", cleared)
}

func runSessionRm(cmd *cobra.Command, args []string) {
	a := mustOpenApp(false)
	defer a.Close()

	if err := a.chat.DeleteSession(cmd.Context(), currentCaller().UserID, args[0]); err != nil {
		exitErr("session rm", err)
	}

	fmt.Printf(`{"ok":true,"deleted":%q}`+"\n", args[0])
}
