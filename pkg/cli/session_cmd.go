package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getada/ada/pkg/session"
)

type sessionListFlags struct {
	running bool
	app     string
	format  string
}

var sessionListFlagVals sessionListFlags

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage recorded capture sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sessions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openSessionStore()
		if err != nil {
			return err
		}
		f := &sessionListFlagVals

		var sessions []*session.State
		switch {
		case f.app != "":
			sessions, err = store.FindByApp(f.app)
		case f.running:
			sessions, err = store.ListRunning()
		default:
			sessions, err = store.List()
		}
		if err != nil {
			return err
		}
		if f.running && f.app != "" {
			filtered := sessions[:0]
			for _, st := range sessions {
				if st.IsRunning() {
					filtered = append(filtered, st)
				}
			}
			sessions = filtered
		}
		return printSessions(cmd.OutOrStdout(), sessions, f.format)
	},
}

var sessionLatestRunning bool

var sessionLatestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the latest session (prints the bundle path)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openSessionStore()
		if err != nil {
			return err
		}
		latest, err := store.Latest(sessionLatestRunning)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), latest.SessionPath)
		return nil
	},
}

var sessionCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Mark orphaned running sessions as failed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openSessionStore()
		if err != nil {
			return err
		}
		repaired, err := store.Cleanup()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Repaired %d orphaned session(s)\n", repaired)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionLatestCmd)
	sessionCmd.AddCommand(sessionCleanupCmd)

	f := &sessionListFlagVals
	sessionListCmd.Flags().BoolVar(&f.running, "running", false, "show only running sessions")
	sessionListCmd.Flags().StringVar(&f.app, "app", "", "filter by app name")
	sessionListCmd.Flags().StringVarP(&f.format, "format", "f", "text", "output format (text or json)")

	sessionLatestCmd.Flags().BoolVar(&sessionLatestRunning, "running", false, "show latest running session only")
}

func openSessionStore() (*session.Store, error) {
	root, err := session.DefaultRoot()
	if err != nil {
		return nil, err
	}
	return session.NewStore(root), nil
}

func printSessions(w io.Writer, sessions []*session.State, format string) error {
	if format == "json" {
		if sessions == nil {
			sessions = []*session.State{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sessions)
	}

	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions found")
		return nil
	}
	for _, st := range sessions {
		line := fmt.Sprintf("%s  %-8s  %s", st.SessionID, st.Status, st.AppInfo.Name)
		if st.IsRunning() && st.PID != 0 {
			line += fmt.Sprintf(" (pid %d)", st.PID)
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
	return nil
}
