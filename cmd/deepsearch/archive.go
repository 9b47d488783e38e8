// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdiddy/deepsearch-engine/internal/archive"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect and export archived research sessions",
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived sessions, most recent first",
	RunE:  runArchiveList,
}

var archiveExportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export an archived session to a YAML file",
	RunE:  runArchiveExport,
}

func init() {
	archiveCmd.PersistentFlags().String("archive-dir", "archive", "directory holding the session archive")

	archiveExportCmd.Flags().String("out", "", "output file path (default <session-id>.yaml)")

	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveExportCmd)
	rootCmd.AddCommand(archiveCmd)
}

func runArchiveList(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("archive-dir")
	store, err := archive.Open(dir)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer store.Close()

	sessions, err := store.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No archived sessions.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSTATUS\tROUNDS\tCITATIONS\tARCHIVED\tOBJECTIVE")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			s.SessionID, s.Status, s.RoundCount, s.Citations,
			s.ArchivedAt, s.Objective)
	}
	return w.Flush()
}

func runArchiveExport(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("provide exactly one session ID")
	}
	sessionID := args[0]

	dir, _ := cmd.Flags().GetString("archive-dir")
	store, err := archive.Open(dir)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer store.Close()

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = sessionID + ".yaml"
	}

	if err := store.ExportYAML(cmd.Context(), sessionID, out); err != nil {
		return fmt.Errorf("exporting session %s: %w", sessionID, err)
	}
	fmt.Fprintf(os.Stderr, "Exported session %s to %s\n", sessionID, out)
	return nil
}
