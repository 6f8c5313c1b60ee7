package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listFlags struct {
	operations int
}

var listCmd = &cobra.Command{
	Use:   "list <server>",
	Short: "List recorded backups for a server",
	Long: `List prints the catalog rows for a server's backups, newest last. With
--operations it prints the most recent operations instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

func init() {
	f := listCmd.Flags()
	f.IntVar(&listFlags.operations, "operations", 0, "Show the N most recent operations instead of backups")
}

func runList(cmd *cobra.Command, args []string) error {
	server := args[0]
	s, err := newSetup()
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()

	if listFlags.operations > 0 {
		ops, err := s.cat.ListOperations(server, listFlags.operations)
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			fmt.Fprintf(out, "No operations recorded for %s\n", server)
			return nil
		}
		fmt.Fprintf(out, "%-36s %-8s %-14s %-8s %s\n", "ID", "KIND", "BACKUP", "STATUS", "ELAPSED")
		for _, op := range ops {
			fmt.Fprintf(out, "%-36s %-8s %-14s %-8s %s\n", op.ID, op.Kind, op.BackupLabel, op.Status, op.Elapsed)
		}
		return nil
	}

	backups, err := s.cat.ListBackups(server)
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		fmt.Fprintf(out, "No backups recorded for %s\n", server)
		return nil
	}
	fmt.Fprintf(out, "%-16s %-7s %12s %10s\n", "LABEL", "VALID", "SIZE", "ELAPSED")
	for _, b := range backups {
		fmt.Fprintf(out, "%-16s %-7t %12d %10s\n", b.Label, b.Valid, b.Size, b.Elapsed)
	}
	return nil
}
