package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pgvault/internal/management"
	"pgvault/internal/operation"
)

var backupCmd = &cobra.Command{
	Use:   "backup <server>",
	Short: "Take a new backup of a configured server",
	Long: `Backup copies the server's data directory into the vault under a fresh
timestamp label and writes the backup.info record and the digest manifest
restore, archive and verify rely on.`,
	Args: cobra.ExactArgs(1),
	RunE: runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	server := args[0]
	if rootFlags.remote != "" {
		return remoteRun(cmd, "backup", func(c *management.Client) (int32, error) {
			return c.Backup(server)
		})
	}

	s, err := newSetup()
	if err != nil {
		return err
	}
	defer s.Close()

	res := operation.Backup(s.deps, server)
	if res.Err != nil {
		return res.Err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Backup %s/%s (%s)\n", server, res.Label, res.Elapsed)
	return nil
}
