package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pgvault/internal/management"
	"pgvault/internal/operation"
)

var restoreFlags struct {
	position string
}

var restoreCmd = &cobra.Command{
	Use:   "restore <server> <backup> <directory>",
	Short: "Restore a backup into a directory",
	Long: `Restore copies a stored backup into <directory>/<server>-<label> with
permissions clamped to owner-only. <backup> is a label, "newest" or "oldest".`,
	Args: cobra.ExactArgs(3),
	RunE: runRestore,
}

func init() {
	f := restoreCmd.Flags()
	f.StringVar(&restoreFlags.position, "position", "", "Recovery position hint recorded with the operation")
}

func runRestore(cmd *cobra.Command, args []string) error {
	server, backupID, directory := args[0], args[1], args[2]
	if rootFlags.remote != "" {
		return remoteRun(cmd, "restore", func(c *management.Client) (int32, error) {
			return c.Restore(server, backupID, restoreFlags.position, directory)
		})
	}

	s, err := newSetup()
	if err != nil {
		return err
	}
	defer s.Close()

	res := operation.Restore(s.deps, server, backupID, restoreFlags.position, directory)
	if res.Err != nil {
		return res.Err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Restored %s/%s to %s (%s)\n", server, res.Label, res.Output, res.Elapsed)
	return nil
}
