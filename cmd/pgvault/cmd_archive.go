package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pgvault/internal/management"
	"pgvault/internal/operation"
)

var archiveFlags struct {
	position string
}

var archiveCmd = &cobra.Command{
	Use:   "archive <server> <backup> <directory>",
	Short: "Pack a backup into a compressed archive",
	Long: `Archive restores a backup into a working tree, packs it into
archive-<server>-<label>.tar.gz in <directory> and removes the working tree.
<backup> is a label, "newest" or "oldest".`,
	Args: cobra.ExactArgs(3),
	RunE: runArchive,
}

func init() {
	f := archiveCmd.Flags()
	f.StringVar(&archiveFlags.position, "position", "", "Recovery position hint recorded with the operation")
}

func runArchive(cmd *cobra.Command, args []string) error {
	server, backupID, directory := args[0], args[1], args[2]
	if rootFlags.remote != "" {
		return remoteRun(cmd, "archive", func(c *management.Client) (int32, error) {
			return c.Archive(server, backupID, archiveFlags.position, directory)
		})
	}

	s, err := newSetup()
	if err != nil {
		return err
	}
	defer s.Close()

	res := operation.Archive(s.deps, server, backupID, archiveFlags.position, directory)
	if res.Err != nil {
		return res.Err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Archived %s/%s to %s (%s)\n", server, res.Label, res.Output, res.Elapsed)
	return nil
}
