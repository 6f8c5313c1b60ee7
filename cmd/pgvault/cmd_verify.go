package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pgvault/internal/management"
	"pgvault/internal/operation"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <server> <backup>",
	Short: "Check a stored backup against its manifest",
	Long: `Verify re-digests every file of a stored backup and compares the result
against the manifest written at backup time. Missing, altered and unexpected
files all fail the check.`,
	Args: cobra.ExactArgs(2),
	RunE: runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	server, backupID := args[0], args[1]
	if rootFlags.remote != "" {
		return remoteRun(cmd, "verify", func(c *management.Client) (int32, error) {
			return c.Verify(server, backupID)
		})
	}

	s, err := newSetup()
	if err != nil {
		return err
	}
	defer s.Close()

	res := operation.Verify(s.deps, server, backupID)
	if res.Err != nil {
		return res.Err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Verified %s/%s (%s)\n", server, res.Label, res.Elapsed)
	return nil
}
