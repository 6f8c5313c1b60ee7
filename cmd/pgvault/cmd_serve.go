package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pgvault/internal/management"
	"pgvault/internal/operation"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the management server",
	Long: `Serve listens on the configured management address and runs backup,
restore, archive and verify commands for connecting clients. A Stop command
or SIGINT/SIGTERM shuts the server down after in-flight operations finish.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	s, err := newSetup()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := management.NewServer(engine{deps: s.deps}, cancel)
	return srv.ListenAndServe(ctx, s.cfg.Management)
}

// engine adapts the operation entry points to the management handler,
// reducing each result to its wire code.
type engine struct {
	deps operation.Deps
}

func (e engine) Backup(server string) int32 {
	return operation.Backup(e.deps, server).Code
}

func (e engine) Restore(server, backupID, position, directory string) int32 {
	return operation.Restore(e.deps, server, backupID, position, directory).Code
}

func (e engine) Archive(server, backupID, position, directory string) int32 {
	return operation.Archive(e.deps, server, backupID, position, directory).Code
}

func (e engine) Verify(server, backupID string) int32 {
	return operation.Verify(e.deps, server, backupID).Code
}
