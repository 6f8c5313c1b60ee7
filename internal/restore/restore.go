// Package restore materializes a stored backup as a working directory tree.
// It is the collaborator every archive operation runs first; the restore
// operation wraps the same routine with a permissions pipeline.
package restore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"pgvault/internal/config"
	"pgvault/internal/logging"
	"pgvault/internal/vault"
	"pgvault/internal/workers"
)

// ErrInvalidBackup is returned when the identified backup exists but is not
// marked valid, typically because it never finished.
var ErrInvalidBackup = errors.New("restore: backup not valid")

// Runner copies backups out of a vault.
type Runner struct {
	vault   *vault.Vault
	workers int
	logger  *slog.Logger
}

// New returns a Runner bound to vlt, copying up to limit files in parallel.
func New(vlt *vault.Vault, limit int) *Runner {
	return &Runner{vault: vlt, workers: limit, logger: logging.New("restore")}
}

// Restore resolves backupID (label or newest/oldest alias) for the server
// and copies its data tree to <directory>/<server>-<label>, replacing any
// earlier restore of the same backup. position is a recovery target hint; it
// is logged and passed through to the caller's records, the snapshot itself
// is position-independent. Returns the output path and the resolved label.
func (r *Runner) Restore(srv *config.Server, backupID, position, directory string) (string, string, error) {
	label, err := r.vault.Resolve(srv.Name, backupID)
	if err != nil {
		return "", "", err
	}

	info, err := vault.ReadInfo(r.vault.InfoPath(srv.Name, label))
	if err != nil {
		return "", "", fmt.Errorf("%w: %s/%s has no readable info", ErrInvalidBackup, srv.Name, label)
	}
	if !info.Valid {
		return "", "", fmt.Errorf("%w: %s/%s", ErrInvalidBackup, srv.Name, label)
	}

	output := filepath.Join(directory, srv.Name+"-"+label)
	if err := os.RemoveAll(output); err != nil {
		return "", "", fmt.Errorf("clear restore target: %w", err)
	}
	if err := os.MkdirAll(output, 0o700); err != nil {
		return "", "", fmt.Errorf("create restore target: %w", err)
	}

	r.logger.Info("restoring backup",
		"server", srv.Name, "label", label, "position", position, "to", output)

	if _, err := workers.CopyTree(context.Background(), r.vault.DataDir(srv.Name, label), output, r.workers); err != nil {
		return "", "", fmt.Errorf("copy backup: %w", err)
	}
	return output, label, nil
}
