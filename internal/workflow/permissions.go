package workflow

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"pgvault/internal/config"
	"pgvault/internal/logging"
	"pgvault/internal/nodes"
)

// Backup trees and archive products carry database credentials, so they are
// clamped to owner-only access.
const (
	dirMode  = fs.FileMode(0o700)
	fileMode = fs.FileMode(0o600)
)

// permissionsStage clamps the operation's product: the final archive file
// for archive operations, the whole restored tree for restore operations.
type permissionsStage struct {
	target Kind
	logger *slog.Logger
}

func newPermissionsStage(target Kind) *permissionsStage {
	return &permissionsStage{target: target, logger: logging.New("permissions-stage")}
}

func (s *permissionsStage) Name() string { return "permissions" }

func (s *permissionsStage) Setup(srv *config.Server, identifier string, nctx *nodes.Context) error {
	s.logger.Debug("permissions setup", "server", srv.Name, "id", identifier, "target", string(s.target))
	return nil
}

func (s *permissionsStage) Execute(srv *config.Server, identifier string, nctx *nodes.Context) error {
	switch s.target {
	case Archive:
		path, ok := nctx.String(NodeCompressed)
		if !ok {
			// The chain may run without a compression stage.
			if path, ok = nctx.String(NodeTarball); !ok {
				return fmt.Errorf("permissions: missing %s node", NodeTarball)
			}
		}
		s.logger.Debug("permissions execute", "server", srv.Name, "id", identifier, "path", path)
		if err := os.Chmod(path, fileMode); err != nil {
			return fmt.Errorf("chmod archive: %w", err)
		}
		return nil

	case Restore:
		root, ok := nctx.String(NodeOutput)
		if !ok {
			return fmt.Errorf("permissions: missing %s node", NodeOutput)
		}
		s.logger.Debug("permissions execute", "server", srv.Name, "id", identifier, "path", root)
		return clampTree(root)

	default:
		return fmt.Errorf("permissions: no variant for %q operations", string(s.target))
	}
}

func (s *permissionsStage) Teardown(srv *config.Server, identifier string, nctx *nodes.Context) error {
	return nil
}

// clampTree sets every directory to 0700 and every file to 0600, leaving
// symlinks alone.
func clampTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		mode := fileMode
		if d.IsDir() {
			mode = dirMode
		}
		if err := os.Chmod(path, mode); err != nil {
			return fmt.Errorf("chmod %s: %w", path, err)
		}
		return nil
	})
}
