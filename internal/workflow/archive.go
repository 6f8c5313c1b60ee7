package workflow

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"pgvault/internal/config"
	"pgvault/internal/logging"
	"pgvault/internal/nodes"
	"pgvault/internal/tarball"
)

// archiveStage packs a restored working tree into
// <directory>/archive-<server>-<label>.tar with a <server>-<label> entry
// prefix. Teardown removes the working tree; the tar (and later the .gz) is
// the operation's product.
type archiveStage struct {
	logger *slog.Logger
}

func newArchiveStage() *archiveStage {
	return &archiveStage{logger: logging.New("archive-stage")}
}

func (s *archiveStage) Name() string { return "archive" }

func (s *archiveStage) Setup(srv *config.Server, identifier string, nctx *nodes.Context) error {
	s.logger.Debug("archive setup", "server", srv.Name, "id", identifier, "nodes", nctx.Keys())
	return nil
}

func (s *archiveStage) Execute(srv *config.Server, identifier string, nctx *nodes.Context) error {
	src, ok := nctx.String(NodeOutput)
	if !ok {
		return fmt.Errorf("archive: missing %s node", NodeOutput)
	}
	root, ok := nctx.String(NodeDirectory)
	if !ok {
		return fmt.Errorf("archive: missing %s node", NodeDirectory)
	}

	dst := filepath.Join(root, fmt.Sprintf("archive-%s-%s.tar", srv.Name, identifier))
	prefix := srv.Name + "-" + identifier
	s.logger.Debug("archive execute", "server", srv.Name, "id", identifier, "target", dst)

	// A stale archive from an earlier run is replaced, never appended to.
	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale archive: %w", err)
	}
	if err := tarball.Create(src, dst, prefix); err != nil {
		return fmt.Errorf("pack %s: %w", src, err)
	}

	nctx.Add(nodes.String(NodeTarball, dst))
	return nil
}

func (s *archiveStage) Teardown(srv *config.Server, identifier string, nctx *nodes.Context) error {
	dir, ok := nctx.String(NodeOutput)
	if !ok {
		return nil
	}
	s.logger.Debug("archive teardown", "server", srv.Name, "id", identifier, "dir", dir)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove working tree: %w", err)
	}
	return nil
}
