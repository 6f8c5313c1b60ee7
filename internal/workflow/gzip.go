package workflow

import (
	"fmt"
	"log/slog"
	"os"

	"pgvault/internal/config"
	"pgvault/internal/logging"
	"pgvault/internal/nodes"
	"pgvault/internal/tarball"
)

// gzipStage compresses the archive produced by the archive stage and removes
// the uncompressed tar, leaving a single .tar.gz product.
type gzipStage struct {
	level  int
	logger *slog.Logger
}

func newGzipStage(level int) *gzipStage {
	return &gzipStage{level: level, logger: logging.New("gzip-stage")}
}

func (s *gzipStage) Name() string { return "gzip" }

func (s *gzipStage) Setup(srv *config.Server, identifier string, nctx *nodes.Context) error {
	if s.level < 1 || s.level > 9 {
		return fmt.Errorf("gzip: level %d outside 1..9", s.level)
	}
	s.logger.Debug("gzip setup", "server", srv.Name, "id", identifier, "level", s.level)
	return nil
}

func (s *gzipStage) Execute(srv *config.Server, identifier string, nctx *nodes.Context) error {
	src, ok := nctx.String(NodeTarball)
	if !ok {
		return fmt.Errorf("gzip: missing %s node", NodeTarball)
	}
	dst := src + ".gz"
	s.logger.Debug("gzip execute", "server", srv.Name, "id", identifier, "target", dst)

	if err := tarball.Compress(src, dst, s.level); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove uncompressed archive: %w", err)
	}

	nctx.Add(nodes.String(NodeCompressed, dst))
	return nil
}

func (s *gzipStage) Teardown(srv *config.Server, identifier string, nctx *nodes.Context) error {
	return nil
}
