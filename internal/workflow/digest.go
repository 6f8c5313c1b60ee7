package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"pgvault/internal/config"
	"pgvault/internal/logging"
	"pgvault/internal/nodes"
	"pgvault/internal/vault"
	"pgvault/internal/workers"
)

// digestStage re-digests a backup's data tree and compares it against the
// manifest written at backup time. Any deviation fails the operation.
type digestStage struct {
	deps   Deps
	logger *slog.Logger
}

func newDigestStage(deps Deps) *digestStage {
	return &digestStage{deps: deps, logger: logging.New("digest-stage")}
}

func (s *digestStage) Name() string { return "digest" }

func (s *digestStage) Setup(srv *config.Server, identifier string, nctx *nodes.Context) error {
	s.logger.Debug("digest setup", "server", srv.Name, "id", identifier)
	if _, err := os.Stat(s.deps.Vault.ManifestPath(srv.Name, identifier)); err != nil {
		return fmt.Errorf("manifest unavailable: %w", err)
	}
	return nil
}

func (s *digestStage) Execute(srv *config.Server, identifier string, nctx *nodes.Context) error {
	entries, err := vault.ReadManifest(s.deps.Vault.ManifestPath(srv.Name, identifier))
	if err != nil {
		return err
	}
	actual, err := workers.DigestTree(context.Background(), s.deps.Vault.DataDir(srv.Name, identifier), s.deps.Config.Workers)
	if err != nil {
		return fmt.Errorf("digest backup: %w", err)
	}

	failed := 0
	for _, e := range entries {
		digest, ok := actual[e.Path]
		switch {
		case !ok:
			s.logger.Warn("file missing", "server", srv.Name, "id", identifier, "path", e.Path)
			failed++
		case digest != e.Digest:
			s.logger.Warn("digest mismatch", "server", srv.Name, "id", identifier, "path", e.Path)
			failed++
		}
		delete(actual, e.Path)
	}
	for path := range actual {
		s.logger.Warn("file not in manifest", "server", srv.Name, "id", identifier, "path", path)
		failed++
	}

	if failed > 0 {
		return fmt.Errorf("verify %s/%s: %d of %d files failed", srv.Name, identifier, failed, len(entries))
	}
	s.logger.Debug("digest execute", "server", srv.Name, "id", identifier, "files", len(entries))
	return nil
}

func (s *digestStage) Teardown(srv *config.Server, identifier string, nctx *nodes.Context) error {
	return nil
}
