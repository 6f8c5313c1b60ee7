package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"pgvault/internal/config"
	"pgvault/internal/logging"
	"pgvault/internal/nodes"
	"pgvault/internal/vault"
	"pgvault/internal/workers"
)

// backupStage snapshots a server's data directory into the vault under the
// operation's label. The backup.info record is written invalid during the
// copy and flipped valid in teardown, once every stage has executed.
type backupStage struct {
	deps   Deps
	logger *slog.Logger
}

func newBackupStage(deps Deps) *backupStage {
	return &backupStage{deps: deps, logger: logging.New("backup-stage")}
}

func (s *backupStage) Name() string { return "backup" }

func (s *backupStage) Setup(srv *config.Server, identifier string, nctx *nodes.Context) error {
	s.logger.Debug("backup setup", "server", srv.Name, "id", identifier)
	if err := os.MkdirAll(s.deps.Vault.DataDir(srv.Name, identifier), 0o700); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}
	nctx.Add(nodes.Int(NodeStart, int(time.Now().Unix())))
	return nil
}

func (s *backupStage) Execute(srv *config.Server, identifier string, nctx *nodes.Context) error {
	dataDir := s.deps.Vault.DataDir(srv.Name, identifier)
	s.logger.Debug("backup execute", "server", srv.Name, "id", identifier, "from", srv.Data, "to", dataDir)

	size, err := workers.CopyTree(context.Background(), srv.Data, dataDir, s.deps.Config.Workers)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", srv.Data, err)
	}

	info := vault.Info{
		Version:       s.deps.Version,
		Valid:         false,
		Label:         identifier,
		Elapsed:       s.elapsed(nctx),
		ServerVersion: srv.Version,
		Size:          size,
		Hash:          "sha256",
	}
	if err := vault.WriteInfo(s.deps.Vault.InfoPath(srv.Name, identifier), info); err != nil {
		return err
	}

	nctx.Add(nodes.Int(NodeSize, int(size)))
	return nil
}

func (s *backupStage) Teardown(srv *config.Server, identifier string, nctx *nodes.Context) error {
	path := s.deps.Vault.InfoPath(srv.Name, identifier)
	info, err := vault.ReadInfo(path)
	if err != nil {
		return err
	}
	info.Valid = true
	info.Elapsed = s.elapsed(nctx)
	if err := vault.WriteInfo(path, info); err != nil {
		return err
	}
	s.logger.Debug("backup teardown", "server", srv.Name, "id", identifier, "elapsed", info.Elapsed)
	return nil
}

func (s *backupStage) elapsed(nctx *nodes.Context) string {
	start, ok := nctx.Int(NodeStart)
	if !ok {
		return vault.Elapsed(0)
	}
	return vault.Elapsed(time.Since(time.Unix(int64(start), 0)))
}

// manifestStage records per-file digests of the fresh snapshot so verify
// can detect corruption later.
type manifestStage struct {
	deps   Deps
	logger *slog.Logger
}

func newManifestStage(deps Deps) *manifestStage {
	return &manifestStage{deps: deps, logger: logging.New("manifest-stage")}
}

func (s *manifestStage) Name() string { return "manifest" }

func (s *manifestStage) Setup(srv *config.Server, identifier string, nctx *nodes.Context) error {
	s.logger.Debug("manifest setup", "server", srv.Name, "id", identifier)
	return nil
}

func (s *manifestStage) Execute(srv *config.Server, identifier string, nctx *nodes.Context) error {
	dataDir := s.deps.Vault.DataDir(srv.Name, identifier)
	s.logger.Debug("manifest execute", "server", srv.Name, "id", identifier)

	digests, err := workers.DigestTree(context.Background(), dataDir, s.deps.Config.Workers)
	if err != nil {
		return fmt.Errorf("digest snapshot: %w", err)
	}

	entries := make([]vault.ManifestEntry, 0, len(digests))
	for rel, digest := range digests {
		info, err := os.Stat(filepath.Join(dataDir, filepath.FromSlash(rel)))
		if err != nil {
			return fmt.Errorf("stat %s: %w", rel, err)
		}
		entries = append(entries, vault.ManifestEntry{Path: rel, Size: info.Size(), Digest: digest})
	}
	return vault.WriteManifest(s.deps.Vault.ManifestPath(srv.Name, identifier), entries)
}

func (s *manifestStage) Teardown(srv *config.Server, identifier string, nctx *nodes.Context) error {
	return nil
}
