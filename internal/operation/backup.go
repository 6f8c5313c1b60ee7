package operation

import (
	"time"

	"pgvault/internal/logging"
	"pgvault/internal/nodes"
	"pgvault/internal/vault"
	"pgvault/internal/workflow"
)

// Backup snapshots the server's data directory into the vault under a fresh
// label. The catalog row starts invalid and flips valid together with
// backup.info once every stage has finished; a failed backup leaves its
// partial tree in place, marked invalid, for inspection.
func Backup(deps Deps, serverName string) Result {
	logger := logging.New("backup")

	label := vault.NewLabel(time.Now())
	o := begin(deps, logger, "backup", serverName, label)

	srv, err := deps.Config.Server(serverName)
	if err != nil {
		return o.fail(label, err)
	}

	recordRow := func(size int64, elapsed string, valid bool) {
		if deps.Catalog == nil {
			return
		}
		if err := deps.Catalog.RecordBackup(serverName, label, size, elapsed, valid); err != nil {
			logger.Warn("catalog insert failed", "op", o.id, "error", err)
		}
	}
	recordRow(0, "", false)

	p, err := workflow.ForOperation(workflow.Backup, deps.workflowDeps())
	if err != nil {
		return o.fail(label, err)
	}
	nctx := nodes.NewContext(nodes.String(workflow.NodeID, label))
	if err := runPasses(p, srv, label, nctx); err != nil {
		return o.fail(label, err)
	}

	info, err := vault.ReadInfo(deps.Vault.InfoPath(serverName, label))
	if err != nil {
		return o.fail(label, err)
	}
	recordRow(info.Size, info.Elapsed, true)

	return o.succeed(label, deps.Vault.BackupDir(serverName, label))
}
