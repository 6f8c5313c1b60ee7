package operation

import (
	"pgvault/internal/logging"
	"pgvault/internal/nodes"
	"pgvault/internal/workflow"
)

// Verify re-digests the identified backup's data tree and checks it against
// the manifest written at backup time. Any missing, altered or unexpected
// file fails the operation.
func Verify(deps Deps, serverName, backupID string) Result {
	logger := logging.New("verify")
	o := begin(deps, logger, "verify", serverName, backupID)

	srv, err := deps.Config.Server(serverName)
	if err != nil {
		return o.fail("", err)
	}

	label, err := deps.Vault.Resolve(serverName, backupID)
	if err != nil {
		return o.fail("", err)
	}

	p, err := workflow.ForOperation(workflow.Verify, deps.workflowDeps())
	if err != nil {
		return o.fail(label, err)
	}
	nctx := nodes.NewContext(nodes.String(workflow.NodeID, label))
	if err := runPasses(p, srv, label, nctx); err != nil {
		return o.fail(label, err)
	}

	return o.succeed(label, deps.Vault.BackupDir(serverName, label))
}
