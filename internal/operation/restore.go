package operation

import (
	"pgvault/internal/logging"
	"pgvault/internal/nodes"
	"pgvault/internal/workflow"
)

// Restore materializes the identified backup under directory as
// <server>-<label> and clamps the tree's permissions. The working tree is
// the product, so unlike Archive nothing removes it afterwards.
func Restore(deps Deps, serverName, backupID, position, directory string) Result {
	logger := logging.New("restore")
	o := begin(deps, logger, "restore", serverName, backupID)

	srv, err := deps.Config.Server(serverName)
	if err != nil {
		return o.fail("", err)
	}

	output, label, err := deps.restorer().Restore(srv, backupID, position, directory)
	if err != nil {
		return o.fail("", err)
	}

	nctx := nodes.NewContext(
		nodes.String(workflow.NodeDirectory, directory),
		nodes.String(workflow.NodeID, label),
		nodes.String(workflow.NodeOutput, output),
	)

	p, err := workflow.ForOperation(workflow.Restore, deps.workflowDeps())
	if err != nil {
		return o.fail(label, err)
	}
	if err := runPasses(p, srv, label, nctx); err != nil {
		return o.fail(label, err)
	}

	return o.succeed(label, output)
}
