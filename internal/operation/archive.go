package operation

import (
	"pgvault/internal/logging"
	"pgvault/internal/nodes"
	"pgvault/internal/workflow"
)

// Archive restores the identified backup into directory and repackages the
// working tree as a portable archive there. The restore runs first; if it
// fails, no pipeline is built at all. On success the working tree is gone
// and directory holds a single archive-<server>-<label>.tar.gz.
func Archive(deps Deps, serverName, backupID, position, directory string) Result {
	logger := logging.New("archive")
	o := begin(deps, logger, "archive", serverName, backupID)

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

	p, err := workflow.ForOperation(workflow.Archive, deps.workflowDeps())
	if err != nil {
		return o.fail(label, err)
	}
	if err := runPasses(p, srv, label, nctx); err != nil {
		return o.fail(label, err)
	}

	return o.succeed(label, directory)
}
