// Package operation drives the top-level backup, restore, archive and
// verify operations: each resolves its collaborators, seeds a node context,
// runs the matching workflow pipeline in three passes and reduces the
// outcome to a wire result code. Detailed failure context goes to the log
// and the catalog; clients only see success or failure.
package operation

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pgvault/internal/catalog"
	"pgvault/internal/config"
	"pgvault/internal/nodes"
	"pgvault/internal/restore"
	"pgvault/internal/vault"
	"pgvault/internal/workflow"
)

// Wire result codes.
const (
	CodeSuccess int32 = 0
	CodeFailure int32 = 1
)

// Restorer produces a working tree from a stored backup. Satisfied by
// *restore.Runner; swapped in tests.
type Restorer interface {
	Restore(srv *config.Server, backupID, position, directory string) (output, label string, err error)
}

// Recorder persists operation and backup rows. Satisfied by
// *catalog.Catalog; nil disables recording.
type Recorder interface {
	RecordBackup(server, label string, size int64, elapsed string, valid bool) error
	BeginOperation(id, kind, server, backupLabel string) error
	FinishOperation(id, status, elapsed, detail string) error
}

// Deps bundles the collaborators an operation runs against.
type Deps struct {
	Config  *config.Config
	Vault   *vault.Vault
	Catalog Recorder
	// Restorer overrides the default vault-backed runner when non-nil.
	Restorer Restorer
	// Version is stamped into backup.info records.
	Version string
}

func (d Deps) restorer() Restorer {
	if d.Restorer != nil {
		return d.Restorer
	}
	return restore.New(d.Vault, d.Config.Workers)
}

func (d Deps) workflowDeps() workflow.Deps {
	return workflow.Deps{Config: d.Config, Vault: d.Vault, Version: d.Version}
}

// Result is an operation's outcome. Code is what the requesting connection
// receives; the rest feeds logs, the catalog and the CLI.
type Result struct {
	Code    int32
	ID      string
	Label   string
	Output  string
	Elapsed string
	Err     error
}

// op carries the bookkeeping shared by every operation.
type op struct {
	deps   Deps
	id     string
	kind   string
	server string
	start  time.Time
	logger *slog.Logger
}

func begin(deps Deps, logger *slog.Logger, kind, server, backupLabel string) *op {
	o := &op{
		deps:   deps,
		id:     uuid.NewString(),
		kind:   kind,
		server: server,
		start:  time.Now(),
		logger: logger,
	}
	if deps.Catalog != nil {
		if err := deps.Catalog.BeginOperation(o.id, kind, server, backupLabel); err != nil {
			logger.Warn("catalog insert failed", "op", o.id, "error", err)
		}
	}
	return o
}

func (o *op) elapsed() string {
	return vault.Elapsed(time.Since(o.start))
}

// fail records and logs a failure and builds the wire result. Elapsed time
// and success logging are reserved for the success path.
func (o *op) fail(label string, err error) Result {
	elapsed := o.elapsed()
	if o.deps.Catalog != nil {
		if ferr := o.deps.Catalog.FinishOperation(o.id, catalog.StatusFailed, elapsed, err.Error()); ferr != nil {
			o.logger.Warn("catalog update failed", "op", o.id, "error", ferr)
		}
	}
	o.logger.Error(o.kind+" failed", "op", o.id, "server", o.server, "error", err)
	return Result{Code: CodeFailure, ID: o.id, Label: label, Elapsed: elapsed, Err: err}
}

// succeed closes the operation's row and logs the elapsed record clients
// never see on the wire.
func (o *op) succeed(label, output string) Result {
	elapsed := o.elapsed()
	if o.deps.Catalog != nil {
		if err := o.deps.Catalog.FinishOperation(o.id, catalog.StatusSuccess, elapsed, ""); err != nil {
			o.logger.Warn("catalog update failed", "op", o.id, "error", err)
		}
	}
	o.logger.Info(o.kind+" done", "op", o.id, "server", o.server, "label", label, "elapsed", elapsed)
	return Result{Code: CodeSuccess, ID: o.id, Label: label, Output: output, Elapsed: elapsed}
}

// runPasses walks one pipeline through all three phases in order. Setup and
// execute abort the operation on first failure; the teardown pass visits
// every stage and its first error still fails the operation.
func runPasses(p *workflow.Pipeline, srv *config.Server, label string, nctx *nodes.Context) error {
	if err := p.RunSetup(srv, label, nctx); err != nil {
		return err
	}
	if err := p.RunExecute(srv, label, nctx); err != nil {
		return err
	}
	return p.RunTeardown(srv, label, nctx)
}
