// Package workflow is the staged operation engine. An operation is an
// ordered chain of stages sharing one node context; the pipeline walks the
// chain in three full passes (setup, execute, teardown) and aborts the whole
// operation on the first setup or execute failure.
package workflow

import (
	"errors"
	"fmt"
	"log/slog"

	"pgvault/internal/config"
	"pgvault/internal/logging"
	"pgvault/internal/nodes"
	"pgvault/internal/vault"
)

// ErrAborted marks a pipeline pass that failed partway; remaining stages
// were skipped.
var ErrAborted = errors.New("workflow: aborted")

// Node context keys shared between stages. An operation seeds directory, id
// and output; stages publish the rest.
const (
	NodeDirectory  = "directory"  // client-requested output root
	NodeID         = "id"         // resolved backup label
	NodeOutput     = "output"     // restored working tree
	NodeTarball    = "tarball"    // uncompressed archive path
	NodeCompressed = "compressed" // gzip-compressed archive path
	NodeStart      = "start"      // phase start, unix seconds
	NodeSize       = "size"       // copied bytes
)

// Stage is one unit of work in a pipeline. All three methods receive the
// owning server, the operation identifier (backup label) and the shared node
// context; state crossing phases goes through the context, not stage fields.
type Stage interface {
	Name() string
	Setup(srv *config.Server, identifier string, nctx *nodes.Context) error
	Execute(srv *config.Server, identifier string, nctx *nodes.Context) error
	Teardown(srv *config.Server, identifier string, nctx *nodes.Context) error
}

// Kind selects the stage chain an operation runs.
type Kind string

const (
	Backup  Kind = "backup"
	Restore Kind = "restore"
	Archive Kind = "archive"
	Verify  Kind = "verify"
)

// State tracks pipeline progress. Failed is terminal and reachable only
// from SettingUp and Executing; a teardown failure still ends in Done.
type State int

const (
	Built State = iota
	SettingUp
	Executing
	TearingDown
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Built:
		return "built"
	case SettingUp:
		return "setting-up"
	case Executing:
		return "executing"
	case TearingDown:
		return "tearing-down"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Deps carries the collaborators stage chains are built around.
type Deps struct {
	Config *config.Config
	Vault  *vault.Vault
	// Version is stamped into backup.info.
	Version string
}

// Pipeline is an ordered stage chain built once per operation and walked in
// three passes. It is owned by a single goroutine for its whole lifetime.
type Pipeline struct {
	kind   Kind
	stages []Stage
	state  State
	logger *slog.Logger
}

// New assembles a pipeline from an explicit stage list.
func New(kind Kind, stages ...Stage) *Pipeline {
	return &Pipeline{
		kind:   kind,
		stages: stages,
		state:  Built,
		logger: logging.New("workflow"),
	}
}

// ForOperation builds the stage chain for an operation kind.
func ForOperation(kind Kind, deps Deps) (*Pipeline, error) {
	switch kind {
	case Backup:
		return New(kind, newBackupStage(deps), newManifestStage(deps)), nil
	case Restore:
		return New(kind, newPermissionsStage(Restore)), nil
	case Archive:
		return New(kind, newArchiveStage(), newGzipStage(deps.Config.Compression), newPermissionsStage(Archive)), nil
	case Verify:
		return New(kind, newDigestStage(deps)), nil
	default:
		return nil, fmt.Errorf("workflow: unknown operation kind %q", kind)
	}
}

// State reports the pipeline's current state.
func (p *Pipeline) State() State { return p.state }

// Kind reports the operation kind the pipeline was built for.
func (p *Pipeline) Kind() Kind { return p.kind }

// StageNames lists the chain in order, for logging.
func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// RunSetup walks the chain's setup phase. On the first failure the whole
// operation is aborted: remaining setups are skipped and no teardown runs,
// not even for stages that already set up. A failed stage releases its own
// partial state before returning.
func (p *Pipeline) RunSetup(srv *config.Server, identifier string, nctx *nodes.Context) error {
	if p.state != Built {
		return fmt.Errorf("workflow: setup from state %s", p.state)
	}
	p.state = SettingUp
	if err := p.runPhase("setup", srv, identifier, nctx, Stage.Setup); err != nil {
		p.state = Failed
		return err
	}
	return nil
}

// RunExecute walks the chain's execute phase, with the same abort behavior
// as RunSetup.
func (p *Pipeline) RunExecute(srv *config.Server, identifier string, nctx *nodes.Context) error {
	if p.state != SettingUp {
		return fmt.Errorf("workflow: execute from state %s", p.state)
	}
	p.state = Executing
	if err := p.runPhase("execute", srv, identifier, nctx, Stage.Execute); err != nil {
		p.state = Failed
		return err
	}
	return nil
}

// RunTeardown walks the chain's teardown phase. Unlike the other passes it
// visits every stage even after a failure, returning the first error.
func (p *Pipeline) RunTeardown(srv *config.Server, identifier string, nctx *nodes.Context) error {
	if p.state != Executing {
		return fmt.Errorf("workflow: teardown from state %s", p.state)
	}
	p.state = TearingDown

	var first error
	for _, s := range p.stages {
		p.logger.Debug("stage teardown", "kind", string(p.kind), "stage", s.Name(), "server", srv.Name, "id", identifier)
		if err := s.Teardown(srv, identifier, nctx); err != nil {
			p.logger.Error("stage teardown failed", "kind", string(p.kind), "stage", s.Name(), "error", err)
			if first == nil {
				first = fmt.Errorf("stage %s teardown: %w", s.Name(), err)
			}
		}
	}
	p.state = Done
	return first
}

// runPhase applies one phase over every stage in chain order, aborting on
// the first error. Shared by the setup and execute passes.
func (p *Pipeline) runPhase(phase string, srv *config.Server, identifier string, nctx *nodes.Context,
	call func(Stage, *config.Server, string, *nodes.Context) error,
) error {
	for _, s := range p.stages {
		p.logger.Debug("stage "+phase, "kind", string(p.kind), "stage", s.Name(), "server", srv.Name, "id", identifier)
		if err := call(s, srv, identifier, nctx); err != nil {
			return fmt.Errorf("%w: stage %s %s: %w", ErrAborted, s.Name(), phase, err)
		}
	}
	return nil
}
