package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pgvault/internal/catalog"
	"pgvault/internal/config"
	"pgvault/internal/logging"
	"pgvault/internal/management"
	"pgvault/internal/operation"
	"pgvault/internal/vault"
)

// setup owns the collaborators a locally-run operation needs.
type setup struct {
	cfg  *config.Config
	cat  *catalog.Catalog
	deps operation.Deps
}

// newSetup loads the configuration, configures logging and opens the catalog.
func newSetup() (*setup, error) {
	cfg, err := config.Load(rootFlags.config)
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logging.Init(level, cfg.Log.Format)

	cat, err := catalog.Open(cfg.Catalog)
	if err != nil {
		return nil, err
	}

	return &setup{
		cfg: cfg,
		cat: cat,
		deps: operation.Deps{
			Config:  cfg,
			Vault:   vault.New(cfg.Vault),
			Catalog: cat,
			Version: version,
		},
	}, nil
}

func (s *setup) Close() {
	_ = s.cat.Close()
}

// remoteRun sends one command to a running server and reduces the wire code
// to a CLI outcome.
func remoteRun(cmd *cobra.Command, kind string, call func(*management.Client) (int32, error)) error {
	code, err := call(management.NewClient(rootFlags.remote))
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("%s failed on %s (code %d); see the server log", kind, rootFlags.remote, code)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s completed on %s\n", kind, rootFlags.remote)
	return nil
}
