// Package config loads and validates the pgvault configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"pgvault/internal/relpath"
)

// ErrServerNotFound is returned when an operation names a server the
// configuration does not define.
var ErrServerNotFound = errors.New("config: server not found")

// Defaults applied by Load when the file leaves a field unset.
const (
	DefaultWorkers     = 4
	DefaultCompression = 6
	DefaultManagement  = "127.0.0.1:5500"
)

// Config is the root of the YAML configuration.
type Config struct {
	// Vault is the base directory holding every server's backups.
	Vault string `yaml:"vault"`
	// Catalog is the sqlite database path; defaults to <vault>/pgvault.db.
	Catalog string `yaml:"catalog"`
	// Workers bounds parallel file copies and digest computation.
	Workers int `yaml:"workers"`
	// Compression is the gzip level (1..9) used by the archive chain.
	Compression int `yaml:"compression"`
	// Management is the host:port the management listener binds.
	Management string `yaml:"management"`

	Log     Log      `yaml:"log"`
	Servers []Server `yaml:"servers"`
}

// Log configures the global logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Server describes one managed database server.
type Server struct {
	Name string `yaml:"name"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Version is the server major version; drives tablespace path layout.
	Version int `yaml:"version"`
	// Data is the server's data directory, the tree backup snapshots.
	Data string `yaml:"data"`
}

// Load reads a YAML configuration file, applies defaults and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes configuration bytes, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Compression == 0 {
		cfg.Compression = DefaultCompression
	}
	if cfg.Management == "" {
		cfg.Management = DefaultManagement
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Catalog == "" && cfg.Vault != "" {
		cfg.Catalog = filepath.Join(cfg.Vault, "pgvault.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural invariants beyond what YAML decoding enforces.
func (c *Config) Validate() error {
	if c.Vault == "" {
		return errors.New("config: vault directory is required")
	}
	if c.Compression < 1 || c.Compression > 9 {
		return fmt.Errorf("config: compression level %d outside 1..9", c.Compression)
	}
	if len(c.Servers) == 0 {
		return errors.New("config: at least one server is required")
	}

	seen := make(map[string]bool, len(c.Servers))
	for i := range c.Servers {
		srv := &c.Servers[i]
		if srv.Name == "" {
			return fmt.Errorf("config: server %d has no name", i)
		}
		if seen[srv.Name] {
			return fmt.Errorf("config: duplicate server name %q", srv.Name)
		}
		seen[srv.Name] = true
		if srv.Data == "" {
			return fmt.Errorf("config: server %q has no data directory", srv.Name)
		}
		if srv.Version < relpath.MinVersion || srv.Version > relpath.MaxVersion {
			return fmt.Errorf("config: server %q version %d outside supported range %d..%d",
				srv.Name, srv.Version, relpath.MinVersion, relpath.MaxVersion)
		}
	}
	return nil
}

// Server returns the named server definition.
func (c *Config) Server(name string) (*Server, error) {
	for i := range c.Servers {
		if c.Servers[i].Name == name {
			return &c.Servers[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrServerNotFound, name)
}
