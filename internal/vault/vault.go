// Package vault owns the on-disk backup repository layout:
//
//	<base>/<server>/backup/<label>/backup.info
//	<base>/<server>/backup/<label>/backup.manifest
//	<base>/<server>/backup/<label>/data/...
//
// Labels are UTC wall-clock timestamps, so lexicographic order is
// chronological order.
package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ErrBackupNotFound is returned when an identifier resolves to no backup.
var ErrBackupNotFound = errors.New("vault: backup not found")

// Aliases accepted wherever a backup identifier is expected.
const (
	Newest = "newest"
	Oldest = "oldest"
)

// LabelFormat is the backup label layout, second resolution.
const LabelFormat = "20060102150405"

// NewLabel formats t as a backup label in UTC.
func NewLabel(t time.Time) string {
	return t.UTC().Format(LabelFormat)
}

// Vault is a handle on the repository base directory.
type Vault struct {
	base string
}

// New returns a Vault rooted at base. The directory need not exist yet.
func New(base string) *Vault {
	return &Vault{base: base}
}

// Base returns the repository root.
func (v *Vault) Base() string { return v.base }

// ServerDir returns the per-server directory.
func (v *Vault) ServerDir(server string) string {
	return filepath.Join(v.base, server)
}

// BackupRoot returns the directory holding all of a server's backups.
func (v *Vault) BackupRoot(server string) string {
	return filepath.Join(v.base, server, "backup")
}

// BackupDir returns one backup's directory.
func (v *Vault) BackupDir(server, label string) string {
	return filepath.Join(v.BackupRoot(server), label)
}

// DataDir returns the snapshot tree inside one backup.
func (v *Vault) DataDir(server, label string) string {
	return filepath.Join(v.BackupDir(server, label), "data")
}

// InfoPath returns the backup.info location for one backup.
func (v *Vault) InfoPath(server, label string) string {
	return filepath.Join(v.BackupDir(server, label), "backup.info")
}

// ManifestPath returns the backup.manifest location for one backup.
func (v *Vault) ManifestPath(server, label string) string {
	return filepath.Join(v.BackupDir(server, label), "backup.manifest")
}

// List returns a server's backup labels in chronological order. A server
// with no backup directory yet lists as empty, not as an error.
func (v *Vault) List(server string) ([]string, error) {
	entries, err := os.ReadDir(v.BackupRoot(server))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list backups: %w", err)
	}

	var labels []string
	for _, e := range entries {
		if e.IsDir() {
			labels = append(labels, e.Name())
		}
	}
	sort.Strings(labels)
	return labels, nil
}

// Resolve maps a backup identifier to a concrete label. The identifier is
// either a label or one of the Newest/Oldest aliases.
func (v *Vault) Resolve(server, id string) (string, error) {
	labels, err := v.List(server)
	if err != nil {
		return "", err
	}

	switch id {
	case Newest:
		if len(labels) == 0 {
			return "", fmt.Errorf("%w: server %q has no backups", ErrBackupNotFound, server)
		}
		return labels[len(labels)-1], nil
	case Oldest:
		if len(labels) == 0 {
			return "", fmt.Errorf("%w: server %q has no backups", ErrBackupNotFound, server)
		}
		return labels[0], nil
	default:
		for _, l := range labels {
			if l == id {
				return l, nil
			}
		}
		return "", fmt.Errorf("%w: %s/%s", ErrBackupNotFound, server, id)
	}
}
