// Package relpath maps database relation identity to its on-disk file path.
//
// The layout mirrors the server's own conventions: shared system relations
// live under global/, per-database relations under base/<db>/, and relations
// in user tablespaces under pg_tblspc/<spc>/<versiondir>/<db>/. The version
// directory name embeds the server major version together with its catalog
// format stamp, which is tabulated (not computable) per supported release.
package relpath

import (
	"errors"
	"fmt"
)

// OID identifies a database object (database, tablespace or relation).
type OID uint32

// Fork selects one of the parallel files that make up a relation on disk.
type Fork int

const (
	ForkMain Fork = iota
	ForkFSM
	ForkVM
	ForkInit
)

// Well-known tablespace OIDs and the sentinel for non-session-local relations.
const (
	DefaultTablespace OID = 1663
	GlobalTablespace  OID = 1664

	InvalidBackend = -1
)

// Supported server major versions, inclusive.
const (
	MinVersion = 13
	MaxVersion = 17
)

var (
	// ErrInvalidFork is returned for a fork outside the four-member enumeration.
	ErrInvalidFork = errors.New("relpath: invalid fork number")

	// ErrGlobalScope is returned when a global-tablespace relation carries a
	// database or backend scope; shared objects have neither.
	ErrGlobalScope = errors.New("relpath: global relation cannot be database- or backend-scoped")

	// ErrUnsupportedVersion is returned when the server major version falls
	// outside the supported range.
	ErrUnsupportedVersion = errors.New("relpath: unsupported server version")
)

var forkNames = [...]string{"main", "fsm", "vm", "init"}

// catalogVersions pairs each supported major version with the catalog format
// stamp the server writes into tablespace version directories. The stamp is
// bumped upstream on internal catalog changes independent of the major
// version, so it can only be tabulated.
var catalogVersions = map[int]string{
	13: "202004022",
	14: "202104081",
	15: "202204062",
	16: "202303311",
	17: "202407111",
}

func (f Fork) valid() bool {
	return f >= ForkMain && f <= ForkInit
}

// String returns the fork's file-name suffix ("main", "fsm", "vm", "init").
func (f Fork) String() string {
	if !f.valid() {
		return fmt.Sprintf("fork(%d)", int(f))
	}
	return forkNames[f]
}

// RelationPath resolves the data-directory-relative path of one relation
// fork. backend is InvalidBackend unless the relation is session-local
// temporary. version is the server major version and is consulted only for
// custom tablespaces, where the path embeds the version directory.
func RelationPath(db, spc, rel OID, backend int, fork Fork, version int) (string, error) {
	if !fork.valid() {
		return "", fmt.Errorf("%w: %d", ErrInvalidFork, int(fork))
	}

	suffix := ""
	if fork != ForkMain {
		suffix = "_" + forkNames[fork]
	}

	switch spc {
	case GlobalTablespace:
		// Shared system relations live in {datadir}/global.
		if db != 0 || backend != InvalidBackend {
			return "", fmt.Errorf("%w: db=%d backend=%d", ErrGlobalScope, db, backend)
		}
		return fmt.Sprintf("global/%d%s", rel, suffix), nil

	case DefaultTablespace:
		// The default tablespace is {datadir}/base.
		if backend == InvalidBackend {
			return fmt.Sprintf("base/%d/%d%s", db, rel, suffix), nil
		}
		return fmt.Sprintf("base/%d/t%d_%d%s", db, backend, rel, suffix), nil

	default:
		// All other tablespaces are reached via pg_tblspc symlinks.
		dir, err := VersionDirectory(version)
		if err != nil {
			return "", err
		}
		if backend == InvalidBackend {
			return fmt.Sprintf("pg_tblspc/%d/%s/%d/%d%s", spc, dir, db, rel, suffix), nil
		}
		return fmt.Sprintf("pg_tblspc/%d/%s/%d/t%d_%d%s", spc, dir, db, backend, rel, suffix), nil
	}
}

// VersionDirectory returns the tablespace version directory name
// ("PG_<major>_<catalog>") for a supported server major version.
func VersionDirectory(version int) (string, error) {
	catalog, err := CatalogVersion(version)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PG_%d_%s", version, catalog), nil
}

// CatalogVersion returns the catalog format stamp for a supported server
// major version.
func CatalogVersion(version int) (string, error) {
	catalog, ok := catalogVersions[version]
	if !ok {
		return "", fmt.Errorf("%w: %d (supported %d..%d)", ErrUnsupportedVersion, version, MinVersion, MaxVersion)
	}
	return catalog, nil
}
