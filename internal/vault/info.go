package vault

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Elapsed formats a wall-clock duration as HH:MM:SS, the layout used by the
// ELAPSED field and operation reporting.
func Elapsed(d time.Duration) string {
	secs := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}

// backup.info keys, flat KEY=VALUE, one per line.
const (
	infoKeyVersion       = "PGVAULT_VERSION"
	infoKeyStatus        = "STATUS"
	infoKeyLabel         = "LABEL"
	infoKeyElapsed       = "ELAPSED"
	infoKeyServerVersion = "VERSION"
	infoKeyRestore       = "RESTORE"
	infoKeyHash          = "HASH_ALGORITHM"
	infoKeyComments      = "COMMENTS"
)

// Info is the metadata record written next to every backup's data tree.
type Info struct {
	// Version of pgvault that produced the backup.
	Version string
	// Valid is false while a backup is in flight or after it failed.
	Valid bool
	// Label is the backup's own label, restated for self-description.
	Label string
	// Elapsed is the wall-clock backup duration, HH:MM:SS.
	Elapsed string
	// ServerVersion is the database major version at backup time.
	ServerVersion int
	// Size is the total bytes of the data tree.
	Size int64
	// Hash names the manifest digest algorithm.
	Hash string
	// Comments is free-form, may be empty.
	Comments string
}

// WriteInfo writes info as a flat KEY=VALUE file at path.
func WriteInfo(path string, info Info) error {
	status := "0"
	if info.Valid {
		status = "1"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s=%s\n", infoKeyVersion, info.Version)
	fmt.Fprintf(&b, "%s=%s\n", infoKeyStatus, status)
	fmt.Fprintf(&b, "%s=%s\n", infoKeyLabel, info.Label)
	fmt.Fprintf(&b, "%s=%s\n", infoKeyElapsed, info.Elapsed)
	fmt.Fprintf(&b, "%s=%d\n", infoKeyServerVersion, info.ServerVersion)
	fmt.Fprintf(&b, "%s=%d\n", infoKeyRestore, info.Size)
	fmt.Fprintf(&b, "%s=%s\n", infoKeyHash, info.Hash)
	fmt.Fprintf(&b, "%s=%s\n", infoKeyComments, info.Comments)

	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("write backup info: %w", err)
	}
	return nil
}

// ReadInfo parses a backup.info file. Unknown keys are ignored so newer
// writers stay readable.
func ReadInfo(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open backup info: %w", err)
	}
	defer f.Close()

	var info Info
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return Info{}, fmt.Errorf("parse backup info: malformed line %q", line)
		}
		switch key {
		case infoKeyVersion:
			info.Version = value
		case infoKeyStatus:
			info.Valid = value == "1"
		case infoKeyLabel:
			info.Label = value
		case infoKeyElapsed:
			info.Elapsed = value
		case infoKeyServerVersion:
			v, err := strconv.Atoi(value)
			if err != nil {
				return Info{}, fmt.Errorf("parse backup info: bad %s %q", infoKeyServerVersion, value)
			}
			info.ServerVersion = v
		case infoKeyRestore:
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return Info{}, fmt.Errorf("parse backup info: bad %s %q", infoKeyRestore, value)
			}
			info.Size = n
		case infoKeyHash:
			info.Hash = value
		case infoKeyComments:
			info.Comments = value
		}
	}
	if err := scanner.Err(); err != nil {
		return Info{}, fmt.Errorf("read backup info: %w", err)
	}
	return info, nil
}
