package vault

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
)

// ManifestEntry describes one file of a backup's data tree. Path is
// slash-separated and relative to the data directory.
type ManifestEntry struct {
	Path   string
	Size   int64
	Digest string
}

var manifestHeader = []string{"path", "size", "sha256"}

// WriteManifest writes entries as CSV at path, sorted by file path so the
// output is deterministic.
func WriteManifest(path string, entries []ManifestEntry) error {
	sorted := make([]ManifestEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}

	w := csv.NewWriter(f)
	werr := w.Write(manifestHeader)
	for _, e := range sorted {
		if werr != nil {
			break
		}
		werr = w.Write([]string{e.Path, strconv.FormatInt(e.Size, 10), e.Digest})
	}
	w.Flush()
	if werr == nil {
		werr = w.Error()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("write manifest: %w", werr)
	}
	return nil
}

// ReadManifest parses a backup.manifest file.
func ReadManifest(path string) ([]ManifestEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 3
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	var entries []ManifestEntry
	for i, rec := range records {
		if i == 0 && rec[0] == manifestHeader[0] {
			continue
		}
		size, err := strconv.ParseInt(rec[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse manifest: bad size %q for %s", rec[1], rec[0])
		}
		entries = append(entries, ManifestEntry{Path: rec[0], Size: size, Digest: rec[2]})
	}
	return entries, nil
}
