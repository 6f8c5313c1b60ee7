// Package tarball packs and unpacks the portable archive format produced by
// the archive operation: a tar stream, optionally gzip-compressed, whose
// entries carry slash-separated relative paths.
package tarball

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrFormat is returned when a stream is not a valid archive or an entry
// cannot be materialized as stored.
var ErrFormat = errors.New("tarball: invalid archive")

// Extract unpacks the archive at archivePath into destDir, entry by entry in
// stream order. The first failing entry aborts the remaining ones; entries
// already materialized are left in place. Gzip compression is detected by
// the .gz/.tgz suffix.
func Extract(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	var stream io.Reader = f
	if strings.HasSuffix(archivePath, ".gz") || strings.HasSuffix(archivePath, ".tgz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFormat, err)
		}
		defer gz.Close()
		stream = gz
	}

	tr := tar.NewReader(stream)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read entry: %w", err)
		}
		if err := extractEntry(tr, hdr, destDir); err != nil {
			return err
		}
	}
}

func extractEntry(tr *tar.Reader, hdr *tar.Header, destDir string) error {
	target := joinDest(destDir, hdr.Name)

	// An entry must stay inside the destination tree.
	if rel, err := filepath.Rel(destDir, target); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return fmt.Errorf("%w: entry %q escapes destination", ErrFormat, hdr.Name)
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(target, fs.FileMode(hdr.Mode).Perm()); err != nil {
			return fmt.Errorf("extract %s: %w", hdr.Name, err)
		}
		return nil

	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("extract %s: %w", hdr.Name, err)
		}
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fs.FileMode(hdr.Mode).Perm())
		if err != nil {
			return fmt.Errorf("extract %s: %w", hdr.Name, err)
		}
		_, err = io.Copy(out, tr)
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("extract %s: %w", hdr.Name, err)
		}
		return nil

	case tar.TypeSymlink:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("extract %s: %w", hdr.Name, err)
		}
		if err := os.Symlink(hdr.Linkname, target); err != nil {
			return fmt.Errorf("extract %s: %w", hdr.Name, err)
		}
		return nil

	default:
		return fmt.Errorf("%w: entry %q has unsupported type %d", ErrFormat, hdr.Name, hdr.Typeflag)
	}
}

// joinDest appends an entry's stored relative path to the destination
// directory without doubling the separator when destDir already ends in one.
func joinDest(destDir, name string) string {
	rel := filepath.FromSlash(name)
	if strings.HasSuffix(destDir, string(os.PathSeparator)) {
		return filepath.Clean(destDir + rel)
	}
	return filepath.Clean(destDir + string(os.PathSeparator) + rel)
}

// Create packs the srcDir tree into a tar file at tarPath. Every entry is
// stored under prefix, so extraction yields a single named top-level
// directory.
func Create(srcDir, tarPath, prefix string) error {
	f, err := os.OpenFile(tarPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	tw := tar.NewWriter(f)
	werr := addTree(tw, srcDir, prefix)
	if cerr := tw.Close(); werr == nil {
		werr = cerr
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return werr
	}
	return nil
}

func addTree(tw *tar.Writer, srcDir, prefix string) error {
	return filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		name := prefix
		if rel != "." {
			name = prefix + "/" + filepath.ToSlash(rel)
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		link := ""
		if d.Type()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return fmt.Errorf("archive %s: %w", rel, err)
		}
		hdr.Name = name
		if d.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("archive %s: %w", rel, err)
		}

		if !d.Type().IsRegular() {
			return nil
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(tw, in)
		if cerr := in.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("archive %s: %w", rel, err)
		}
		return nil
	})
}

// Compress gzips srcPath into dstPath at the given level.
func Compress(srcPath, dstPath string, level int) error {
	in, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", srcPath, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", dstPath, err)
	}

	gz, err := gzip.NewWriterLevel(out, level)
	if err != nil {
		out.Close()
		return fmt.Errorf("compress: %w", err)
	}

	_, werr := io.Copy(gz, in)
	if cerr := gz.Close(); werr == nil {
		werr = cerr
	}
	if cerr := out.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("compress %s: %w", srcPath, werr)
	}
	return nil
}
