// Package workers runs filesystem-heavy work (tree copies, digests) through a
// bounded pool so one operation cannot saturate the host.
package workers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// CopyTree replicates the src directory tree under dst, copying up to limit
// files in parallel. Directories and symlinks are recreated during the walk;
// regular file contents are copied by the pool. Returns the total bytes
// copied.
func CopyTree(ctx context.Context, src, dst string, limit int) (int64, error) {
	if limit < 1 {
		limit = 1
	}

	var copied atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm())

		case d.Type()&fs.ModeSymlink != 0:
			// Tablespace entries are symlinks; recreate, never follow.
			dest, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(dest, target)

		default:
			g.Go(func() error {
				n, err := copyFile(path, target)
				if err != nil {
					return fmt.Errorf("copy %s: %w", rel, err)
				}
				copied.Add(n)
				return nil
			})
			return nil
		}
	})

	if werr := g.Wait(); err == nil {
		err = werr
	}
	return copied.Load(), err
}

func copyFile(src, dst string) (int64, error) {
	info, err := os.Stat(src)
	if err != nil {
		return 0, err
	}
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// DigestTree computes the sha256 digest of every regular file under root,
// limit files at a time. Keys are slash-separated paths relative to root, so
// manifests compare identically across platforms.
func DigestTree(ctx context.Context, root string, limit int) (map[string]string, error) {
	if limit < 1 {
		limit = 1
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Indexed writes keep the pool lock-free.
	digests := make([]string, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sum, err := digestFile(path)
			if err != nil {
				return err
			}
			digests[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(paths))
	for i, path := range paths {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil, err
		}
		out[filepath.ToSlash(rel)] = digests[i]
	}
	return out, nil
}

func digestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
