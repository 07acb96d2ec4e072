// Package stage prepares the disposable workspace holding a pristine copy of
// the vendored sources.
package stage

import (
	"archive/tar"
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

// ArchiveExt is the suffix of a compressed vendor tree used when the plain
// directory is absent.
const ArchiveExt = ".tar.xz"

// WorkspaceError reports a failure to clear or populate the workspace.
type WorkspaceError struct {
	Op   string
	Path string
	Err  error
}

func (e *WorkspaceError) Error() string {
	return fmt.Sprintf("workspace: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WorkspaceError) Unwrap() error { return e.Err }

// Clear removes workspace and everything below it.
func Clear(workspace string) error {
	if err := os.RemoveAll(workspace); err != nil {
		return &WorkspaceError{Op: "remove", Path: workspace, Err: err}
	}
	return nil
}

// Stage replaces the content of workspace by a copy of src. Stale content
// from a previous build is removed first, so the result never depends on
// earlier runs. The caller must own workspace exclusively.
//
// Links to files are copied as the files they point to. Links to
// directories are rejected.
func Stage(src, workspace string) error {
	if err := Clear(workspace); err != nil {
		return err
	}
	fi, err := os.Stat(src)
	switch {
	case err == nil && fi.IsDir():
		if err := copyTree(src, workspace); err != nil {
			return &WorkspaceError{Op: "copy", Path: src, Err: err}
		}
		return nil
	case err == nil:
		return &WorkspaceError{Op: "copy", Path: src, Err: errors.New("not a directory")}
	case !errors.Is(err, fs.ErrNotExist):
		return &WorkspaceError{Op: "stat", Path: src, Err: err}
	}

	archive := src + ArchiveExt
	if _, aerr := os.Stat(archive); aerr != nil {
		return &WorkspaceError{Op: "stat", Path: src, Err: err}
	}
	return extract(archive, filepath.Base(src), workspace)
}

// Source returns the path Stage reads from for src: the directory itself or
// its compressed archive.
func Source(src string) string {
	if fi, err := os.Stat(src); err == nil && fi.IsDir() {
		return src
	}
	if _, err := os.Stat(src + ArchiveExt); err == nil {
		return src + ArchiveExt
	}
	return src
}

// copyTree copies the directory src to dst, dereferencing links to files.
func copyTree(src, dst string) error {
	root, err := filepath.EvalSymlinks(src)
	if err != nil {
		return err
	}
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		fi, err := os.Stat(p)
		if err != nil {
			return err
		}
		switch {
		case fi.IsDir():
			return fmt.Errorf("%s: link to a directory", rel)
		case !fi.Mode().IsRegular():
			return fmt.Errorf("%s: not a regular file", rel)
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		return writeFile(target, f, fi.Mode().Perm())
	})
}

// extract unpacks a .tar.xz archive into workspace. A leading path element
// equal to root is stripped from every entry.
func extract(archive, root, workspace string) error {
	f, err := os.Open(archive)
	if err != nil {
		return &WorkspaceError{Op: "open", Path: archive, Err: err}
	}
	defer f.Close()

	xr, err := xz.NewReader(bufio.NewReader(f))
	if err != nil {
		return &WorkspaceError{Op: "decompress", Path: archive, Err: err}
	}
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return &WorkspaceError{Op: "mkdir", Path: workspace, Err: err}
	}

	tr := tar.NewReader(xr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &WorkspaceError{Op: "read", Path: archive, Err: err}
		}

		name := path.Clean(strings.TrimPrefix(hdr.Name, "./"))
		if name == root {
			continue
		}
		name = strings.TrimPrefix(name, root+"/")
		if name == "." || name == ".." || strings.HasPrefix(name, "../") || path.IsAbs(name) {
			return &WorkspaceError{Op: "extract", Path: hdr.Name, Err: errors.New("entry escapes the workspace")}
		}
		target := filepath.Join(workspace, filepath.FromSlash(name))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return &WorkspaceError{Op: "mkdir", Path: target, Err: err}
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return &WorkspaceError{Op: "extract", Path: target, Err: err}
			}
		default:
			return &WorkspaceError{Op: "extract", Path: hdr.Name, Err: fmt.Errorf("unsupported entry type %q", hdr.Typeflag)}
		}
	}
}

func writeFile(target string, r io.Reader, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm|0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
