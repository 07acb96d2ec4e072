package stage

import (
	"archive/tar"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/ulikunitz/xz"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func listTree(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(files)
	return files
}

func TestStageReplacesStaleContent(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "embed", "quickjs")
	ws := filepath.Join(root, "out", "quickjs")
	writeTree(t, src, map[string]string{
		"quickjs.c":       "int x;",
		"quickjs.h":       "extern int x;",
		"tests/test.js":   "1",
		"libregexp.c":     "",
		"libunicode.c":    "",
		"doc/quickjs.txt": "docs",
	})

	if err := Stage(src, ws); err != nil {
		t.Fatal(err)
	}
	want := listTree(t, src)
	if got := listTree(t, ws); strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("staged %v, want %v", got, want)
	}

	// leftovers of an earlier run, including a patch-modified vendor file
	writeTree(t, ws, map[string]string{
		"quickjs.c.orig": "old",
		"stale/obj.o":    "",
		"quickjs.c":      "int patched;",
	})
	if err := Stage(src, ws); err != nil {
		t.Fatal(err)
	}
	if got := listTree(t, ws); strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("restaged %v, want %v", got, want)
	}
	data, err := os.ReadFile(filepath.Join(ws, "quickjs.c"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "int x;" {
		t.Errorf("quickjs.c = %q, want pristine content", data)
	}

	// the vendored tree itself is untouched
	if got := listTree(t, src); strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("source tree changed: %v", got)
	}
}

func TestStageMissingSource(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "missing")
	err := Stage(src, filepath.Join(root, "ws"))
	var werr *WorkspaceError
	if !errors.As(err, &werr) {
		t.Fatalf("Stage = %v, want *WorkspaceError", err)
	}
	if werr.Path != src || !strings.Contains(err.Error(), src) {
		t.Errorf("error %q does not name %q", err, src)
	}
}

func TestStageSourceIsFile(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "quickjs")
	writeTree(t, root, map[string]string{"quickjs": "not a dir"})

	var werr *WorkspaceError
	if err := Stage(src, filepath.Join(root, "ws")); !errors.As(err, &werr) {
		t.Fatalf("Stage = %v, want *WorkspaceError", err)
	}
}

func TestStageDereferencesFileLinks(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "quickjs")
	writeTree(t, src, map[string]string{"quickjs.c": "int x;"})
	writeTree(t, root, map[string]string{"shared/cutils.h": "#define N 1"})
	if err := os.Symlink(filepath.Join(root, "shared", "cutils.h"), filepath.Join(src, "cutils.h")); err != nil {
		t.Skip("symlinks not supported:", err)
	}

	ws := filepath.Join(root, "ws")
	if err := Stage(src, ws); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Lstat(filepath.Join(ws, "cutils.h"))
	if err != nil {
		t.Fatal(err)
	}
	if !fi.Mode().IsRegular() {
		t.Errorf("staged cutils.h mode = %v, want a regular file", fi.Mode())
	}
	if b, err := os.ReadFile(filepath.Join(ws, "cutils.h")); err != nil || string(b) != "#define N 1" {
		t.Errorf("staged cutils.h = %q, %v", b, err)
	}

	if err := os.Symlink(filepath.Join(root, "shared"), filepath.Join(src, "shared")); err != nil {
		t.Fatal(err)
	}
	var werr *WorkspaceError
	if err := Stage(src, ws); !errors.As(err, &werr) || !strings.Contains(err.Error(), "link to a directory") {
		t.Errorf("Stage with a directory link = %v, want *WorkspaceError", err)
	}
}

type tarEntry struct {
	name    string
	content string
	dir     bool
}

func writeArchive(t *testing.T, path string, entries []tarEntry) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	xw, err := xz.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	tw := tar.NewWriter(xw)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644, Size: int64(len(e.content)), Typeflag: tar.TypeReg}
		if e.dir {
			hdr = &tar.Header{Name: e.name, Mode: 0o755, Typeflag: tar.TypeDir}
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if !e.dir {
			if _, err := tw.Write([]byte(e.content)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := xw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestStageFromArchive(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "quickjs")
	ws := filepath.Join(root, "out", "quickjs")
	writeArchive(t, src+ArchiveExt, []tarEntry{
		{name: "quickjs/", dir: true},
		{name: "quickjs/quickjs.c", content: "int x;"},
		{name: "quickjs/include/quickjs.h", content: "extern int x;"},
		{name: "VERSION", content: "2021-03-27"},
	})

	if got := Source(src); got != src+ArchiveExt {
		t.Errorf("Source = %q, want the archive", got)
	}
	if err := Stage(src, ws); err != nil {
		t.Fatal(err)
	}
	want := []string{"VERSION", "include/quickjs.h", "quickjs.c"}
	if got := listTree(t, ws); strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("extracted %v, want %v", got, want)
	}
}

func TestStageArchiveRejectsEscape(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "quickjs")
	writeArchive(t, src+ArchiveExt, []tarEntry{
		{name: "quickjs/../../evil.c", content: "x"},
	})

	var werr *WorkspaceError
	if err := Stage(src, filepath.Join(root, "out", "quickjs")); !errors.As(err, &werr) {
		t.Fatalf("Stage = %v, want *WorkspaceError", err)
	}
	if _, err := os.Stat(filepath.Join(root, "evil.c")); !os.IsNotExist(err) {
		t.Error("archive entry escaped the workspace")
	}
}

func TestManifest(t *testing.T) {
	root := t.TempDir()
	tree := filepath.Join(root, "quickjs")
	writeTree(t, tree, map[string]string{"quickjs.c": "int x;"})

	h1, err := HashTree(tree)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(h1, "h1:") {
		t.Errorf("HashTree = %q, want an h1: hash", h1)
	}
	writeTree(t, tree, map[string]string{"quickjs.c": "int y;"})
	h2, err := HashTree(tree)
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Error("HashTree did not change with the content")
	}

	path := filepath.Join(root, "out", "quickjs.manifest.json")
	m := &Manifest{
		Vendor:        tree,
		VendorHash:    h2,
		Patches:       []string{"0001-a.patch"},
		WorkspaceHash: h2,
		BuildTime:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := WriteManifest(path, m); err != nil {
		t.Fatal(err)
	}
	got, err := ReadManifest(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.VendorHash != h2 || len(got.Patches) != 1 || !got.BuildTime.Equal(m.BuildTime) {
		t.Errorf("ReadManifest = %+v", got)
	}
}
