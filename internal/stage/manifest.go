package stage

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/mod/sumdb/dirhash"
)

// Manifest records what a workspace was built from. It is written next to
// the workspace for inspection and never used to skip a stage.
type Manifest struct {
	Vendor        string    `json:"vendor"`
	VendorHash    string    `json:"vendor_hash"`
	Patches       []string  `json:"patches,omitempty"`
	WorkspaceHash string    `json:"workspace_hash"`
	BuildTime     time.Time `json:"build_time"`
}

// HashTree returns the dirhash of a directory, or of a single file.
func HashTree(p string) (string, error) {
	fi, err := os.Stat(p)
	if err != nil {
		return "", err
	}
	if fi.IsDir() {
		return dirhash.HashDir(p, filepath.Base(p), dirhash.Hash1)
	}
	return dirhash.Hash1([]string{filepath.Base(p)}, func(string) (io.ReadCloser, error) {
		return os.Open(p)
	})
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// WriteManifest stores m at path.
func WriteManifest(path string, m *Manifest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
