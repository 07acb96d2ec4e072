package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// FileName is the optional project file looked up in the project dir.
const FileName = "qjsys.yaml"

// File is the content of qjsys.yaml. Unset fields keep their defaults.
type File struct {
	Features        []string `yaml:"features"`
	Vendor          string   `yaml:"vendor"`
	Patches         string   `yaml:"patches"`
	Header          string   `yaml:"header"`
	StaticFunctions string   `yaml:"static_functions"`
	Package         string   `yaml:"package"`
	CgoLink         *bool    `yaml:"cgo_link"`
	DirectivePrefix *string  `yaml:"directive_prefix"`
}

// LoadFile reads a project file. A missing file yields an empty File.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &File{}, nil
	}
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &f, nil
}
