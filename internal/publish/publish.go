// Package publish tells the consumer of a build where the archives are and
// which inputs invalidate them.
package publish

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Directive is one key=value line for the consumer.
type Directive struct {
	Key   string
	Value string
}

func (d Directive) String() string { return d.Key + "=" + d.Value }

// LinkSearch adds dir to the native library search path.
func LinkSearch(dir string) Directive {
	return Directive{Key: "link-search", Value: "native=" + dir}
}

// LinkLib links the static archive name.
func LinkLib(name string) Directive {
	return Directive{Key: "link-lib", Value: "static=" + name}
}

// RerunIfChanged marks path as a build input.
func RerunIfChanged(path string) Directive {
	return Directive{Key: "rerun-if-changed", Value: path}
}

// Library is a static archive to link.
type Library struct {
	Name string // link name, without lib prefix or extension
	Dir  string
}

// Directives returns the link directives for libs followed by one
// rerun-if-changed line per input. Search dirs are listed once each, in
// first-seen order.
func Directives(libs []Library, inputs ...string) []Directive {
	var ds []Directive
	seen := make(map[string]bool)
	for _, l := range libs {
		if seen[l.Dir] {
			continue
		}
		seen[l.Dir] = true
		ds = append(ds, LinkSearch(l.Dir))
	}
	for _, l := range libs {
		ds = append(ds, LinkLib(l.Name))
	}
	for _, in := range inputs {
		ds = append(ds, RerunIfChanged(in))
	}
	return ds
}

// Publisher writes directives, one per line.
type Publisher struct {
	W      io.Writer
	Prefix string
}

func (p *Publisher) Emit(ds ...Directive) error {
	var b bytes.Buffer
	for _, d := range ds {
		fmt.Fprintf(&b, "%s%s\n", p.Prefix, d)
	}
	_, err := p.W.Write(b.Bytes())
	return err
}

// WriteCgoLink writes a Go file carrying the cgo linker flags for libs.
func WriteCgoLink(path, pkg string, libs []Library) error {
	var b bytes.Buffer
	b.WriteString("// Code generated by qjsys. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n\n", pkg)
	b.WriteString("/*\n")
	seen := make(map[string]bool)
	for _, l := range libs {
		if !seen[l.Dir] {
			seen[l.Dir] = true
			fmt.Fprintf(&b, "#cgo LDFLAGS: -L%s\n", filepath.ToSlash(l.Dir))
		}
	}
	for _, l := range libs {
		fmt.Fprintf(&b, "#cgo LDFLAGS: -l%s\n", l.Name)
	}
	b.WriteString("#cgo !windows LDFLAGS: -lm\n")
	b.WriteString("*/\nimport \"C\"\n")
	return os.WriteFile(path, b.Bytes(), 0o644)
}
