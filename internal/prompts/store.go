// Package prompts resolves prompt templates by name from embedded defaults,
// a directory of <name>.txt files, or a YAML pack.
package prompts

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when no source has the requested template.
var ErrNotFound = errors.New("prompt template not found")

//go:embed templates/*.txt
var embedded embed.FS

// Render appends the user's message to a template, quoted the way the
// classifier and resolver prompts expect it.
func Render(template, userMessage string) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(template, "\n"))
	sb.WriteString("\n\nUser input:\n\"\"\"\n")
	sb.WriteString(userMessage)
	sb.WriteString("\n\"\"\"\n")
	return sb.String()
}

// FS loads <name>.txt from a filesystem.
type FS struct {
	fsys fs.FS
	root string
}

// Embedded returns the templates compiled into the binary.
func Embedded() *FS {
	return &FS{fsys: embedded, root: "templates"}
}

// Dir returns a store reading <dir>/<name>.txt on every Load, so edited
// templates take effect without a restart.
func Dir(dir string) *FS {
	return &FS{fsys: os.DirFS(dir), root: "."}
}

func (s *FS) Load(name string) (string, error) {
	if !validName(name) {
		return "", fmt.Errorf("%w: invalid name %q", ErrNotFound, name)
	}
	data, err := fs.ReadFile(s.fsys, filepath.ToSlash(filepath.Join(s.root, name+".txt")))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("read prompt %s: %w", name, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrNotFound, name)
	}
	return string(data), nil
}

// Pack is a set of templates loaded from one YAML document:
//
//	prompts:
//	  message_analysis: |
//	    ...
type Pack struct {
	templates map[string]string
}

type packFile struct {
	Prompts map[string]string `yaml:"prompts"`
}

// LoadPack reads a YAML prompt pack from path.
func LoadPack(path string) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt pack: %w", err)
	}
	var pf packFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse prompt pack %s: %w", path, err)
	}
	return &Pack{templates: pf.Prompts}, nil
}

func (p *Pack) Load(name string) (string, error) {
	t, ok := p.templates[name]
	if !ok || strings.TrimSpace(t) == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return t, nil
}

// Names lists the templates in the pack.
func (p *Pack) Names() []string {
	names := make([]string, 0, len(p.templates))
	for n := range p.templates {
		names = append(names, n)
	}
	return names
}

// Loader is satisfied by every store in this package.
type Loader interface {
	Load(name string) (string, error)
}

// Layered tries each source in order and returns the first hit. Only
// ErrNotFound moves on to the next source; other errors stop the lookup.
type Layered []Loader

func (l Layered) Load(name string) (string, error) {
	for _, src := range l {
		t, err := src.Load(name)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}
