// Package registry holds the named LLM backends the service knows about.
// The registry is built once at startup and passed by handle; step configs
// may reference a backend by name instead of a raw address.
package registry

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Backend describes one reachable inference endpoint.
type Backend struct {
	Name    string `yaml:"name" json:"name"`
	Address string `yaml:"address" json:"address"`
	Dialect string `yaml:"dialect,omitempty" json:"dialect,omitempty"`
}

type Registry struct {
	ordered []Backend
	byName  map[string]Backend
}

func New(backends []Backend) *Registry {
	r := &Registry{byName: make(map[string]Backend, len(backends))}
	for _, b := range backends {
		name := strings.TrimSpace(b.Name)
		if name == "" || strings.TrimSpace(b.Address) == "" {
			continue
		}
		b.Name = name
		if _, dup := r.byName[name]; dup {
			continue
		}
		r.byName[name] = b
		r.ordered = append(r.ordered, b)
	}
	return r
}

type registryFile struct {
	Backends []Backend `yaml:"backends"`
}

// Load reads a YAML registry file. An empty path yields an empty registry;
// a missing file is an error.
func Load(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return New(nil), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}
	var f registryFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("registry: parse %s: %w", path, err)
	}
	return New(f.Backends), nil
}

// Resolve looks a backend up by name. A miss means the caller holds a raw
// address, not a registry name.
func (r *Registry) Resolve(name string) (Backend, bool) {
	if r == nil {
		return Backend{}, false
	}
	b, ok := r.byName[strings.TrimSpace(name)]
	return b, ok
}

// All returns the backends in file order.
func (r *Registry) All() []Backend {
	if r == nil {
		return nil
	}
	return append([]Backend(nil), r.ordered...)
}
