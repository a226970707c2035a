package sandbox

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy defines the execution envelope for submitted code: which
// modules may not be required, and the resource limits.
type Policy struct {
	Name           string   `yaml:"name"`
	BlockedModules []string `yaml:"blocked_modules"`
	MaxMemoryMiB   int      `yaml:"max_memory_mib"`
	MaxRunSeconds  int      `yaml:"max_run_seconds"`
}

// DefaultPolicy returns safe defaults for code execution.
func DefaultPolicy() Policy {
	return Policy{
		Name: "default",
		BlockedModules: []string{
			"os", "io", "debug", "package",
			"socket", "http", "lfs", "ffi", "posix",
		},
		MaxMemoryMiB:  100,
		MaxRunSeconds: 5,
	}
}

// LoadPolicy reads a policy from a YAML file. Fields left unset fall
// back to the defaults.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy %s: %w", path, err)
	}

	p := DefaultPolicy()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing policy %s: %w", path, err)
	}
	return &p, nil
}

// BlockedBy returns the denylist entry covering a require target, if
// any: the entry matches the target exactly or as a dotted-path prefix.
func (p Policy) BlockedBy(module string) (string, bool) {
	for _, blocked := range p.BlockedModules {
		if module == blocked || strings.HasPrefix(module, blocked+".") {
			return blocked, true
		}
	}
	return "", false
}

// IsModuleBlocked reports whether a require target is denied.
func (p Policy) IsModuleBlocked(module string) bool {
	_, blocked := p.BlockedBy(module)
	return blocked
}

// Limits returns the resource limits this policy implies, falling back
// to the defaults for unset values.
func (p Policy) Limits() Limits {
	l := DefaultLimits()
	if p.MaxMemoryMiB > 0 {
		l.MaxMemoryMiB = p.MaxMemoryMiB
	}
	if p.MaxRunSeconds > 0 {
		l.MaxWallClock = time.Duration(p.MaxRunSeconds) * time.Second
	}
	return l
}
