package sandbox

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/qbradley/hyperlight/hostfunc"
)

// Profile is a declarative sandbox configuration. Profiles let the CLI
// and embedding hosts describe a guest's resources and host function
// surface in YAML instead of code.
type Profile struct {
	Description string `yaml:"description,omitempty"`

	// Guest is the path to the guest program, resolved relative to the
	// profile file's directory when not absolute.
	Guest string `yaml:"guest,omitempty"`

	// Machine overrides the machine kind the guest selects.
	Machine string `yaml:"machine,omitempty"`

	// MemoryPages caps guest memory in 64KB pages. Zero keeps the
	// default.
	MemoryPages uint32 `yaml:"memory_pages,omitempty"`

	// DiskCache enables the persistent compilation cache, optionally
	// rooted at CacheDir.
	DiskCache bool   `yaml:"disk_cache,omitempty"`
	CacheDir  string `yaml:"cache_dir,omitempty"`

	// HostFunctions restricts the guest-visible host functions to the
	// named ones. Empty keeps the full registry.
	HostFunctions []string `yaml:"host_functions,omitempty"`

	// KV exposes a key-value store to the guest.
	KV bool `yaml:"kv,omitempty"`
}

// LoadProfile reads a profile from a YAML file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	p, err := ParseProfile(data)
	if err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return p, nil
}

// ParseProfile decodes a profile from YAML bytes.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Options translates the profile into sandbox options.
func (p *Profile) Options() []Option {
	var opts []Option
	if p.Machine != "" {
		opts = append(opts, WithMachineKind(p.Machine))
	}
	if p.MemoryPages > 0 {
		opts = append(opts, WithMemoryLimit(p.MemoryPages))
	}
	if p.DiskCache || p.CacheDir != "" {
		opts = append(opts, WithDiskCache(p.CacheDir))
	}
	if len(p.HostFunctions) > 0 {
		opts = append(opts, WithAllowedHostFunctions(p.HostFunctions...))
	}
	if p.KV {
		opts = append(opts, WithKV(hostfunc.NewKV(hostfunc.DefaultKVConfig())))
	}
	return opts
}
