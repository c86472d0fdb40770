package sandbox

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/qbradley/hyperlight/call"
	"github.com/qbradley/hyperlight/hostfunc"
)

// Option configures a sandbox at creation time.
type Option func(*config)

type config struct {
	hostFuncs   *hostfunc.Registry
	allowlist   []string
	kv          *hostfunc.KV
	printWriter io.Writer
	memoryPages uint32
	diskCache   bool
	cacheDir    string
	machineKind string
	codec       call.Codec
	logger      *slog.Logger
}

func defaultConfig() config {
	return config{
		printWriter: os.Stdout,
		codec:       call.NewCodec(),
	}
}

func (c *config) slog() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// WithHostFunctions provides the registry of functions the guest may
// call. Without it the sandbox exposes only the builtins.
func WithHostFunctions(reg *hostfunc.Registry) Option {
	return func(c *config) {
		c.hostFuncs = reg
	}
}

// WithAllowedHostFunctions narrows the host function surface to the
// named functions, builtins included.
func WithAllowedHostFunctions(names ...string) Option {
	return func(c *config) {
		c.allowlist = names
	}
}

// WithKV exposes the store to the guest as KVGet/KVSet/KVDelete/KVKeys.
// The store outlives snapshots and restores.
func WithKV(kv *hostfunc.KV) Option {
	return func(c *config) {
		c.kv = kv
	}
}

// WithPrintWriter redirects the HostPrint builtin. Default is stdout.
func WithPrintWriter(w io.Writer) Option {
	return func(c *config) {
		c.printWriter = w
	}
}

// WithMemoryLimit sets the maximum guest memory.
// Each page is 64KB. Examples:
//   - WithMemoryLimit(16) = 1MB max
//   - WithMemoryLimit(256) = 16MB max
//   - WithMemoryLimit(1024) = 64MB max
func WithMemoryLimit(pages uint32) Option {
	return func(c *config) {
		c.memoryPages = pages
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit1MB   uint32 = 16    // 1 MB
	MemoryLimit16MB  uint32 = 256   // 16 MB
	MemoryLimit64MB  uint32 = 1024  // 64 MB
	MemoryLimit256MB uint32 = 4096  // 256 MB
	MemoryLimit1GB   uint32 = 16384 // 1 GB
)

// WithDiskCache enables a persistent guest compilation cache for faster
// startup. Optionally provide a custom directory; otherwise uses
// ~/.cache/hyperlight or XDG_CACHE_HOME/hyperlight.
func WithDiskCache(dir ...string) Option {
	return func(c *config) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithMachineKind overrides the machine backend the guest selects.
func WithMachineKind(kind string) Option {
	return func(c *config) {
		c.machineKind = kind
	}
}

// WithCodec replaces the default deterministic CBOR codec on both the
// dispatch and host-call paths.
func WithCodec(codec call.Codec) Option {
	return func(c *config) {
		c.codec = codec
	}
}

// WithLogger enables lifecycle logging. Nil discards.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "hyperlight")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "hyperlight")
	}
	return filepath.Join(os.TempDir(), "hyperlight-cache")
}
