package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qbradley/hyperlight/call"
	"github.com/qbradley/hyperlight/sandbox"
)

var rootCmd = &cobra.Command{
	Use:   "hl",
	Short: "Call typed functions inside isolated WebAssembly guests",
	Long: `hl - Run guest programs in an isolated sandbox and call their functions.

A guest exposes typed functions; hl calls them one-shot or interactively.
Sandboxed code has no access to host resources beyond the host functions
its sandbox registers. Narrow the surface further with a profile.

Guests are WebAssembly binaries. The built-in guest 'demo' runs without
a binary and exists for trying out the tool.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("profile", "", "Sandbox profile YAML file")
	rootCmd.PersistentFlags().String("machine", "", "Machine kind: wasm, local")
	rootCmd.PersistentFlags().String("memory", "", "Memory limit: 1mb, 16mb, 64mb, 256mb, 1gb")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable compilation cache")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log sandbox lifecycle to stderr")
}

// loadGuest resolves a guest argument: "demo" is the built-in guest,
// anything else is a path to a WebAssembly binary.
func loadGuest(arg string) (sandbox.Guest, error) {
	if arg == "demo" {
		return sandbox.DemoGuest(), nil
	}
	return sandbox.LoadGuestBinary(arg)
}

func buildOptions(cmd *cobra.Command, guestArg string) ([]sandbox.Option, error) {
	profilePath, _ := cmd.Flags().GetString("profile")
	machine, _ := cmd.Flags().GetString("machine")
	memory, _ := cmd.Flags().GetString("memory")
	noCache, _ := cmd.Flags().GetBool("no-cache")
	verbose, _ := cmd.Flags().GetBool("verbose")

	var opts []sandbox.Option
	if guestArg == "demo" {
		opts = append(opts, sandbox.WithHostFunctions(sandbox.DemoHostFuncs()))
	}
	if profilePath != "" {
		profile, err := sandbox.LoadProfile(profilePath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, profile.Options()...)
	}
	if !noCache {
		opts = append(opts, sandbox.WithDiskCache())
	}
	if machine != "" {
		opts = append(opts, sandbox.WithMachineKind(machine))
	}
	if pages := parseMemoryLimit(memory); pages > 0 {
		opts = append(opts, sandbox.WithMemoryLimit(pages))
	}
	if verbose {
		opts = append(opts, sandbox.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, nil))))
	}
	return opts, nil
}

func startSandbox(ctx context.Context, cmd *cobra.Command, guestArg string) (*sandbox.Sandbox, error) {
	guest, err := loadGuest(guestArg)
	if err != nil {
		return nil, err
	}
	opts, err := buildOptions(cmd, guestArg)
	if err != nil {
		return nil, err
	}
	un, err := sandbox.New(guest, opts...)
	if err != nil {
		return nil, err
	}
	return un.Evolve(ctx)
}

func parseMemoryLimit(s string) uint32 {
	switch strings.ToLower(s) {
	case "1mb":
		return sandbox.MemoryLimit1MB
	case "16mb":
		return sandbox.MemoryLimit16MB
	case "64mb":
		return sandbox.MemoryLimit64MB
	case "256mb":
		return sandbox.MemoryLimit256MB
	case "1gb":
		return sandbox.MemoryLimit1GB
	default:
		return 0 // use default
	}
}

// parseType maps a type name to its wire tag.
func parseType(s string) (call.Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "void":
		return call.TypeVoid, nil
	case "i32", "int32":
		return call.TypeInt32, nil
	case "u32", "uint32":
		return call.TypeUInt32, nil
	case "i64", "int64", "int":
		return call.TypeInt64, nil
	case "u64", "uint64", "uint":
		return call.TypeUInt64, nil
	case "f32", "float32":
		return call.TypeFloat32, nil
	case "f64", "float64", "float":
		return call.TypeFloat64, nil
	case "bool":
		return call.TypeBool, nil
	case "str", "string":
		return call.TypeString, nil
	case "bytes", "hex":
		return call.TypeBytes, nil
	default:
		return call.TypeVoid, fmt.Errorf("unknown type %q (use i32, u32, i64, u64, f32, f64, bool, str, bytes or void)", s)
	}
}

// parseArg converts a type:value literal into a tagged value.
func parseArg(spec string) (call.Value, error) {
	typeName, lit, ok := strings.Cut(spec, ":")
	if !ok {
		return call.Void, fmt.Errorf("invalid argument %q (expected type:value, like i64:5 or str:hello)", spec)
	}
	t, err := parseType(typeName)
	if err != nil {
		return call.Void, err
	}

	switch t {
	case call.TypeInt32:
		n, err := strconv.ParseInt(lit, 10, 32)
		if err != nil {
			return call.Void, fmt.Errorf("invalid i32 %q: %v", lit, err)
		}
		return call.Int32(int32(n)), nil
	case call.TypeUInt32:
		n, err := strconv.ParseUint(lit, 10, 32)
		if err != nil {
			return call.Void, fmt.Errorf("invalid u32 %q: %v", lit, err)
		}
		return call.UInt32(uint32(n)), nil
	case call.TypeInt64:
		n, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			return call.Void, fmt.Errorf("invalid i64 %q: %v", lit, err)
		}
		return call.Int64(n), nil
	case call.TypeUInt64:
		n, err := strconv.ParseUint(lit, 10, 64)
		if err != nil {
			return call.Void, fmt.Errorf("invalid u64 %q: %v", lit, err)
		}
		return call.UInt64(n), nil
	case call.TypeFloat32:
		f, err := strconv.ParseFloat(lit, 32)
		if err != nil {
			return call.Void, fmt.Errorf("invalid f32 %q: %v", lit, err)
		}
		return call.Float32(float32(f)), nil
	case call.TypeFloat64:
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return call.Void, fmt.Errorf("invalid f64 %q: %v", lit, err)
		}
		return call.Float64(f), nil
	case call.TypeBool:
		b, err := strconv.ParseBool(lit)
		if err != nil {
			return call.Void, fmt.Errorf("invalid bool %q: %v", lit, err)
		}
		return call.Bool(b), nil
	case call.TypeString:
		return call.String(lit), nil
	case call.TypeBytes:
		b, err := hex.DecodeString(lit)
		if err != nil {
			return call.Void, fmt.Errorf("invalid hex bytes %q: %v", lit, err)
		}
		return call.Bytes(b), nil
	default:
		return call.Void, fmt.Errorf("void is not a parameter type")
	}
}

func parseArgs(specs []string) ([]call.Value, error) {
	params := make([]call.Value, 0, len(specs))
	for _, spec := range specs {
		v, err := parseArg(spec)
		if err != nil {
			return nil, err
		}
		params = append(params, v)
	}
	return params, nil
}
