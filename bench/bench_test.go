// Package bench provides honest benchmarks of the sandbox call boundary.
//
// Run with: go test -v -run=Test ./bench/
// Benchmarks: go test -bench=. ./bench/
package bench

import (
	"context"
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/qbradley/hyperlight/call"
	"github.com/qbradley/hyperlight/mem"
	"github.com/qbradley/hyperlight/sandbox"
)

// =============================================================================
// HONEST BENCHMARK SUITE
// =============================================================================
// Every sandboxed call pays for envelope encoding, dispatch, and a baseline
// restore. These benchmarks measure each layer next to a direct Go call so
// the cost of isolation stays visible. The value proposition is ISOLATION
// and STATE HYGIENE, not raw speed.
// =============================================================================

func startDemo(b *testing.B) *sandbox.Sandbox {
	b.Helper()
	sb, err := sandbox.StartDemo(context.Background())
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { sb.Close() })
	return sb
}

// --- Sandbox benchmarks: single calls (baseline restore after each) ---

func BenchmarkCall_Echo(b *testing.B) {
	sb := startDemo(b)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sb.Call(ctx, "Echo", call.TypeString, call.String("hello"))
	}
}

func BenchmarkCall_StateReset(b *testing.B) {
	sb := startDemo(b)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sb.Call(ctx, "AddToTotal", call.TypeUInt64, call.UInt64(1))
	}
}

func BenchmarkCall_HostRoundTrip(b *testing.B) {
	sb := startDemo(b)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sb.Call(ctx, "AddViaHost", call.TypeInt64, call.Int64(2), call.Int64(3))
	}
}

// --- Sandbox benchmarks: context calls (no restore until Finish) ---

func BenchmarkContextCall(b *testing.B) {
	sb := startDemo(b)
	ctx := context.Background()

	cc, err := sb.NewContext()
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cc.Call(ctx, "AddToTotal", call.TypeUInt64, call.UInt64(1))
	}
	b.StopTimer()
	cc.Finish()
}

// --- Layer benchmarks ---

func BenchmarkEnvelopeCodec(b *testing.B) {
	codec := call.NewCodec()
	fc := call.New("AddToTotal", call.TypeUInt64, call.UInt64(5))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, err := codec.EncodeCall(fc)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := codec.DecodeCall(data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSnapshotCapture(b *testing.B) {
	image := patternedImage(4 << 20)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mem.Capture(image, nil)
	}
}

func BenchmarkSnapshotRehydrate(b *testing.B) {
	snap := mem.Capture(patternedImage(4<<20), nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := snap.Image(); err != nil {
			b.Fatal(err)
		}
	}
}

func patternedImage(n int) []byte {
	image := make([]byte, n)
	for i := range image {
		image[i] = byte(i * 31)
	}
	return image
}

// =============================================================================
// COMPARISON TEST - Human readable output
// =============================================================================

func TestIsolationOverhead(t *testing.T) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════════════════╗")
	fmt.Println("║          SANDBOX CALL BOUNDARY - HONEST COSTS            ║")
	fmt.Println("╚══════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Platform: %s/%s, CPUs: %d\n", runtime.GOOS, runtime.GOARCH, runtime.NumCPU())
	fmt.Println()

	measure := func(runs int, fn func()) time.Duration {
		start := time.Now()
		for i := 0; i < runs; i++ {
			fn()
		}
		return time.Since(start) / time.Duration(runs)
	}

	// --- Direct Go call (no isolation) ---
	var total uint64
	direct := measure(1_000_000, func() {
		total += 1
	})
	_ = total

	// --- Sandboxed calls ---
	sb, err := sandbox.StartDemo(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer sb.Close()
	ctx := context.Background()

	cc, err := sb.NewContext()
	if err != nil {
		t.Fatal(err)
	}
	contextCall := measure(2000, func() {
		cc.Call(ctx, "AddToTotal", call.TypeUInt64, call.UInt64(1))
	})
	cc.Finish()

	singleCall := measure(2000, func() {
		sb.Call(ctx, "AddToTotal", call.TypeUInt64, call.UInt64(1))
	})

	type row struct {
		name     string
		perCall  time.Duration
		isolated bool
		resets   bool
	}
	rows := []row{
		{"direct Go call", direct, false, false},
		{"context call", contextCall, true, false},
		{"single call", singleCall, true, true},
	}

	fmt.Println("┌──────────────────────┬────────────┬──────────┬────────┐")
	fmt.Println("│ Call path            │ Per call   │ Isolated │ Resets │")
	fmt.Println("├──────────────────────┼────────────┼──────────┼────────┤")
	for _, r := range rows {
		fmt.Printf("│ %-20s │ %10s │    %s     │   %s    │\n",
			r.name, formatPerCall(r.perCall), mark(r.isolated), mark(r.resets))
	}
	fmt.Println("└──────────────────────┴────────────┴──────────┴────────┘")
	fmt.Println()

	fmt.Println("┌──────────────────────────────────────────────────────────┐")
	fmt.Println("│ VERDICT                                                  │")
	fmt.Println("├──────────────────────────────────────────────────────────┤")
	fmt.Println("│ • a sandboxed call is orders of magnitude slower than    │")
	fmt.Println("│   a direct Go call (envelope + dispatch per call)        │")
	fmt.Println("│ • single calls also pay a baseline restore every time    │")
	fmt.Println("│ • call contexts amortize the restore across a batch      │")
	fmt.Println("│                                                          │")
	fmt.Println("│ USE A CONTEXT WHEN: many chatty calls share state        │")
	fmt.Println("│ USE SINGLE CALLS WHEN: no call may see another's state   │")
	fmt.Println("└──────────────────────────────────────────────────────────┘")
	fmt.Println()

	t.Log("Comparison complete - see stdout for results")
}

func mark(v bool) string {
	if v {
		return "✓"
	}
	return "✗"
}

func formatPerCall(d time.Duration) string {
	switch {
	case d >= time.Millisecond:
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000)
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fµs", float64(d.Nanoseconds())/1000)
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}

// =============================================================================
// MEMORY BENCHMARK
// =============================================================================

func TestMemoryUsage(t *testing.T) {
	var m runtime.MemStats

	runtime.GC()
	runtime.ReadMemStats(&m)
	before := m.Alloc

	sb, err := sandbox.StartDemo(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		sb.Call(ctx, "AddToTotal", call.TypeUInt64, call.UInt64(1))
	}

	runtime.ReadMemStats(&m)
	after := m.Alloc

	sb.Close()

	runtime.GC()
	runtime.ReadMemStats(&m)
	afterGC := m.Alloc

	t.Logf("Memory before: %d KB", before/1024)
	t.Logf("Memory after 5 calls: %d KB", after/1024)
	t.Logf("Memory after GC: %d KB", afterGC/1024)
}

// =============================================================================
// SNAPSHOT COMPRESSION
// =============================================================================

func TestSnapshotCompression(t *testing.T) {
	image := patternedImage(4 << 20)

	start := time.Now()
	snap := mem.Capture(image, nil)
	captureTime := time.Since(start)

	start = time.Now()
	if _, err := snap.Image(); err != nil {
		t.Fatal(err)
	}
	rehydrateTime := time.Since(start)

	fmt.Println()
	fmt.Println("=== Snapshot Compression (4 MB image) ===")
	fmt.Printf("raw:        %d bytes\n", snap.Size())
	fmt.Printf("compressed: %d bytes (%.1f%%)\n", snap.CompressedSize(),
		100*float64(snap.CompressedSize())/float64(snap.Size()))
	fmt.Printf("capture:    %v\n", captureTime)
	fmt.Printf("rehydrate:  %v\n", rehydrateTime)
	fmt.Println()

	t.Log("Snapshot compression test complete")
}
