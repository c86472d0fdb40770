package vm

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/qbradley/hyperlight/call"
	"github.com/qbradley/hyperlight/guest"
	"github.com/qbradley/hyperlight/mem"
)

var codec = call.NewCodec()

// demoInit registers a small guest: Echo returns its argument, Poke writes
// one byte into guest memory, AddViaHost round-trips through the host.
func demoInit(rt *guest.Runtime, linear *mem.Linear) {
	rt.Register("Echo", []call.Type{call.TypeString}, call.TypeString,
		func(ctx context.Context, args []call.Value) (call.Value, error) {
			s, err := args[0].AsString()
			if err != nil {
				return call.Void, err
			}
			return call.String(s), nil
		})
	rt.Register("Poke", []call.Type{call.TypeUInt64, call.TypeUInt32}, call.TypeVoid,
		func(ctx context.Context, args []call.Value) (call.Value, error) {
			off, err := args[0].AsUInt64()
			if err != nil {
				return call.Void, err
			}
			b, err := args[1].AsUInt32()
			if err != nil {
				return call.Void, err
			}
			if err := linear.Write(off, []byte{byte(b)}); err != nil {
				return call.Void, err
			}
			return call.Void, nil
		})
	rt.Register("AddViaHost", []call.Type{call.TypeInt64, call.TypeInt64}, call.TypeInt64,
		func(ctx context.Context, args []call.Value) (call.Value, error) {
			if err := rt.CallHost(ctx, "HostAdd", call.TypeInt64, args...); err != nil {
				return call.Void, err
			}
			sum, err := rt.HostReturnInt64()
			if err != nil {
				return call.Void, err
			}
			return call.Int64(sum), nil
		})
}

// addingHost answers HostAdd(a, b) with a+b.
func addingHost(ctx context.Context, envelope []byte) []byte {
	fail := func(err error) []byte {
		out, _ := codec.EncodeResult(call.Fail(call.AsError(err)))
		return out
	}
	fc, err := codec.DecodeCall(envelope)
	if err != nil {
		return fail(err)
	}
	a, err := fc.Params[0].AsInt64()
	if err != nil {
		return fail(err)
	}
	b, err := fc.Params[1].AsInt64()
	if err != nil {
		return fail(err)
	}
	out, _ := codec.EncodeResult(call.Ok(call.Int64(a + b)))
	return out
}

func startLocal(t *testing.T, cfg Config) Machine {
	t.Helper()
	m, err := New("local", cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func guestCall(t *testing.T, m Machine, fc call.FunctionCall) call.Result {
	t.Helper()
	envelope, err := codec.EncodeCall(fc)
	if err != nil {
		t.Fatalf("encode call: %v", err)
	}
	reply, err := m.GuestCall(context.Background(), envelope)
	if err != nil {
		t.Fatalf("GuestCall: %v", err)
	}
	res, err := codec.DecodeResult(reply)
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return res
}

func TestLocalGuestCall(t *testing.T) {
	m := startLocal(t, Config{Init: demoInit})

	res := guestCall(t, m, call.New("Echo", call.TypeString, call.String("ping")))
	v, err := res.Unpack()
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	got, err := v.AsString()
	if err != nil {
		t.Fatalf("AsString: %v", err)
	}
	if got != "ping" {
		t.Errorf("Echo = %q, want %q", got, "ping")
	}
}

func TestLocalHostCall(t *testing.T) {
	m := startLocal(t, Config{Init: demoInit, Host: addingHost})

	res := guestCall(t, m, call.New("AddViaHost", call.TypeInt64, call.Int64(19), call.Int64(23)))
	v, err := res.Unpack()
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	sum, err := v.AsInt64()
	if err != nil {
		t.Fatalf("AsInt64: %v", err)
	}
	if sum != 42 {
		t.Errorf("AddViaHost = %d, want 42", sum)
	}
}

func TestLocalNoHost(t *testing.T) {
	m := startLocal(t, Config{Init: demoInit})

	res := guestCall(t, m, call.New("AddViaHost", call.TypeInt64, call.Int64(1), call.Int64(2)))
	_, err := res.Unpack()
	if call.CodeOf(err) != call.CodeHostCallFailed {
		t.Errorf("code = %v, want CodeHostCallFailed", call.CodeOf(err))
	}
}

func TestLocalLifecycle(t *testing.T) {
	m, err := New("local", Config{Init: demoInit})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := m.GuestCall(context.Background(), nil); !errors.Is(err, ErrNotStarted) {
		t.Errorf("GuestCall before Start = %v, want ErrNotStarted", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Start(context.Background()); !errors.Is(err, ErrMachineStarted) {
		t.Errorf("second Start = %v, want ErrMachineStarted", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := m.GuestCall(context.Background(), nil); !errors.Is(err, ErrMachineClosed) {
		t.Errorf("GuestCall after Close = %v, want ErrMachineClosed", err)
	}
	if err := m.Start(context.Background()); !errors.Is(err, ErrMachineClosed) {
		t.Errorf("Start after Close = %v, want ErrMachineClosed", err)
	}
}

func TestLocalSnapshotRestore(t *testing.T) {
	m := startLocal(t, Config{Init: demoInit, MemoryPages: 1})

	poke := func(off uint64, b uint32) {
		res := guestCall(t, m, call.New("Poke", call.TypeVoid, call.UInt64(off), call.UInt32(b)))
		if _, err := res.Unpack(); err != nil {
			t.Fatalf("Poke: %v", err)
		}
	}

	poke(0x100, 0xaa)
	snap, err := m.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	poke(0x100, 0xbb)
	got, err := m.ReadMemory(0x100, 1)
	if err != nil {
		t.Fatalf("ReadMemory: %v", err)
	}
	if got[0] != 0xbb {
		t.Fatalf("memory[0x100] = %#x, want 0xbb before restore", got[0])
	}

	if err := m.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	got, err = m.ReadMemory(0x100, 1)
	if err != nil {
		t.Fatalf("ReadMemory: %v", err)
	}
	if got[0] != 0xaa {
		t.Errorf("memory[0x100] = %#x, want snapshot byte 0xaa", got[0])
	}
}

func TestLocalMapRegion(t *testing.T) {
	m := startLocal(t, Config{Init: demoInit, MemoryPages: 2})

	content := make([]byte, mem.PageSize())
	copy(content, "mapped bytes")
	base := 4 * mem.PageSize()

	snap, err := m.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if err := m.MapRegion(mem.Region{GuestBase: base, Host: content, Kind: mem.KindData}); err != nil {
		t.Fatalf("MapRegion: %v", err)
	}
	got, err := m.ReadMemory(base, uint64(len("mapped bytes")))
	if err != nil {
		t.Fatalf("ReadMemory: %v", err)
	}
	if !bytes.Equal(got, []byte("mapped bytes")) {
		t.Errorf("mapped memory = %q, want %q", got, "mapped bytes")
	}

	// Same base again overlaps.
	err = m.MapRegion(mem.Region{GuestBase: base, Host: content, Kind: mem.KindData})
	if err == nil || !strings.Contains(err.Error(), "overlaps") {
		t.Errorf("remap error = %v, want overlap", err)
	}

	// Restore drops the mapping and its bytes.
	if err := m.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	got, err = m.ReadMemory(base, 1)
	if err != nil {
		t.Fatalf("ReadMemory: %v", err)
	}
	if got[0] != 0 {
		t.Errorf("memory after restore = %#x, want 0", got[0])
	}
	if err := m.MapRegion(mem.Region{GuestBase: base, Host: content, Kind: mem.KindData}); err != nil {
		t.Errorf("remap after restore: %v", err)
	}
}

func TestLocalMapRegionRejected(t *testing.T) {
	m := startLocal(t, Config{MemoryPages: 1})

	misaligned := mem.Region{GuestBase: mem.PageSize() + 1, Host: make([]byte, mem.PageSize())}
	err := m.MapRegion(misaligned)
	if call.CodeOf(err) != call.CodeRegionAlignment {
		t.Errorf("misaligned map code = %v, want CodeRegionAlignment", call.CodeOf(err))
	}

	beyond := mem.Region{GuestBase: 16 * wasmPage, Host: make([]byte, mem.PageSize())}
	err = m.MapRegion(beyond)
	if err == nil || !strings.Contains(err.Error(), "beyond guest memory") {
		t.Errorf("out of range map error = %v, want beyond guest memory", err)
	}
}
