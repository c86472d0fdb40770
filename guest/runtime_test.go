package guest

import (
	"context"
	"errors"
	"testing"

	"github.com/qbradley/hyperlight/call"
)

// transportFunc adapts a func to HostTransport.
type transportFunc func(ctx context.Context, envelope []byte) ([]byte, error)

func (f transportFunc) CallHost(ctx context.Context, envelope []byte) ([]byte, error) {
	return f(ctx, envelope)
}

// hostAnswering returns a transport that decodes the envelope and answers
// with the given result.
func hostAnswering(t *testing.T, res call.Result) HostTransport {
	t.Helper()
	return transportFunc(func(ctx context.Context, envelope []byte) ([]byte, error) {
		if _, err := testCodec.DecodeCall(envelope); err != nil {
			t.Errorf("host received undecodable envelope: %v", err)
		}
		return testCodec.EncodeResult(res)
	})
}

func TestCallHostTwoPhase(t *testing.T) {
	rt := NewRuntime(WithHostTransport(hostAnswering(t, call.Ok(call.String("pong")))))

	if err := rt.CallHost(context.Background(), "Ping", call.TypeString); err != nil {
		t.Fatalf("CallHost: %v", err)
	}
	s, err := rt.HostReturnString()
	if err != nil {
		t.Fatalf("HostReturnString: %v", err)
	}
	if s != "pong" {
		t.Errorf("result = %q, want %q", s, "pong")
	}

	// The result stays available until the next CallHost.
	if _, err := rt.HostReturnString(); err != nil {
		t.Errorf("second fetch failed: %v", err)
	}
}

func TestHostReturnNothingPending(t *testing.T) {
	rt := NewRuntime()
	if _, err := rt.HostReturnInt64(); err == nil {
		t.Fatal("expected error with no host call made")
	}
}

func TestHostReturnTypeMismatch(t *testing.T) {
	rt := NewRuntime(WithHostTransport(hostAnswering(t, call.Ok(call.Int64(7)))))

	if err := rt.CallHost(context.Background(), "Seven", call.TypeInt64); err != nil {
		t.Fatalf("CallHost: %v", err)
	}
	if _, err := rt.HostReturnString(); err == nil {
		t.Fatal("expected error fetching Int64 result as String")
	}
	// The right accessor still works afterward.
	n, err := rt.HostReturnInt64()
	if err != nil {
		t.Fatalf("HostReturnInt64: %v", err)
	}
	if n != 7 {
		t.Errorf("result = %d, want 7", n)
	}
}

func TestCallHostTransportFailure(t *testing.T) {
	rt := NewRuntime(WithHostTransport(transportFunc(func(ctx context.Context, envelope []byte) ([]byte, error) {
		return nil, errors.New("boundary down")
	})))

	err := rt.CallHost(context.Background(), "Ping", call.TypeVoid)
	if err == nil {
		t.Fatal("expected transport failure")
	}
	if call.CodeOf(err) != call.CodeHostCallFailed {
		t.Errorf("code = %v, want CodeHostCallFailed", call.CodeOf(err))
	}
	// A failed call leaves nothing to fetch.
	if _, err := rt.HostReturnInt64(); err == nil {
		t.Error("expected no pending result after a failed call")
	}
}

func TestCallHostNoTransport(t *testing.T) {
	rt := NewRuntime()
	err := rt.CallHost(context.Background(), "Ping", call.TypeVoid)
	if err == nil {
		t.Fatal("expected error with no transport bound")
	}
	if call.CodeOf(err) != call.CodeHostCallFailed {
		t.Errorf("code = %v, want CodeHostCallFailed", call.CodeOf(err))
	}
}

func TestCallHostErrorResultSurfacesAtAccessor(t *testing.T) {
	rt := NewRuntime(WithHostTransport(hostAnswering(t,
		call.Fail(call.Errorf(call.CodeHostCallFailed, "host refused")))))

	// The call itself crosses fine; the failure is in the result.
	if err := rt.CallHost(context.Background(), "Refused", call.TypeInt64); err != nil {
		t.Fatalf("CallHost: %v", err)
	}
	_, err := rt.HostReturnInt64()
	if err == nil {
		t.Fatal("expected host error at the accessor")
	}
	if call.CodeOf(err) != call.CodeHostCallFailed {
		t.Errorf("code = %v, want CodeHostCallFailed", call.CodeOf(err))
	}
}

func TestHostReturnVoid(t *testing.T) {
	rt := NewRuntime(WithHostTransport(hostAnswering(t, call.Ok(call.Void))))

	if err := rt.CallHost(context.Background(), "Notify", call.TypeVoid); err != nil {
		t.Fatalf("CallHost: %v", err)
	}
	if err := rt.HostReturnVoid(); err != nil {
		t.Errorf("HostReturnVoid: %v", err)
	}
	if _, err := rt.HostReturnInt64(); err == nil {
		t.Error("expected error fetching Void result as Int64")
	}
}
