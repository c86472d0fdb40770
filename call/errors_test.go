package call

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormat(t *testing.T) {
	e := Errorf(CodeFunctionNotFound, "NoSuch")
	if got, want := e.Error(), "function not found: NoSuch"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	bare := &Error{Code: CodeHostCallFailed}
	if got, want := bare.Error(), "host call failed"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestCodeOf(t *testing.T) {
	e := Errorf(CodeRegionAlignment, "base 0x123")
	if CodeOf(e) != CodeRegionAlignment {
		t.Errorf("CodeOf = %v, want CodeRegionAlignment", CodeOf(e))
	}

	wrapped := fmt.Errorf("map region: %w", e)
	if CodeOf(wrapped) != CodeRegionAlignment {
		t.Errorf("CodeOf(wrapped) = %v, want CodeRegionAlignment", CodeOf(wrapped))
	}

	if CodeOf(errors.New("plain")) != CodeInternal {
		t.Error("plain errors should report CodeInternal")
	}
}

func TestAsError(t *testing.T) {
	e := Errorf(CodeParameterTypeMismatch, "bad arg")
	if got := AsError(fmt.Errorf("dispatch: %w", e)); got.Code != CodeParameterTypeMismatch {
		t.Errorf("code = %v, want CodeParameterTypeMismatch", got.Code)
	}

	got := AsError(errors.New("boom"))
	if got.Code != CodeInternal {
		t.Errorf("code = %v, want CodeInternal", got.Code)
	}
	if got.Message != "boom" {
		t.Errorf("message = %q, want %q", got.Message, "boom")
	}
}
