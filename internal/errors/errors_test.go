package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestExitCode(t *testing.T) {
	if ExitCode(nil) != 0 {
		t.Fatalf("nil error must exit 0")
	}
	if ExitCode(New(CodeUsage, "bad flag")) != 2 {
		t.Fatalf("usage error must exit 2")
	}
	if ExitCode(New(CodeResourceLimit, "limit")) != 22 {
		t.Fatalf("resource limit must exit 22")
	}
	if ExitCode(stderrors.New("plain")) != 1 {
		t.Fatalf("untyped error must exit 1")
	}
}

func TestWrapPreservesCodeThroughChain(t *testing.T) {
	inner := New(CodeFeeShortfall, "gas too low")
	outer := fmt.Errorf("running action: %w", inner)
	if !IsCode(outer, CodeFeeShortfall) {
		t.Fatalf("code lost through wrapping")
	}
	got, ok := As(outer)
	if !ok || got.Code != CodeFeeShortfall {
		t.Fatalf("As failed on wrapped error")
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(CodeUnavailable, "dial rpc", cause)
	if err.Error() != "dial rpc: connection refused" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
	if !stderrors.Is(err, cause) {
		t.Fatalf("cause not reachable via Unwrap")
	}
}

func TestIsCodeDistinguishes(t *testing.T) {
	err := New(CodeDiscovery, "nothing found")
	if IsCode(err, CodeExecution) {
		t.Fatalf("IsCode matched the wrong code")
	}
	if !IsCode(err, CodeDiscovery) {
		t.Fatalf("IsCode missed the right code")
	}
	if IsCode(nil, CodeDiscovery) {
		t.Fatalf("nil error carries no code")
	}
}
