package policy

import (
	"testing"

	clierr "github.com/keelerlabs/lenderctl/internal/errors"
)

func TestEmptyAllowlistPermitsEverything(t *testing.T) {
	if err := CheckCommandAllowed(nil, "withdraw run"); err != nil {
		t.Fatalf("empty allowlist should permit: %v", err)
	}
}

func TestAllowlistMatch(t *testing.T) {
	allow := []string{"position", "withdraw run"}
	if err := CheckCommandAllowed(allow, "withdraw run"); err != nil {
		t.Fatalf("listed command should be allowed: %v", err)
	}
	if err := CheckCommandAllowed(allow, "  Withdraw   RUN "); err != nil {
		t.Fatalf("match should normalize case and spacing: %v", err)
	}
}

func TestAllowlistBlocks(t *testing.T) {
	err := CheckCommandAllowed([]string{"position"}, "borrow run")
	if !clierr.IsCode(err, clierr.CodeBlocked) {
		t.Fatalf("expected blocked code, got %v", err)
	}
}

func TestAllowlistDoesNotMatchPrefixes(t *testing.T) {
	if err := CheckCommandAllowed([]string{"withdraw"}, "withdraw run"); err == nil {
		t.Fatalf("subcommand must not inherit a parent-only allowlist entry")
	}
}
