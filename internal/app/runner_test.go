package app

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/keelerlabs/lenderctl/internal/version"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := NewRunnerWithWriters(&stdout, &stderr).Run(args)
	return code, stdout.String(), stderr.String()
}

func TestRunVersion(t *testing.T) {
	isolate(t)
	code, stdout, _ := runCLI(t, "version")
	if code != 0 {
		t.Fatalf("version exited %d", code)
	}
	if strings.TrimSpace(stdout) != version.Version {
		t.Fatalf("unexpected version output: %q", stdout)
	}
}

func TestRunSchemaEnvelope(t *testing.T) {
	isolate(t)
	code, stdout, _ := runCLI(t, "schema", "withdraw", "run")
	if code != 0 {
		t.Fatalf("schema exited %d", code)
	}
	var env map[string]any
	if err := json.Unmarshal([]byte(stdout), &env); err != nil {
		t.Fatalf("schema output is not JSON: %v", err)
	}
	if env["success"] != true {
		t.Fatalf("schema envelope not successful: %v", env)
	}
	data, ok := env["data"].(map[string]any)
	if !ok || data["path"] != "lenderctl withdraw run" {
		t.Fatalf("unexpected schema data: %v", env["data"])
	}
}

func TestRunUnknownCommandUsageExit(t *testing.T) {
	isolate(t)
	code, _, stderr := runCLI(t, "frobnicate")
	if code != 2 {
		t.Fatalf("unknown command exited %d, want 2", code)
	}
	var env map[string]any
	if err := json.Unmarshal([]byte(stderr), &env); err != nil {
		t.Fatalf("error envelope is not JSON: %v (stderr: %s)", err, stderr)
	}
	if env["success"] != false {
		t.Fatalf("error envelope claims success: %v", env)
	}
	errBody, ok := env["error"].(map[string]any)
	if !ok || errBody["type"] != "usage_error" {
		t.Fatalf("unexpected error body: %v", env["error"])
	}
}

func TestRunBlockedByPolicy(t *testing.T) {
	isolate(t)
	code, _, stderr := runCLI(t, "--enable-commands", "position", "schema")
	if code != 15 {
		t.Fatalf("blocked command exited %d, want 15", code)
	}
	var env map[string]any
	if err := json.Unmarshal([]byte(stderr), &env); err != nil {
		t.Fatalf("error envelope is not JSON: %v", err)
	}
	errBody, _ := env["error"].(map[string]any)
	if errBody["type"] != "command_blocked" {
		t.Fatalf("unexpected error type: %v", errBody)
	}
}

func TestRunActionsListEmpty(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	t.Setenv("LENDER_ACTIONS_PATH", dir+"/actions.db")
	t.Setenv("LENDER_ACTIONS_LOCK_PATH", dir+"/actions.lock")

	code, stdout, stderr := runCLI(t, "actions", "list")
	if code != 0 {
		t.Fatalf("actions list exited %d (stderr: %s)", code, stderr)
	}
	var env map[string]any
	if err := json.Unmarshal([]byte(stdout), &env); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	data, ok := env["data"].([]any)
	if !ok || len(data) != 0 {
		t.Fatalf("expected empty action list, got %v", env["data"])
	}
}

func TestRunOutputFlagConflict(t *testing.T) {
	isolate(t)
	code, _, _ := runCLI(t, "--json", "--plain", "schema")
	if code != 2 {
		t.Fatalf("conflicting output flags exited %d, want 2", code)
	}
}

func TestRunActionRequiresAmountChoice(t *testing.T) {
	isolate(t)
	code, _, stderr := runCLI(t, "withdraw", "run", "--asset-type", "0x2::sui::SUI")
	if code != 2 {
		t.Fatalf("missing amount flags exited %d, want 2 (stderr: %s)", code, stderr)
	}
}

func TestTrimRootPath(t *testing.T) {
	if got := trimRootPath("lenderctl withdraw run"); got != "withdraw run" {
		t.Fatalf("trimRootPath = %q", got)
	}
	if got := trimRootPath("lenderctl"); got != "lenderctl" {
		t.Fatalf("bare root should pass through, got %q", got)
	}
}

func TestShouldOpenCache(t *testing.T) {
	for _, path := range []string{"version", "schema", "actions list", "points"} {
		if shouldOpenCache(path) {
			t.Fatalf("%q should not open the cache", path)
		}
	}
	for _, path := range []string{"withdraw run", "position", "discover"} {
		if !shouldOpenCache(path) {
			t.Fatalf("%q should open the cache", path)
		}
	}
}

func TestIsLikelyUsageError(t *testing.T) {
	if !isLikelyUsageError(errString(`unknown command "x" for "lenderctl"`)) {
		t.Fatalf("unknown command should be a usage error")
	}
	if isLikelyUsageError(errString("connection refused")) {
		t.Fatalf("transport failure is not a usage error")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
