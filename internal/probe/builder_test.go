package probe

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/keelerlabs/lenderctl/internal/chain"
	clierr "github.com/keelerlabs/lenderctl/internal/errors"
	"github.com/keelerlabs/lenderctl/internal/roles"
)

func sharedRef(id string) *chain.ObjectRef {
	return &chain.ObjectRef{ID: id, Version: 9, Owner: chain.OwnershipShared, InitialSharedVersion: 4}
}

func testBindings() roles.Bindings {
	return roles.Bindings{
		VersionStamp: sharedRef("0x10"),
		Market:       sharedRef("0x11"),
		PriceOracle:  sharedRef("0x13"),
		Clock:        sharedRef("0x14"),
		Position:     sharedRef("0x15"),
		Capability:   &chain.ObjectRef{ID: "0x16", Version: 2, Owner: chain.OwnershipAddress},
	}
}

func testEntry(typeParams int) chain.EntryPoint {
	return chain.EntryPoint{
		PackageID: "0xabc",
		Module:    "withdraw_collateral",
		Function:  "withdraw_collateral_entry",
		Parameters: []chain.ParameterDescriptor{
			{Struct: &chain.StructTag{Address: "0x1", Module: "version", Name: "Version"}, Ref: true},
			{Struct: &chain.StructTag{Address: "0x1", Module: "market", Name: "Market"}, Ref: true, MutableRef: true},
			{Primitive: "U64"},
		},
		TypeParameters: typeParams,
	}
}

func testConfig() BuildConfig {
	return BuildConfig{
		Sender:    "0x77",
		GasBudget: 50_000_000,
		GasPrice:  1000,
		GasPayment: []chain.ObjectRef{
			{ID: "0x99", Version: 12, Owner: chain.OwnershipAddress},
		},
	}
}

func TestBuildTransactionWithPricePreamble(t *testing.T) {
	b := testBindings()
	b.OraclePackage = "0xfeed"
	b.AssetType = "0x2::sui::SUI"
	b.PriceTTLMS = 60000

	tx, err := BuildTransaction(testConfig(), testEntry(1), b, 777)
	if err != nil {
		t.Fatalf("BuildTransaction failed: %v", err)
	}
	if len(tx.Calls) != 4 {
		t.Fatalf("expected 3 preamble calls plus the entry call, got %d", len(tx.Calls))
	}
	names := []string{"price_update_request", "assert_price_fresh", "confirm_price_update_request"}
	for i, want := range names {
		call := tx.Calls[i]
		if call.Package != "0xfeed" || call.Module != "x_oracle" || call.Function != want {
			t.Fatalf("preamble call %d = %s::%s in %s, want x_oracle::%s", i, call.Module, call.Function, call.Package, want)
		}
		if len(call.TypeArguments) != 1 || call.TypeArguments[0] != b.AssetType {
			t.Fatalf("preamble call %d missing asset type argument", i)
		}
		if call.Arguments[0].Object == nil || !call.Arguments[0].Object.Mutable {
			t.Fatalf("preamble call %d must take the oracle mutably", i)
		}
	}
	assert := tx.Calls[1]
	if len(assert.Arguments) != 3 {
		t.Fatalf("assert call should carry oracle, ttl, and clock: %d args", len(assert.Arguments))
	}
	if assert.Arguments[1].Pure == nil || len(assert.Arguments[1].Pure) != 8 {
		t.Fatalf("assert ttl should be a pure u64")
	}
	if assert.Arguments[2].Object == nil || assert.Arguments[2].Object.Mutable {
		t.Fatalf("clock must be an immutable shared reference")
	}
	main := tx.Calls[3]
	if main.Function != "withdraw_collateral_entry" || len(main.Arguments) != 3 {
		t.Fatalf("entry call malformed: %+v", main)
	}
}

func TestBuildTransactionNoPreambleWithoutOracle(t *testing.T) {
	b := testBindings()
	b.PriceOracle = nil
	tx, err := BuildTransaction(testConfig(), testEntry(0), b, 1)
	if err != nil {
		t.Fatalf("BuildTransaction failed: %v", err)
	}
	if len(tx.Calls) != 1 {
		t.Fatalf("expected entry call only, got %d calls", len(tx.Calls))
	}
	if len(tx.Calls[0].TypeArguments) != 0 {
		t.Fatalf("non-generic entry must not receive type arguments")
	}
}

func TestBuildTransactionGenericRequiresAssetType(t *testing.T) {
	b := testBindings()
	_, err := BuildTransaction(testConfig(), testEntry(1), b, 1)
	if !clierr.IsCode(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error without asset type, got %v", err)
	}
}

func TestBuildTransactionMultipleTypeParameters(t *testing.T) {
	b := testBindings()
	b.AssetType = "0x2::sui::SUI"
	_, err := BuildTransaction(testConfig(), testEntry(2), b, 1)
	if !clierr.IsCode(err, clierr.CodeUnsupported) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
	if !strings.Contains(err.Error(), "only one generic asset type") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestBuildTransactionOwnershipValidated(t *testing.T) {
	b := testBindings()
	b.Market = &chain.ObjectRef{ID: "0x11", Version: 9, Owner: chain.OwnershipAddress}
	if _, err := BuildTransaction(testConfig(), testEntry(0), b, 1); err == nil {
		t.Fatalf("expected ownership validation failure")
	}
}

type fakeSim struct {
	result *chain.ExecResult
	err    error
	calls  int
}

func (f *fakeSim) Simulate(_ context.Context, _ *chain.Transaction) (*chain.ExecResult, error) {
	f.calls++
	return f.result, f.err
}

func TestEngineProbeClassifiesRejection(t *testing.T) {
	sim := &fakeSim{result: &chain.ExecResult{Accepted: false, ErrorMessage: "withdraw limit exceeded"}}
	e := NewEngine(sim, nil, testConfig(), zerolog.Nop())
	res, err := e.Probe(context.Background(), testEntry(0), testBindings(), 42)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if res.Accepted || res.Classification != ClassResourceLimit {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Amount != 42 {
		t.Fatalf("result should echo the trial amount")
	}
}

func TestEngineProbeAccepted(t *testing.T) {
	sim := &fakeSim{result: &chain.ExecResult{Accepted: true}}
	e := NewEngine(sim, nil, testConfig(), zerolog.Nop())
	res, err := e.Probe(context.Background(), testEntry(0), testBindings(), 7)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if !res.Accepted || res.Classification != ClassAccepted {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestEngineProbeIdempotent(t *testing.T) {
	// Simulation never mutates chain state, so re-probing the same amount
	// against an unchanged simulator must classify identically every time.
	sim := &fakeSim{result: &chain.ExecResult{Accepted: false, ErrorMessage: "withdraw limit exceeded"}}
	e := NewEngine(sim, nil, testConfig(), zerolog.Nop())
	first, err := e.Probe(context.Background(), testEntry(0), testBindings(), 42)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		res, err := e.Probe(context.Background(), testEntry(0), testBindings(), 42)
		if err != nil {
			t.Fatalf("repeat probe %d failed: %v", i+1, err)
		}
		if res != first {
			t.Fatalf("repeat probe %d diverged: %+v vs %+v", i+1, res, first)
		}
	}
	if sim.calls != 4 {
		t.Fatalf("each probe should simulate exactly once, got %d calls", sim.calls)
	}
}

func TestEngineProbeTransportError(t *testing.T) {
	sim := &fakeSim{err: errors.New("connection refused")}
	e := NewEngine(sim, nil, testConfig(), zerolog.Nop())
	_, err := e.Probe(context.Background(), testEntry(0), testBindings(), 7)
	if !clierr.IsCode(err, clierr.CodeUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}
