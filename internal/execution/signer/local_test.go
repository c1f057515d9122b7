package signer

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

const testSeedHex = "0101010101010101010101010101010101010101010101010101010101010101"

func TestNewLocalSignerFromHexSeed(t *testing.T) {
	s, err := NewLocalSigner("0x" + testSeedHex)
	if err != nil {
		t.Fatalf("NewLocalSigner failed: %v", err)
	}
	addr := s.Address()
	if !strings.HasPrefix(addr, "0x") || len(addr) != 66 {
		t.Fatalf("unexpected address shape: %s", addr)
	}
	if _, err := hex.DecodeString(strings.TrimPrefix(addr, "0x")); err != nil {
		t.Fatalf("address is not hex: %v", err)
	}

	// Same seed in a different encoding derives the same address.
	again, err := NewLocalSigner(testSeedHex)
	if err != nil {
		t.Fatalf("bare hex parse failed: %v", err)
	}
	if again.Address() != addr {
		t.Fatalf("address not deterministic: %s vs %s", again.Address(), addr)
	}
}

func TestSignSerialization(t *testing.T) {
	s, err := NewLocalSigner(testSeedHex)
	if err != nil {
		t.Fatalf("NewLocalSigner failed: %v", err)
	}
	digest := make([]byte, 32)
	sig, err := s.Sign(digest)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		t.Fatalf("signature is not base64: %v", err)
	}
	if len(raw) != 1+ed25519.SignatureSize+ed25519.PublicKeySize {
		t.Fatalf("serialized signature length = %d", len(raw))
	}
	if raw[0] != 0x00 {
		t.Fatalf("scheme flag = %#x, want ed25519", raw[0])
	}
	pub := ed25519.PublicKey(raw[1+ed25519.SignatureSize:])
	if !ed25519.Verify(pub, digest, raw[1:1+ed25519.SignatureSize]) {
		t.Fatalf("embedded signature does not verify against embedded key")
	}
}

func TestNewLocalSignerBech32(t *testing.T) {
	seed, _ := hex.DecodeString(testSeedHex)
	payload := append([]byte{0x00}, seed...)
	converted, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		t.Fatalf("ConvertBits failed: %v", err)
	}
	encoded, err := bech32.Encode("suiprivkey", converted)
	if err != nil {
		t.Fatalf("bech32 encode failed: %v", err)
	}

	fromBech, err := NewLocalSigner(encoded)
	if err != nil {
		t.Fatalf("bech32 parse failed: %v", err)
	}
	fromHex, err := NewLocalSigner(testSeedHex)
	if err != nil {
		t.Fatalf("hex parse failed: %v", err)
	}
	if fromBech.Address() != fromHex.Address() {
		t.Fatalf("bech32 and hex forms diverge: %s vs %s", fromBech.Address(), fromHex.Address())
	}
}

func TestNewLocalSignerFlaggedHex(t *testing.T) {
	flagged := "00" + testSeedHex
	s, err := NewLocalSigner(flagged)
	if err != nil {
		t.Fatalf("flagged hex parse failed: %v", err)
	}
	plain, _ := NewLocalSigner(testSeedHex)
	if s.Address() != plain.Address() {
		t.Fatalf("flag byte changed the derived address")
	}
}

func TestNewLocalSignerBase64(t *testing.T) {
	seed, _ := hex.DecodeString(testSeedHex)
	s, err := NewLocalSigner(base64.StdEncoding.EncodeToString(seed))
	if err != nil {
		t.Fatalf("base64 parse failed: %v", err)
	}
	plain, _ := NewLocalSigner(testSeedHex)
	if s.Address() != plain.Address() {
		t.Fatalf("base64 form diverges from hex form")
	}
}

func TestNewLocalSignerRejectsBadInput(t *testing.T) {
	for _, in := range []string{"", "0xdead", "suiprivkey1qqqq", "!!not-a-key!!"} {
		if _, err := NewLocalSigner(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestNewLocalSignerFromEnv(t *testing.T) {
	t.Setenv(EnvPrivateKey, testSeedHex)
	t.Setenv(EnvPrivateKeyFile, "")
	s, err := NewLocalSignerFromEnv("")
	if err != nil {
		t.Fatalf("env key load failed: %v", err)
	}
	plain, _ := NewLocalSigner(testSeedHex)
	if s.Address() != plain.Address() {
		t.Fatalf("env-loaded key diverges")
	}
}

func TestNewLocalSignerFromEnvKeyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "key")
	if err := os.WriteFile(path, []byte(testSeedHex+"\n"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	t.Setenv(EnvPrivateKey, "")
	t.Setenv(EnvPrivateKeyFile, path)
	if _, err := NewLocalSignerFromEnv(""); err != nil {
		t.Fatalf("key file load failed: %v", err)
	}
}

func TestNewLocalSignerOverrideWins(t *testing.T) {
	t.Setenv(EnvPrivateKey, "garbage-that-would-fail")
	s, err := NewLocalSignerFromEnv(testSeedHex)
	if err != nil {
		t.Fatalf("override load failed: %v", err)
	}
	plain, _ := NewLocalSigner(testSeedHex)
	if s.Address() != plain.Address() {
		t.Fatalf("override key diverges")
	}
}
