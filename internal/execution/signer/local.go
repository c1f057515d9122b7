package signer

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/blake2b"
)

const (
	EnvPrivateKey     = "LENDER_PRIVATE_KEY"
	EnvPrivateKeyFile = "LENDER_PRIVATE_KEY_FILE"

	// Bech32 human-readable prefix of exported secret keys.
	secretKeyHRP = "suiprivkey"

	// Signature scheme flag for ed25519.
	ed25519Flag byte = 0x00

	defaultPrivateKeyRelativePath = "lenderctl/key"
)

// LocalSigner holds an in-process ed25519 key. The address is the blake2b-256
// hash of the scheme flag followed by the public key.
type LocalSigner struct {
	privateKey ed25519.PrivateKey
	address    string
}

func (s *LocalSigner) Address() string {
	return s.address
}

// Sign produces the serialized signature form the chain expects:
// base64(flag | signature | publicKey).
func (s *LocalSigner) Sign(digest []byte) (string, error) {
	if s == nil || len(s.privateKey) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("local signer is not initialized")
	}
	sig := ed25519.Sign(s.privateKey, digest)
	serialized := make([]byte, 0, 1+len(sig)+ed25519.PublicKeySize)
	serialized = append(serialized, ed25519Flag)
	serialized = append(serialized, sig...)
	serialized = append(serialized, s.privateKey.Public().(ed25519.PublicKey)...)
	return base64.StdEncoding.EncodeToString(serialized), nil
}

// NewLocalSignerFromEnv loads a key from LENDER_PRIVATE_KEY,
// LENDER_PRIVATE_KEY_FILE, or the default key file, in that order. An
// explicit override wins over all of them.
func NewLocalSignerFromEnv(privateKeyOverride string) (*LocalSigner, error) {
	if v := strings.TrimSpace(privateKeyOverride); v != "" {
		return NewLocalSigner(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvPrivateKey)); v != "" {
		return NewLocalSigner(v)
	}
	keyFile := strings.TrimSpace(os.Getenv(EnvPrivateKeyFile))
	if keyFile == "" {
		keyFile = discoverDefaultPrivateKeyFile()
	}
	if keyFile != "" {
		buf, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("read private key file: %w", err)
		}
		return NewLocalSigner(string(buf))
	}
	return nil, fmt.Errorf("missing signing key: set %s or %s", EnvPrivateKey, EnvPrivateKeyFile)
}

// NewLocalSigner parses a secret key in bech32 (suiprivkey...), hex, or
// base64 form.
func NewLocalSigner(raw string) (*LocalSigner, error) {
	seed, err := parseSecretKey(raw)
	if err != nil {
		return nil, err
	}
	pk := ed25519.NewKeyFromSeed(seed)
	pub := pk.Public().(ed25519.PublicKey)
	sum := blake2b.Sum256(append([]byte{ed25519Flag}, pub...))
	return &LocalSigner{
		privateKey: pk,
		address:    "0x" + hex.EncodeToString(sum[:]),
	}, nil
}

func parseSecretKey(raw string) ([]byte, error) {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return nil, fmt.Errorf("empty private key")
	}

	if strings.HasPrefix(clean, secretKeyHRP+"1") {
		hrp, data, err := bech32.Decode(clean)
		if err != nil {
			return nil, fmt.Errorf("decode bech32 secret key: %w", err)
		}
		if hrp != secretKeyHRP {
			return nil, fmt.Errorf("unexpected secret key prefix %q", hrp)
		}
		converted, err := bech32.ConvertBits(data, 5, 8, false)
		if err != nil {
			return nil, fmt.Errorf("decode bech32 secret key payload: %w", err)
		}
		// First payload byte is the scheme flag.
		if len(converted) != ed25519.SeedSize+1 || converted[0] != ed25519Flag {
			return nil, fmt.Errorf("secret key is not an ed25519 key")
		}
		return converted[1:], nil
	}

	hexClean := strings.TrimPrefix(clean, "0x")
	if buf, err := hex.DecodeString(hexClean); err == nil {
		return seedFromRaw(buf)
	}
	if buf, err := base64.StdEncoding.DecodeString(clean); err == nil {
		return seedFromRaw(buf)
	}
	return nil, fmt.Errorf("private key is not bech32, hex, or base64")
}

func seedFromRaw(buf []byte) ([]byte, error) {
	switch len(buf) {
	case ed25519.SeedSize:
		return buf, nil
	case ed25519.SeedSize + 1:
		if buf[0] != ed25519Flag {
			return nil, fmt.Errorf("secret key is not an ed25519 key")
		}
		return buf[1:], nil
	default:
		return nil, fmt.Errorf("secret key must be %d bytes, got %d", ed25519.SeedSize, len(buf))
	}
}

func discoverDefaultPrivateKeyFile() string {
	base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	path := filepath.Join(base, defaultPrivateKeyRelativePath)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}
	return path
}
