package chain

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// encoder writes the canonical binary form the chain expects for transaction
// payloads: ULEB128 lengths, little-endian integers, 32-byte addresses.
type encoder struct {
	buf []byte
}

func (e *encoder) bytes() []byte { return e.buf }

func (e *encoder) writeByte(b byte) {
	e.buf = append(e.buf, b)
}

func (e *encoder) writeBool(v bool) {
	if v {
		e.writeByte(1)
	} else {
		e.writeByte(0)
	}
}

func (e *encoder) writeU64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

func (e *encoder) writeULEB128(v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			e.buf = append(e.buf, b|0x80)
			continue
		}
		e.buf = append(e.buf, b)
		return
	}
}

func (e *encoder) writeBytes(b []byte) {
	e.writeULEB128(uint64(len(b)))
	e.buf = append(e.buf, b...)
}

func (e *encoder) writeString(s string) {
	e.writeBytes([]byte(s))
}

func (e *encoder) writeAddress(id string) error {
	raw, err := addressBytes(id)
	if err != nil {
		return err
	}
	e.buf = append(e.buf, raw...)
	return nil
}

func addressBytes(id string) ([]byte, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(id), "0x")
	if clean == "" {
		return nil, fmt.Errorf("empty address")
	}
	if len(clean) < 64 {
		clean = strings.Repeat("0", 64-len(clean)) + clean
	}
	raw, err := hex.DecodeString(clean)
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("invalid address %q", id)
	}
	return raw, nil
}

// PureU64 encodes a u64 call argument value.
func PureU64(v uint64) []byte {
	var e encoder
	e.writeU64(v)
	return e.bytes()
}

// PureBool encodes a bool call argument value.
func PureBool(v bool) []byte {
	var e encoder
	e.writeBool(v)
	return e.bytes()
}

// PureAddress encodes an address call argument value.
func PureAddress(id string) ([]byte, error) {
	raw, err := addressBytes(id)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
