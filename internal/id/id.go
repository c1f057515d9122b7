package id

import (
	"fmt"
	"regexp"
	"strings"

	clierr "github.com/keelerlabs/lenderctl/internal/errors"
)

// ObjectIDLength is the canonical byte length of an on-chain object id.
const ObjectIDLength = 32

var hexPattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{1,64}$`)

// NormalizeObjectID validates a hex object id and returns it in canonical
// 0x-prefixed, zero-padded, lowercase form.
func NormalizeObjectID(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return "", clierr.New(clierr.CodeUsage, "object id is required")
	}
	if !hexPattern.MatchString(clean) {
		return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid object id %q", raw))
	}
	clean = strings.ToLower(strings.TrimPrefix(clean, "0x"))
	if len(clean) < ObjectIDLength*2 {
		clean = strings.Repeat("0", ObjectIDLength*2-len(clean)) + clean
	}
	return "0x" + clean, nil
}

// IsObjectID reports whether raw parses as an object id.
func IsObjectID(raw string) bool {
	_, err := NormalizeObjectID(raw)
	return err == nil
}

// TypeTag identifies a struct type: package address, module, name, and
// optional generic type arguments.
type TypeTag struct {
	Address string
	Module  string
	Name    string
	Params  []TypeTag
}

func (t TypeTag) String() string {
	base := fmt.Sprintf("%s::%s::%s", t.Address, t.Module, t.Name)
	if len(t.Params) == 0 {
		return base
	}
	parts := make([]string, 0, len(t.Params))
	for _, p := range t.Params {
		parts = append(parts, p.String())
	}
	return base + "<" + strings.Join(parts, ", ") + ">"
}

// ParseTypeTag parses tags like 0x2::coin::Coin<0x2::iota::IOTA>. Nesting is
// supported one generic list at a time, which covers every tag the protocol
// emits.
func ParseTypeTag(raw string) (TypeTag, error) {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return TypeTag{}, clierr.New(clierr.CodeUsage, "type tag is required")
	}

	var paramsRaw string
	if idx := strings.Index(clean, "<"); idx >= 0 {
		if !strings.HasSuffix(clean, ">") {
			return TypeTag{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("unbalanced generics in type tag %q", raw))
		}
		paramsRaw = clean[idx+1 : len(clean)-1]
		clean = clean[:idx]
	}

	parts := strings.Split(clean, "::")
	if len(parts) != 3 {
		return TypeTag{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("type tag %q must be address::module::Name", raw))
	}
	addr, err := NormalizeObjectID(parts[0])
	if err != nil {
		return TypeTag{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("type tag %q has an invalid package address", raw))
	}
	tag := TypeTag{Address: addr, Module: parts[1], Name: parts[2]}
	if tag.Module == "" || tag.Name == "" {
		return TypeTag{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("type tag %q has empty segments", raw))
	}

	for _, p := range splitTopLevel(paramsRaw) {
		inner, err := ParseTypeTag(p)
		if err != nil {
			return TypeTag{}, err
		}
		tag.Params = append(tag.Params, inner)
	}
	return tag, nil
}

// splitTopLevel splits a comma-separated generic parameter list without
// breaking nested angle brackets.
func splitTopLevel(raw string) []string {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return nil
	}
	var out []string
	depth := 0
	start := 0
	for i, r := range clean {
		switch r {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(clean[start:i]))
				start = i + 1
			}
		}
	}
	out = append(out, strings.TrimSpace(clean[start:]))
	return out
}
