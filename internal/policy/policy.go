package policy

import (
	"strings"

	clierr "github.com/keelerlabs/lenderctl/internal/errors"
)

// CheckCommandAllowed enforces the --enable-commands allowlist. An empty
// allowlist permits everything; scripts that only ever read state pass
// "--enable-commands position,points" to make mutation impossible.
func CheckCommandAllowed(allowlist []string, commandPath string) error {
	if len(allowlist) == 0 {
		return nil
	}
	normPath := normalize(commandPath)
	for _, allowed := range allowlist {
		if normalize(allowed) == normPath {
			return nil
		}
	}
	return clierr.New(clierr.CodeBlocked, "command blocked by --enable-commands policy")
}

func normalize(v string) string {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(v)))
	return strings.Join(parts, " ")
}
