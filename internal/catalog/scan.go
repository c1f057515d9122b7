package catalog

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/keelerlabs/lenderctl/internal/chain"
	"github.com/keelerlabs/lenderctl/internal/id"
)

// DefaultScanDepth bounds the collateral walk. Collateral entries sit two
// levels below the position in current deployments (position -> collateral
// table -> entry); one extra level absorbs container-layout drift.
const DefaultScanDepth = 3

// CollateralBalance is the result of a best-effort collateral scan.
type CollateralBalance struct {
	Found   bool
	Balance uint64
	EntryID string
}

// FindCollateral walks the dynamic fields attached to a position looking for
// an entry keyed by the asset type and carrying an available balance. The
// walk is a heuristic with known false negatives: entries whose container
// naming differs from the expected layout are missed, and callers must treat
// NotFound as "unknown", not "zero".
func (c *Catalog) FindCollateral(ctx context.Context, positionID, assetType string, maxDepth int) CollateralBalance {
	if maxDepth <= 0 {
		maxDepth = DefaultScanDepth
	}
	target := normalizeTypeKey(assetType)

	frontier := []string{positionID}
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, parent := range frontier {
			fields, ok := c.listAllDynamicFields(ctx, parent)
			if !ok {
				continue
			}
			for _, field := range fields {
				if matchesAssetKey(field, target) {
					if balance, ok := c.readBalance(ctx, field.ObjectID); ok {
						return CollateralBalance{Found: true, Balance: balance, EntryID: field.ObjectID}
					}
				}
				next = append(next, field.ObjectID)
			}
		}
		frontier = next
	}
	return CollateralBalance{}
}

func (c *Catalog) listAllDynamicFields(ctx context.Context, parentID string) ([]chain.DynamicFieldInfo, bool) {
	var out []chain.DynamicFieldInfo
	cursor := ""
	for {
		page, err := c.rpc.ListDynamicFields(ctx, parentID, cursor)
		if err != nil {
			return nil, false
		}
		out = append(out, page.Items...)
		if !page.HasNextPage || page.NextCursor == "" {
			return out, true
		}
		cursor = page.NextCursor
	}
}

func (c *Catalog) readBalance(ctx context.Context, entryID string) (uint64, bool) {
	obj, err := c.rpc.GetObject(ctx, entryID)
	if err != nil || obj == nil || obj.Content == nil {
		return 0, false
	}
	for _, key := range []string{"amount", "balance", "value"} {
		if v, ok := numericField(obj.Content[key]); ok {
			return v, true
		}
	}
	// Table entries wrap their payload in a value struct.
	if wrapped, ok := obj.Content["value"].(map[string]any); ok {
		if fields, ok := wrapped["fields"].(map[string]any); ok {
			for _, key := range []string{"amount", "balance"} {
				if v, ok := numericField(fields[key]); ok {
					return v, true
				}
			}
		}
	}
	return 0, false
}

func numericField(v any) (uint64, bool) {
	switch t := v.(type) {
	case string:
		n, err := strconv.ParseUint(t, 10, 64)
		return n, err == nil
	case float64:
		if t < 0 {
			return 0, false
		}
		return uint64(t), true
	case json.Number:
		n, err := strconv.ParseUint(t.String(), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// matchesAssetKey compares a dynamic field's key against the target asset
// type. Keys appear either as plain type-name strings or as wrapped
// {"name": "..."} values depending on the container.
func matchesAssetKey(field chain.DynamicFieldInfo, target string) bool {
	var s string
	if err := json.Unmarshal(field.Name.Value, &s); err == nil && s != "" {
		return normalizeTypeKey(s) == target
	}
	var wrapped struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(field.Name.Value, &wrapped); err == nil && wrapped.Name != "" {
		return normalizeTypeKey(wrapped.Name) == target
	}
	return false
}

// normalizeTypeKey canonicalizes a type-name key so 0x-prefixed and bare
// address spellings compare equal.
func normalizeTypeKey(raw string) string {
	clean := strings.TrimSpace(raw)
	if tag, err := id.ParseTypeTag(clean); err == nil {
		return tag.String()
	}
	if tag, err := id.ParseTypeTag("0x" + clean); err == nil {
		return tag.String()
	}
	return strings.ToLower(clean)
}
