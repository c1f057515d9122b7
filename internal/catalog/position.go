package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/keelerlabs/lenderctl/internal/chain"
	clierr "github.com/keelerlabs/lenderctl/internal/errors"
	"github.com/keelerlabs/lenderctl/internal/id"
)

// Position is a user's collateralized borrowing account plus the owned
// capability that authorizes mutating it.
type Position struct {
	Ref        chain.ObjectRef
	Capability chain.ObjectRef
}

// FindPosition locates the caller's position by enumerating owned capability
// objects of the protocol package and following the ownership back-reference
// embedded in the capability's content. Positions are only ever discovered
// here, never created.
func (c *Catalog) FindPosition(ctx context.Context, protocolPackage, owner string) (*Position, error) {
	capType := fmt.Sprintf("%s::obligation::ObligationKey", protocolPackage)
	cursor := ""
	var capabilities []*chain.ObjectData
	for {
		page, err := c.rpc.ListOwnedObjects(ctx, owner, capType, cursor)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUnavailable, "enumerate position capabilities", err)
		}
		capabilities = append(capabilities, page.Items...)
		if !page.HasNextPage || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	if len(capabilities) == 0 {
		return nil, clierr.New(clierr.CodeDiscovery, "no position capability owned by this address")
	}
	if len(capabilities) > 1 {
		c.log.Warn().Int("count", len(capabilities)).Msg("multiple position capabilities found; using the first")
	}

	capability := capabilities[0]
	positionID, ok := positionBackReference(capability.Content)
	if !ok {
		return nil, clierr.New(clierr.CodeDiscovery,
			fmt.Sprintf("capability %s has no position back-reference", capability.ID))
	}
	positionID, err := id.NormalizeObjectID(positionID)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeDiscovery, "capability back-reference is not an object id", err)
	}

	position, err := c.rpc.GetObject(ctx, positionID)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "fetch position object", err)
	}
	return &Position{Ref: position.Ref(), Capability: capability.Ref()}, nil
}

// positionBackReference digs the governed position id out of a capability's
// content. The field sits under ownership.fields.of in current deployments,
// with a flat "of" fallback for older layouts.
func positionBackReference(content map[string]any) (string, bool) {
	if content == nil {
		return "", false
	}
	if v, ok := lookupField(content, "ownership", "of"); ok {
		return v, true
	}
	if v, ok := content["of"].(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// lookupField walks nested object content, descending through the "fields"
// wrapper each nested struct carries.
func lookupField(content map[string]any, path ...string) (string, bool) {
	current := any(content)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return "", false
		}
		next, ok := m[key]
		if !ok {
			if wrapped, wok := m["fields"].(map[string]any); wok {
				next, ok = wrapped[key]
			}
			if !ok {
				return "", false
			}
		}
		current = next
	}
	s, ok := current.(string)
	return s, ok && strings.TrimSpace(s) != ""
}
