package roles

import (
	"fmt"

	"github.com/keelerlabs/lenderctl/internal/chain"
	clierr "github.com/keelerlabs/lenderctl/internal/errors"
)

// ParameterRole is the semantic role of one declared entry-point parameter.
type ParameterRole int

const (
	RoleUnrecognized ParameterRole = iota
	RoleVersionStamp
	RoleBorrowerPosition
	RolePositionCapability
	RoleMarket
	RolePriceRegistry
	RolePriceOracle
	RoleClockRef
	RoleNumericAmount
)

func (r ParameterRole) String() string {
	switch r {
	case RoleVersionStamp:
		return "version_stamp"
	case RoleBorrowerPosition:
		return "borrower_position"
	case RolePositionCapability:
		return "position_capability"
	case RoleMarket:
		return "market"
	case RolePriceRegistry:
		return "price_registry"
	case RolePriceOracle:
		return "price_oracle"
	case RoleClockRef:
		return "clock"
	case RoleNumericAmount:
		return "numeric_amount"
	default:
		return "unrecognized"
	}
}

// structIdentity is the (module, struct name) pair a role matches on. The
// match is structural equality, never substring inspection.
type structIdentity struct {
	module string
	name   string
}

// Role identities follow the protocol's published module vocabulary. The
// order of this table is the fixed matching priority: first match wins.
var roleIdentities = []struct {
	role ParameterRole
	id   structIdentity
}{
	{RoleVersionStamp, structIdentity{"version", "Version"}},
	{RolePositionCapability, structIdentity{"obligation", "ObligationKey"}},
	{RoleBorrowerPosition, structIdentity{"obligation", "Obligation"}},
	{RoleMarket, structIdentity{"market", "Market"}},
	{RolePriceRegistry, structIdentity{"coin_decimals_registry", "CoinDecimalsRegistry"}},
	{RolePriceOracle, structIdentity{"x_oracle", "XOracle"}},
	{RoleClockRef, structIdentity{"clock", "Clock"}},
}

// Classify maps a structural parameter descriptor to its semantic role.
func Classify(p chain.ParameterDescriptor) ParameterRole {
	if module, name, ok := p.StructIdentity(); ok {
		for _, entry := range roleIdentities {
			if entry.id.module == module && entry.id.name == name {
				return entry.role
			}
		}
		return RoleUnrecognized
	}
	if p.IsNumeric() {
		return RoleNumericAmount
	}
	return RoleUnrecognized
}

// Bindings supplies one resolved value per role the matcher can emit. The
// registry selection is threaded through here explicitly rather than held in
// any shared state.
type Bindings struct {
	VersionStamp  *chain.ObjectRef
	Market        *chain.ObjectRef
	PriceRegistry *chain.ObjectRef
	PriceOracle   *chain.ObjectRef
	Clock         *chain.ObjectRef
	Position      *chain.ObjectRef
	Capability    *chain.ObjectRef

	// OraclePackage and AssetType drive the price-refresh preamble; they are
	// not matched parameters.
	OraclePackage string
	AssetType     string
	PriceTTLMS    uint64

	// BestEffortRegistry permits an unverified price-registry candidate to be
	// used even when its ownership could not be confirmed shared.
	BestEffortRegistry bool
}

// BuildArguments emits exactly one concrete argument per declared parameter,
// in order, with the single numeric parameter bound to amount. It fails with
// a descriptive error naming the missing role rather than silently skipping
// a parameter, which would corrupt the call arity.
func BuildArguments(params []chain.ParameterDescriptor, b Bindings, amount uint64) ([]chain.CallArg, error) {
	out := make([]chain.CallArg, 0, len(params))
	numericBound := false
	for i, p := range params {
		role := Classify(p)
		switch role {
		case RoleNumericAmount:
			if numericBound {
				return nil, clierr.New(clierr.CodeUnsupported,
					fmt.Sprintf("entry point declares a second numeric parameter at position %d; refusing to bind both to one amount", i))
			}
			numericBound = true
			out = append(out, chain.PureCallArg(chain.PureU64(amount)))
		case RoleUnrecognized:
			return nil, clierr.New(clierr.CodeUnsupported,
				fmt.Sprintf("parameter %d has no recognized role (%s)", i, describeParam(p)))
		default:
			ref, err := b.refFor(role)
			if err != nil {
				return nil, err
			}
			out = append(out, chain.ObjectCallArg(*ref, p.MutableRef))
		}
	}
	return out, nil
}

func (b Bindings) refFor(role ParameterRole) (*chain.ObjectRef, error) {
	var ref *chain.ObjectRef
	switch role {
	case RoleVersionStamp:
		ref = b.VersionStamp
	case RoleBorrowerPosition:
		ref = b.Position
	case RolePositionCapability:
		ref = b.Capability
	case RoleMarket:
		ref = b.Market
	case RolePriceRegistry:
		ref = b.PriceRegistry
	case RolePriceOracle:
		ref = b.PriceOracle
	case RoleClockRef:
		ref = b.Clock
	}
	if ref == nil {
		if role == RolePositionCapability {
			return nil, clierr.New(clierr.CodeUsage, "missing position capability binding")
		}
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("missing %s binding", role))
	}
	return ref, nil
}

// ValidateOwnership enforces the shared-reference invariant: every binding
// the protocol reads concurrently must be Shared or Immutable before it is
// used in a submittable transaction. The price registry may be exempted via
// the explicit best-effort flag; nothing else is.
func ValidateOwnership(b Bindings) error {
	checks := []struct {
		role ParameterRole
		ref  *chain.ObjectRef
	}{
		{RoleVersionStamp, b.VersionStamp},
		{RoleMarket, b.Market},
		{RolePriceRegistry, b.PriceRegistry},
		{RolePriceOracle, b.PriceOracle},
		{RoleClockRef, b.Clock},
		{RoleBorrowerPosition, b.Position},
	}
	for _, check := range checks {
		if check.ref == nil {
			continue
		}
		if check.ref.Owner.SharedOrImmutable() {
			continue
		}
		if check.role == RolePriceRegistry && b.BestEffortRegistry {
			continue
		}
		return clierr.New(clierr.CodeUsage,
			fmt.Sprintf("%s object %s has ownership %s; a shared or immutable reference is required", check.role, check.ref.ID, check.ref.Owner))
	}
	return nil
}

// RequiredRoles returns the set of roles an entry point's parameters resolve
// to, used by discovery scoring.
func RequiredRoles(params []chain.ParameterDescriptor) map[ParameterRole]bool {
	out := make(map[ParameterRole]bool, len(params))
	for _, p := range params {
		out[Classify(p)] = true
	}
	return out
}

func describeParam(p chain.ParameterDescriptor) string {
	if module, name, ok := p.StructIdentity(); ok {
		return module + "::" + name
	}
	if p.Primitive != "" {
		return p.Primitive
	}
	if p.Vector != nil {
		return "vector<" + describeParam(*p.Vector) + ">"
	}
	if p.TypeParameter != nil {
		return fmt.Sprintf("type parameter %d", *p.TypeParameter)
	}
	return "unknown"
}
