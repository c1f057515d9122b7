package chain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OwnershipKind classifies how an on-chain object is owned. Shared and
// Immutable objects may be referenced by anyone; AddressOwned objects only by
// their owner's transactions.
type OwnershipKind int

const (
	OwnershipUnknown OwnershipKind = iota
	OwnershipShared
	OwnershipImmutable
	OwnershipAddress
	OwnershipObject
)

func (k OwnershipKind) String() string {
	switch k {
	case OwnershipShared:
		return "shared"
	case OwnershipImmutable:
		return "immutable"
	case OwnershipAddress:
		return "address_owned"
	case OwnershipObject:
		return "object_owned"
	default:
		return "unknown"
	}
}

// SharedOrImmutable reports whether an object with this ownership may be used
// as a concurrently-referenced argument in a submittable transaction.
func (k OwnershipKind) SharedOrImmutable() bool {
	return k == OwnershipShared || k == OwnershipImmutable
}

// ObjectRef pins an object id to the ownership facts needed to reference it
// in a transaction.
type ObjectRef struct {
	ID                   string
	Version              uint64
	Owner                OwnershipKind
	InitialSharedVersion uint64
}

// ObjectData is the decoded result of a getObject call.
type ObjectData struct {
	ID                   string
	Type                 string
	Version              uint64
	Owner                OwnershipKind
	OwnerAddress         string
	InitialSharedVersion uint64
	Content              map[string]any
}

func (o *ObjectData) Ref() ObjectRef {
	return ObjectRef{
		ID:                   o.ID,
		Version:              o.Version,
		Owner:                o.Owner,
		InitialSharedVersion: o.InitialSharedVersion,
	}
}

// owner JSON is either the string "Immutable" or a single-key object such as
// {"Shared":{"initial_shared_version":42}} or {"AddressOwner":"0x.."}.
type rawOwner struct {
	Kind                 OwnershipKind
	Address              string
	InitialSharedVersion uint64
}

func (o *rawOwner) UnmarshalJSON(buf []byte) error {
	var s string
	if err := json.Unmarshal(buf, &s); err == nil {
		if strings.EqualFold(s, "Immutable") {
			o.Kind = OwnershipImmutable
			return nil
		}
		o.Kind = OwnershipUnknown
		return nil
	}
	var obj struct {
		AddressOwner string `json:"AddressOwner"`
		ObjectOwner  string `json:"ObjectOwner"`
		Shared       *struct {
			InitialSharedVersion uint64 `json:"initial_shared_version"`
		} `json:"Shared"`
	}
	if err := json.Unmarshal(buf, &obj); err != nil {
		o.Kind = OwnershipUnknown
		return nil
	}
	switch {
	case obj.Shared != nil:
		o.Kind = OwnershipShared
		o.InitialSharedVersion = obj.Shared.InitialSharedVersion
	case obj.AddressOwner != "":
		o.Kind = OwnershipAddress
		o.Address = obj.AddressOwner
	case obj.ObjectOwner != "":
		o.Kind = OwnershipObject
		o.Address = obj.ObjectOwner
	default:
		o.Kind = OwnershipUnknown
	}
	return nil
}

// StructTag is the structural identity of a declared struct type.
type StructTag struct {
	Address       string                `json:"address"`
	Module        string                `json:"module"`
	Name          string                `json:"name"`
	TypeArguments []ParameterDescriptor `json:"typeArguments"`
}

// ParameterDescriptor is the structural type tag of one declared function
// parameter. Exactly one of Primitive, Struct, TypeParameter, or Vector is
// set; Ref and MutableRef record whether the value sits behind a reference.
type ParameterDescriptor struct {
	Primitive     string
	Struct        *StructTag
	TypeParameter *int
	Vector        *ParameterDescriptor
	Ref           bool
	MutableRef    bool
}

// IsNumeric reports whether the parameter is a plain unsigned integer.
func (p ParameterDescriptor) IsNumeric() bool {
	switch p.Primitive {
	case "U8", "U16", "U32", "U64", "U128", "U256":
		return !p.Ref
	default:
		return false
	}
}

// StructIdentity returns the (module, name) pair of the struct the parameter
// refers to, looking through references.
func (p ParameterDescriptor) StructIdentity() (string, string, bool) {
	if p.Struct == nil {
		return "", "", false
	}
	return p.Struct.Module, p.Struct.Name, true
}

func (p *ParameterDescriptor) UnmarshalJSON(buf []byte) error {
	var s string
	if err := json.Unmarshal(buf, &s); err == nil {
		p.Primitive = s
		return nil
	}
	var obj struct {
		Struct           *StructTag           `json:"Struct"`
		Reference        *ParameterDescriptor `json:"Reference"`
		MutableReference *ParameterDescriptor `json:"MutableReference"`
		Vector           *ParameterDescriptor `json:"Vector"`
		TypeParameter    *int                 `json:"TypeParameter"`
	}
	if err := json.Unmarshal(buf, &obj); err != nil {
		return fmt.Errorf("decode parameter descriptor: %w", err)
	}
	switch {
	case obj.Reference != nil:
		*p = *obj.Reference
		p.Ref = true
	case obj.MutableReference != nil:
		*p = *obj.MutableReference
		p.Ref = true
		p.MutableRef = true
	case obj.Struct != nil:
		p.Struct = obj.Struct
	case obj.Vector != nil:
		p.Vector = obj.Vector
	case obj.TypeParameter != nil:
		p.TypeParameter = obj.TypeParameter
	}
	return nil
}

// NormalizedFunction is the declared interface of one exposed function.
type NormalizedFunction struct {
	Visibility     string                `json:"visibility"`
	IsEntry        bool                  `json:"isEntry"`
	TypeParameters []json.RawMessage     `json:"typeParameters"`
	Parameters     []ParameterDescriptor `json:"parameters"`
}

// NormalizedModule is the declared interface of one module within a package.
type NormalizedModule struct {
	Name             string                        `json:"name"`
	ExposedFunctions map[string]NormalizedFunction `json:"exposedFunctions"`
}

// EntryPoint is a callable (package, module, function) triple plus its
// declared parameter shapes. Discovered fresh per run, never mutated.
type EntryPoint struct {
	PackageID      string
	Module         string
	Function       string
	Parameters     []ParameterDescriptor
	TypeParameters int
}

func (e EntryPoint) QualifiedName() string {
	return fmt.Sprintf("%s::%s::%s", e.PackageID, e.Module, e.Function)
}

// ShortName is the module::function form used in logs and ranking output.
func (e EntryPoint) ShortName() string {
	return fmt.Sprintf("%s::%s", e.Module, e.Function)
}

// ExecResult is the outcome of a simulated or submitted transaction.
type ExecResult struct {
	Accepted     bool
	ErrorMessage string
	Digest       string
	Events       []Event
}

// Event is an emitted protocol event, kept raw for rendering.
type Event struct {
	Type   string          `json:"type"`
	Parsed json.RawMessage `json:"parsedJson,omitempty"`
}

// Coin is one gas or asset coin owned by an address.
type Coin struct {
	ObjectID string `json:"coinObjectId"`
	Type     string `json:"coinType"`
	Balance  uint64 `json:"balance,string"`
	Version  uint64 `json:"version,string"`
	Digest   string `json:"digest"`
}

// Page is one page of a cursor-based listing.
type Page[T any] struct {
	Items       []T
	NextCursor  string
	HasNextPage bool
}

// DynamicFieldInfo identifies one dynamic child field of a parent object.
type DynamicFieldInfo struct {
	ObjectID string `json:"objectId"`
	Type     string `json:"objectType"`
	Name     struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	} `json:"name"`
}
