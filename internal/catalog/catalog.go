package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/keelerlabs/lenderctl/internal/cache"
	"github.com/keelerlabs/lenderctl/internal/chain"
	clierr "github.com/keelerlabs/lenderctl/internal/errors"
	"github.com/rs/zerolog"
)

// RPC is the slice of the network client the catalog needs.
type RPC interface {
	GetObject(ctx context.Context, objectID string) (*chain.ObjectData, error)
	ListOwnedObjects(ctx context.Context, owner, structType, cursor string) (chain.Page[*chain.ObjectData], error)
	ListDynamicFields(ctx context.Context, parentID, cursor string) (chain.Page[chain.DynamicFieldInfo], error)
	GetPackageInterface(ctx context.Context, packageID string) (map[string]chain.NormalizedModule, error)
}

// MetadataCache caches package interface metadata between runs.
type MetadataCache interface {
	Get(key string, maxStale time.Duration) (cache.Result, error)
	Set(key string, value []byte, ttl time.Duration) error
	Invalidate(key string) error
}

const (
	interfaceCacheTTL = 6 * time.Hour
	entryNameSuffix   = "_entry"
)

// Catalog answers type, ownership, and interface questions about on-chain
// resources. All lookups are best-effort: network and not-found errors
// degrade to zero values so discovery can continue past stale hints.
type Catalog struct {
	rpc   RPC
	cache MetadataCache
	log   zerolog.Logger
}

func New(rpc RPC, metaCache MetadataCache, log zerolog.Logger) *Catalog {
	return &Catalog{rpc: rpc, cache: metaCache, log: log}
}

// TypeOf returns the declared type of an object, or ok=false when the object
// cannot be resolved.
func (c *Catalog) TypeOf(ctx context.Context, objectID string) (string, bool) {
	obj, err := c.rpc.GetObject(ctx, objectID)
	if err != nil || obj == nil {
		return "", false
	}
	return obj.Type, obj.Type != ""
}

// OwnerKindOf returns the ownership classification of an object, or ok=false
// when the object cannot be resolved.
func (c *Catalog) OwnerKindOf(ctx context.Context, objectID string) (chain.OwnershipKind, bool) {
	obj, err := c.rpc.GetObject(ctx, objectID)
	if err != nil || obj == nil {
		return chain.OwnershipUnknown, false
	}
	return obj.Owner, true
}

// ResolveRef fetches an object's full reference (version, ownership). Unlike
// the best-effort lookups, callers that need a binding get the error back.
func (c *Catalog) ResolveRef(ctx context.Context, objectID string) (*chain.ObjectRef, error) {
	obj, err := c.rpc.GetObject(ctx, objectID)
	if err != nil {
		return nil, err
	}
	ref := obj.Ref()
	return &ref, nil
}

// IsPackage reports whether the id resolves to a deployed package with at
// least one module. Used to fail fast on misconfigured ids.
func (c *Catalog) IsPackage(ctx context.Context, objectID string) bool {
	modules, _, err := c.packageInterface(ctx, objectID)
	return err == nil && len(modules) > 0
}

// ListEntries returns every externally callable function of a package,
// including functions whose name carries the entry suffix even when the
// metadata's entry flag is absent; that flag is not always trustworthy.
// Errors degrade to an empty list.
func (c *Catalog) ListEntries(ctx context.Context, packageID string) []chain.EntryPoint {
	modules, _, err := c.packageInterface(ctx, packageID)
	if err != nil {
		c.log.Debug().Str("package", packageID).Err(err).Msg("package interface unavailable")
		return nil
	}

	moduleNames := make([]string, 0, len(modules))
	for name := range modules {
		moduleNames = append(moduleNames, name)
	}
	sort.Strings(moduleNames)

	var out []chain.EntryPoint
	for _, moduleName := range moduleNames {
		module := modules[moduleName]
		fnNames := make([]string, 0, len(module.ExposedFunctions))
		for name := range module.ExposedFunctions {
			fnNames = append(fnNames, name)
		}
		sort.Strings(fnNames)
		for _, fnName := range fnNames {
			fn := module.ExposedFunctions[fnName]
			if !fn.IsEntry && !strings.HasSuffix(fnName, entryNameSuffix) {
				continue
			}
			out = append(out, chain.EntryPoint{
				PackageID:      packageID,
				Module:         moduleName,
				Function:       fnName,
				Parameters:     fn.Parameters,
				TypeParameters: len(fn.TypeParameters),
			})
		}
	}
	return out
}

// FindEntry resolves an explicit module::function override against the
// package interface. Overrides bypass discovery scoring but still go through
// signature matching, so a typo fails with a clear error instead of a broken
// call. A miss against a cache-served interface may just mean the cache
// predates a contract upgrade, so the cached copy is dropped and the lookup
// retried once against the live interface.
func (c *Catalog) FindEntry(ctx context.Context, packageID, moduleName, functionName string) (chain.EntryPoint, error) {
	modules, cached, err := c.packageInterface(ctx, packageID)
	if err != nil {
		return chain.EntryPoint{}, clierr.Wrap(clierr.CodeUnavailable, "fetch package interface", err)
	}
	fn, lookupErr := lookupFunction(modules, packageID, moduleName, functionName)
	if lookupErr != nil && cached {
		c.log.Debug().
			Str("package", packageID).
			Str("function", moduleName+"::"+functionName).
			Msg("cached interface lacks function; refetching")
		_ = c.cache.Invalidate(interfaceCacheKey(packageID))
		modules, _, err = c.packageInterface(ctx, packageID)
		if err != nil {
			return chain.EntryPoint{}, clierr.Wrap(clierr.CodeUnavailable, "refetch package interface", err)
		}
		fn, lookupErr = lookupFunction(modules, packageID, moduleName, functionName)
	}
	if lookupErr != nil {
		return chain.EntryPoint{}, lookupErr
	}
	return chain.EntryPoint{
		PackageID:      packageID,
		Module:         moduleName,
		Function:       functionName,
		Parameters:     fn.Parameters,
		TypeParameters: len(fn.TypeParameters),
	}, nil
}

func lookupFunction(modules map[string]chain.NormalizedModule, packageID, moduleName, functionName string) (chain.NormalizedFunction, error) {
	module, ok := modules[moduleName]
	if !ok {
		return chain.NormalizedFunction{}, clierr.New(clierr.CodeDiscovery,
			fmt.Sprintf("package %s has no module %q", packageID, moduleName))
	}
	fn, ok := module.ExposedFunctions[functionName]
	if !ok {
		return chain.NormalizedFunction{}, clierr.New(clierr.CodeDiscovery,
			fmt.Sprintf("module %s has no function %q", moduleName, functionName))
	}
	return fn, nil
}

func interfaceCacheKey(packageID string) string {
	return "pkg-interface:" + packageID
}

// packageInterface returns the module map and whether it was served from the
// cache rather than fetched live.
func (c *Catalog) packageInterface(ctx context.Context, packageID string) (map[string]chain.NormalizedModule, bool, error) {
	cacheKey := interfaceCacheKey(packageID)
	if c.cache != nil {
		if res, err := c.cache.Get(cacheKey, 0); err == nil && res.Hit && !res.Stale {
			var modules map[string]chain.NormalizedModule
			if err := json.Unmarshal(res.Value, &modules); err == nil {
				return modules, true, nil
			}
		}
	}
	modules, err := c.rpc.GetPackageInterface(ctx, packageID)
	if err != nil {
		return nil, false, err
	}
	if c.cache != nil && len(modules) > 0 {
		if buf, err := json.Marshal(modules); err == nil {
			_ = c.cache.Set(cacheKey, buf, interfaceCacheTTL)
		}
	}
	return modules, false, nil
}
