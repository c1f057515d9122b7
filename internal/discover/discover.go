package discover

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/keelerlabs/lenderctl/internal/chain"
	clierr "github.com/keelerlabs/lenderctl/internal/errors"
	"github.com/keelerlabs/lenderctl/internal/roles"
)

// Lister is the slice of the resource catalog discovery needs.
type Lister interface {
	ListEntries(ctx context.Context, packageID string) []chain.EntryPoint
	IsPackage(ctx context.Context, objectID string) bool
}

// Candidate is one ranked entry point.
type Candidate struct {
	Entry chain.EntryPoint
	Score int
}

// qualifiedPhrases maps an action keyword to the fully qualified function
// name the protocol uses for it. Matching the phrase outranks matching the
// bare keyword.
var qualifiedPhrases = map[string]string{
	"withdraw": "withdraw_collateral",
	"deposit":  "deposit_collateral",
	"borrow":   "borrow",
	"repay":    "repay",
}

// canonicalSuffixes are name endings the protocol uses for its public entry
// wrappers.
var canonicalSuffixes = []string{"_entry", "_v2"}

// Scoring weights. Contract metadata does not label which function is "the"
// canonical action; name and required-resource heuristics reconstruct intent.
const (
	weightKeyword            = 3
	weightQualifiedPhrase    = 5
	weightCanonicalSuffix    = 2
	weightVersionStamp       = 1
	weightBorrowerPosition   = 2
	weightPositionCapability = 2
	weightMarket             = 1
	weightNumeric            = 1
	weightPriceRegistry      = 2
)

// Discover scans the candidate packages for functions matching the action
// keyword and ranks them. Ties keep discovery order (stable sort).
func Discover(ctx context.Context, lister Lister, action string, candidatePackages []string) ([]Candidate, error) {
	keyword, err := normalizeAction(action)
	if err != nil {
		return nil, err
	}
	if len(candidatePackages) == 0 {
		return nil, clierr.New(clierr.CodeUsage, "at least one candidate package is required")
	}
	out, err := scan(ctx, lister, keyword, candidatePackages)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, noEntryError(keyword, len(candidatePackages))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// DiscoverWithFallback scans the primary packages first and consults the
// fallback set only when the primary scan turns up no matching entry at all.
// A non-package candidate still fails fast in either stage.
func DiscoverWithFallback(ctx context.Context, lister Lister, action string, primary, fallback []string) ([]Candidate, error) {
	keyword, err := normalizeAction(action)
	if err != nil {
		return nil, err
	}
	if len(primary) == 0 && len(fallback) == 0 {
		return nil, clierr.New(clierr.CodeUsage, "at least one candidate package is required")
	}
	var out []Candidate
	if len(primary) > 0 {
		out, err = scan(ctx, lister, keyword, primary)
		if err != nil {
			return nil, err
		}
	}
	if len(out) == 0 && len(fallback) > 0 {
		out, err = scan(ctx, lister, keyword, fallback)
		if err != nil {
			return nil, err
		}
	}
	if len(out) == 0 {
		return nil, noEntryError(keyword, len(primary)+len(fallback))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func normalizeAction(action string) (string, error) {
	keyword := strings.ToLower(strings.TrimSpace(action))
	if keyword == "" {
		return "", clierr.New(clierr.CodeUsage, "discovery action is required")
	}
	return keyword, nil
}

func noEntryError(keyword string, packages int) error {
	return clierr.New(clierr.CodeDiscovery, fmt.Sprintf("no entry found for action %q in %d candidate package(s)", keyword, packages))
}

func scan(ctx context.Context, lister Lister, keyword string, packages []string) ([]Candidate, error) {
	var out []Candidate
	for _, pkg := range packages {
		if !lister.IsPackage(ctx, pkg) {
			return nil, clierr.New(clierr.CodeDiscovery, fmt.Sprintf("candidate id %s does not resolve to a deployed package", pkg))
		}
		for _, entry := range lister.ListEntries(ctx, pkg) {
			if !strings.Contains(strings.ToLower(entry.ShortName()), keyword) {
				continue
			}
			out = append(out, Candidate{Entry: entry, Score: score(entry, keyword)})
		}
	}
	return out, nil
}

func score(entry chain.EntryPoint, keyword string) int {
	name := strings.ToLower(entry.Function)
	total := 0
	if strings.Contains(name, keyword) {
		total += weightKeyword
	}
	if phrase, ok := qualifiedPhrases[keyword]; ok && strings.Contains(name, phrase) {
		total += weightQualifiedPhrase
	}
	for _, suffix := range canonicalSuffixes {
		if strings.HasSuffix(name, suffix) {
			total += weightCanonicalSuffix
			break
		}
	}
	required := roles.RequiredRoles(entry.Parameters)
	if required[roles.RoleVersionStamp] {
		total += weightVersionStamp
	}
	if required[roles.RoleBorrowerPosition] {
		total += weightBorrowerPosition
	}
	if required[roles.RolePositionCapability] {
		total += weightPositionCapability
	}
	if required[roles.RoleMarket] {
		total += weightMarket
	}
	if required[roles.RoleNumericAmount] {
		total += weightNumeric
	}
	if required[roles.RolePriceRegistry] {
		total += weightPriceRegistry
	}
	return total
}
