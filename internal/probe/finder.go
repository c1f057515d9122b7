package probe

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"github.com/keelerlabs/lenderctl/internal/chain"
	"github.com/keelerlabs/lenderctl/internal/roles"
)

// Prober is the probe surface the finder searches over.
type Prober interface {
	Probe(ctx context.Context, entry chain.EntryPoint, bindings roles.Bindings, amount uint64) (ProbeResult, error)
}

// FindMax locates the largest amount the entry point accepts in simulation.
// Phase one doubles from the start guess until a resource-limit rejection
// brackets the boundary; phase two binary-searches the bracket. The search
// assumes acceptance is monotone in the amount: everything at or below the
// returned value would also be accepted.
//
// A limit-rejected start guess brackets from above instead of failing, so
// the search still descends to whatever smaller amount is feasible. Returns
// zero when even the smallest probe is rejected, and zero without error when
// the first probe fails for a reason shrinking cannot fix.
func FindMax(ctx context.Context, p Prober, entry chain.EntryPoint, bindings roles.Bindings, startGuess, ceiling uint64, log zerolog.Logger) (uint64, error) {
	if startGuess == 0 {
		startGuess = 1
	}
	if ceiling == 0 {
		ceiling = math.MaxUint64
	}
	if startGuess > ceiling {
		startGuess = ceiling
	}

	var lo, hi uint64
	cur := startGuess
	probes := 0
	for {
		res, err := p.Probe(ctx, entry, bindings, cur)
		if err != nil {
			return 0, err
		}
		probes++
		switch res.Classification {
		case ClassAccepted:
			lo = cur
			if cur == ceiling {
				log.Debug().Uint64("max", cur).Int("probes", probes).Msg("amount search hit ceiling")
				return cur, nil
			}
			if cur > ceiling/2 {
				cur = ceiling
			} else {
				cur *= 2
			}
		case ClassResourceLimit:
			hi = cur
		default:
			// Fee shortfalls and structural rejections do not shrink away;
			// the feasible amount space is empty as far as probing can tell.
			log.Debug().
				Uint64("amount", cur).
				Str("class", res.Classification.String()).
				Str("error", res.ErrorMessage).
				Msg("amount search stopped on non-limit rejection")
			return 0, nil
		}
		if hi != 0 {
			break
		}
	}

	// Binary search the (lo, hi) bracket. Any rejection narrows from above;
	// only acceptance raises the floor.
	for lo+1 < hi {
		mid := lo + (hi-lo)/2
		res, err := p.Probe(ctx, entry, bindings, mid)
		if err != nil {
			return 0, err
		}
		probes++
		if res.Classification == ClassAccepted {
			lo = mid
		} else {
			hi = mid
		}
	}
	log.Debug().Uint64("max", lo).Int("probes", probes).Msg("amount search converged")
	return lo, nil
}
