package execution

import (
	"context"

	"github.com/rs/zerolog"

	clierr "github.com/keelerlabs/lenderctl/internal/errors"
)

// maxDrainCycles bounds the find/execute loop. Each cycle should remove most
// of the remaining balance, so hitting the bound means the position is not
// actually shrinking.
const maxDrainCycles = 32

// Drain repeatedly finds the current maximum and executes it until the
// residual drops to or below the dust threshold. Limits recompute after
// every execution, so each cycle re-measures instead of trusting the
// previous answer.
func Drain(ctx context.Context, find func(context.Context) (uint64, error), run func(context.Context, uint64) (Result, error), dust uint64, log zerolog.Logger) ([]Result, error) {
	if dust == 0 {
		dust = 1
	}
	var results []Result
	for cycle := 1; cycle <= maxDrainCycles; cycle++ {
		max, err := find(ctx)
		if err != nil {
			return results, err
		}
		if max <= dust {
			log.Info().
				Uint64("residual", max).
				Uint64("dust", dust).
				Int("cycles", cycle-1).
				Msg("drain complete")
			return results, nil
		}
		res, err := run(ctx, max)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		log.Info().
			Uint64("amount", res.Amount).
			Str("digest", res.TxDigest).
			Int("cycle", cycle).
			Msg("drain cycle executed")
	}
	return results, clierr.New(clierr.CodeExecution, "drain did not converge; residual balance is not shrinking")
}
