package probe

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/keelerlabs/lenderctl/internal/chain"
	clierr "github.com/keelerlabs/lenderctl/internal/errors"
	"github.com/keelerlabs/lenderctl/internal/roles"
)

// Simulator runs a transaction against validation rules without submitting
// it. Simulation never mutates chain state, so probes are free to retry with
// different amounts.
type Simulator interface {
	Simulate(ctx context.Context, tx *chain.Transaction) (*chain.ExecResult, error)
}

// ProbeResult is the outcome of one trial simulation.
type ProbeResult struct {
	Amount         uint64
	Accepted       bool
	Classification Classification
	ErrorMessage   string
}

// Engine builds and simulates trial transactions for a fixed entry point and
// binding set, varying only the amount.
type Engine struct {
	sim        Simulator
	classifier *Classifier
	cfg        BuildConfig
	log        zerolog.Logger
}

func NewEngine(sim Simulator, classifier *Classifier, cfg BuildConfig, log zerolog.Logger) *Engine {
	if classifier == nil {
		classifier = NewClassifier(nil, nil)
	}
	return &Engine{sim: sim, classifier: classifier, cfg: cfg, log: log}
}

// Probe assembles a fresh transaction for the trial amount and simulates it.
// A returned error means the probe itself could not run (bad bindings,
// transport failure); a rejected simulation is a normal ProbeResult.
func (e *Engine) Probe(ctx context.Context, entry chain.EntryPoint, bindings roles.Bindings, amount uint64) (ProbeResult, error) {
	tx, err := BuildTransaction(e.cfg, entry, bindings, amount)
	if err != nil {
		return ProbeResult{}, err
	}
	res, err := e.sim.Simulate(ctx, tx)
	if err != nil {
		return ProbeResult{}, clierr.Wrap(clierr.CodeUnavailable, "simulate trial transaction", err)
	}
	out := ProbeResult{Amount: amount, Accepted: res.Accepted}
	if res.Accepted {
		out.Classification = ClassAccepted
	} else {
		out.ErrorMessage = res.ErrorMessage
		out.Classification = e.classifier.Classify(res.ErrorMessage)
	}
	e.log.Debug().
		Uint64("amount", amount).
		Str("entry", entry.ShortName()).
		Str("class", out.Classification.String()).
		Msg("probe")
	return out, nil
}
