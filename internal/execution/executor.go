package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/keelerlabs/lenderctl/internal/chain"
	clierr "github.com/keelerlabs/lenderctl/internal/errors"
	"github.com/keelerlabs/lenderctl/internal/execution/signer"
	"github.com/keelerlabs/lenderctl/internal/probe"
)

// Submitter sends a signed transaction for on-chain execution.
type Submitter interface {
	Submit(ctx context.Context, txBytes []byte, signatures []string) (*chain.ExecResult, error)
}

// Builder assembles a fresh transaction for one attempt amount. Object
// versions move under live traffic, so the executor never re-signs stale
// bytes.
type Builder func(amount uint64) (*chain.Transaction, error)

type ExecuteOptions struct {
	MaxAttempts  int
	RetryBackoff time.Duration
}

func DefaultExecuteOptions() ExecuteOptions {
	return ExecuteOptions{
		MaxAttempts:  8,
		RetryBackoff: 2 * time.Second,
	}
}

// Result is the final outcome of one executed intent.
type Result struct {
	Amount   uint64 `json:"amount,string"`
	TxDigest string `json:"tx_digest"`
	Attempts int    `json:"attempts"`
}

// Executor submits intents with an adaptive retry loop: limit rejections
// halve the amount and retry, fee shortfalls and structural rejections abort
// immediately with the chain's message preserved.
type Executor struct {
	submit     Submitter
	signer     signer.Signer
	classifier *probe.Classifier
	store      *Store
	log        zerolog.Logger
}

func NewExecutor(submit Submitter, txSigner signer.Signer, classifier *probe.Classifier, store *Store, log zerolog.Logger) *Executor {
	if classifier == nil {
		classifier = probe.NewClassifier(nil, nil)
	}
	return &Executor{submit: submit, signer: txSigner, classifier: classifier, store: store, log: log}
}

func (e *Executor) Execute(ctx context.Context, action *Action, build Builder, desired uint64, opts ExecuteOptions) (Result, error) {
	if e.signer == nil {
		return Result{}, clierr.New(clierr.CodeSigner, "missing signer")
	}
	if desired == 0 {
		return Result{}, clierr.New(clierr.CodeUsage, "execution amount must be positive")
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultExecuteOptions().MaxAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultExecuteOptions().RetryBackoff
	}

	action.Status = ActionStatusRunning
	action.Sender = e.signer.Address()
	action.RequestedAmount = desired
	e.save(action)

	amount := desired
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		res, err := e.submitOnce(ctx, build, amount)
		if err != nil {
			e.fail(action, amount, err.Error())
			return Result{}, err
		}
		if res.Accepted {
			action.Record(Attempt{Status: AttemptStatusConfirmed, Amount: amount, TxDigest: res.Digest})
			action.Status = ActionStatusCompleted
			action.ExecutedAmount = amount
			action.TxDigest = res.Digest
			e.save(action)
			e.log.Info().
				Uint64("amount", amount).
				Str("digest", res.Digest).
				Int("attempt", attempt).
				Msg("transaction confirmed")
			return Result{Amount: amount, TxDigest: res.Digest, Attempts: attempt}, nil
		}

		action.Record(Attempt{Status: AttemptStatusRejected, Amount: amount, Error: res.ErrorMessage})
		e.save(action)

		switch e.classifier.Classify(res.ErrorMessage) {
		case probe.ClassFeeShortfall:
			action.Status = ActionStatusFailed
			e.save(action)
			return Result{}, clierr.New(clierr.CodeFeeShortfall,
				fmt.Sprintf("gas cannot cover execution; top up the gas coin: %s", res.ErrorMessage))
		case probe.ClassResourceLimit:
			half := amount / 2
			if half == 0 {
				action.Status = ActionStatusFailed
				e.save(action)
				return Result{}, clierr.New(clierr.CodeResourceLimit,
					fmt.Sprintf("rejected down to the smallest unit: %s", res.ErrorMessage))
			}
			e.log.Warn().
				Uint64("rejected", amount).
				Uint64("retry", half).
				Int("attempt", attempt).
				Msg("limit rejection; halving amount")
			amount = half
			if err := sleepCtx(ctx, opts.RetryBackoff); err != nil {
				e.fail(action, amount, err.Error())
				return Result{}, clierr.Wrap(clierr.CodeInternal, "retry backoff", err)
			}
		default:
			action.Status = ActionStatusFailed
			e.save(action)
			return Result{}, clierr.New(clierr.CodeExecution,
				fmt.Sprintf("transaction rejected: %s", res.ErrorMessage))
		}
	}
	action.Status = ActionStatusFailed
	e.save(action)
	return Result{}, clierr.New(clierr.CodeResourceLimit,
		fmt.Sprintf("gave up after %d attempts; last amount tried %d", opts.MaxAttempts, amount))
}

func (e *Executor) submitOnce(ctx context.Context, build Builder, amount uint64) (*chain.ExecResult, error) {
	tx, err := build(amount)
	if err != nil {
		return nil, err
	}
	raw, err := tx.Encode()
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "encode transaction", err)
	}
	digest, err := tx.Digest()
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "digest transaction", err)
	}
	sig, err := e.signer.Sign(digest)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeSigner, "sign transaction", err)
	}
	res, err := e.submit.Submit(ctx, raw, []string{sig})
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "submit transaction", err)
	}
	return res, nil
}

func (e *Executor) save(action *Action) {
	if e.store == nil {
		return
	}
	if err := e.store.Save(*action); err != nil {
		e.log.Warn().Err(err).Str("action_id", action.ActionID).Msg("persist action")
	}
}

func (e *Executor) fail(action *Action, amount uint64, msg string) {
	action.Record(Attempt{Status: AttemptStatusRejected, Amount: amount, Error: msg})
	action.Status = ActionStatusFailed
	e.save(action)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
