// Package tasks is the credit-metered task executor, the single entry
// point for every paid capability invocation. A task runs validate ->
// invoke (with bounded retries) -> settle, and provider success is the
// only trigger for the ledger decrement and the history append, which
// share one database transaction.
package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"creativemind-api/internal/chats"
	"creativemind-api/internal/ledger"
	"creativemind-api/internal/metrics"
	"creativemind-api/internal/providers"
	"creativemind-api/internal/shared"

	"go.uber.org/zap"
)

type Executor struct {
	WDB      *sql.DB
	Ledger   *ledger.Store
	Chats    *chats.Store
	Adapters map[providers.Capability]providers.Adapter
	Policy   providers.Policy
	Log      *zap.SugaredLogger
}

func NewExecutor(wdb *sql.DB, lg *ledger.Store, ch *chats.Store, adapters []providers.Adapter, log *zap.SugaredLogger) *Executor {
	m := make(map[providers.Capability]providers.Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Capability()] = a
	}
	return &Executor{
		WDB:      wdb,
		Ledger:   lg,
		Chats:    ch,
		Adapters: m,
		Policy:   providers.DefaultPolicy(),
		Log:      log,
	}
}

// Input is the union of capability inputs for one task.
type Input struct {
	Prompt    string
	Text      string
	Image     []byte
	ImageMIME string
	Messages  []shared.ChatMessage
	ChatID    string
}

// Output carries the provider result plus the balance after settlement.
// Every successful response communicates the new balance so callers never
// need a follow-up query.
type Output struct {
	Result     *providers.RawResult
	Session    *chats.Session
	NewBalance int64
}

// Run executes one task for one account. On any failure the balance is
// untouched; on success it is decremented by exactly one, exactly once,
// in the same transaction as the history append.
func (e *Executor) Run(ctx context.Context, user *shared.UserMetadata, capability providers.Capability, input Input) (*Output, error) {
	start := time.Now()
	out, err := e.run(ctx, user, capability, input)
	status := "success"
	if err != nil {
		status = "error"
		metrics.ErrorCount.WithLabelValues(string(capability), string(shared.Classify(err).Kind)).Inc()
	} else {
		metrics.CreditUsage.WithLabelValues(string(capability)).Add(float64(shared.TaskCost))
	}
	metrics.TaskCount.WithLabelValues(string(capability), status).Inc()
	metrics.TaskDuration.WithLabelValues(string(capability)).Observe(time.Since(start).Seconds())
	return out, err
}

func (e *Executor) run(ctx context.Context, user *shared.UserMetadata, capability providers.Capability, input Input) (*Output, error) {
	if user == nil {
		return nil, shared.ErrInvalidToken
	}
	log := e.Log.With("user_id", user.UserID, "capability", string(capability))

	balance, err := e.Ledger.GetBalance(ctx, user.UserID)
	if err != nil {
		return nil, err
	}
	if balance <= 0 {
		log.Infow("Task rejected, no credit balance", "balance", balance)
		return nil, shared.ErrInsufficientCredits
	}

	if verr := validate(capability, &input); verr != nil {
		return nil, verr
	}

	adapter, ok := e.Adapters[capability]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for %s: %w", capability, shared.ErrInternalServerError)
	}

	req := &providers.Request{
		Prompt:    input.Prompt,
		Text:      input.Text,
		Image:     input.Image,
		ImageMIME: input.ImageMIME,
		Messages:  input.Messages,
	}
	result, err := providers.Retry(ctx, e.Policy, func(ctx context.Context) (*providers.RawResult, error) {
		return adapter.Invoke(ctx, req)
	}, func(attempt int) {
		log.Warnw("Retrying provider call", "attempt", attempt)
		metrics.ProviderRetries.WithLabelValues(string(capability)).Inc()
	})
	if err != nil {
		log.Warnw("Provider call failed", "error", err)
		return nil, err
	}

	return e.settle(ctx, log, user.UserID, capability, input, result)
}

// settle commits the (decrement, append) pair as one transaction. A failed
// append rolls back the decrement, so the ledger and the history can never
// disagree.
func (e *Executor) settle(ctx context.Context, log *zap.SugaredLogger, userID uint64, capability providers.Capability, input Input, result *providers.RawResult) (*Output, error) {
	out := &Output{Result: result}

	err := ledger.ExecuteTransaction(ctx, e.WDB, []func(*sql.Tx) error{
		func(tx *sql.Tx) error {
			newBalance, err := e.Ledger.AtomicDecrementTx(ctx, tx, userID, shared.TaskCost)
			if err != nil {
				return err
			}
			out.NewBalance = newBalance
			return nil
		},
		func(tx *sql.Tx) error {
			switch capability {
			case providers.CapabilityChatCompletion:
				all := append(append([]shared.ChatMessage{}, input.Messages...), *result.AssistantMessage)
				session, err := e.Chats.AppendTx(ctx, tx, userID, input.ChatID, all)
				if err != nil {
					return err
				}
				out.Session = session
				return nil
			case providers.CapabilityImageGeneration:
				return e.Ledger.AppendUsageTx(ctx, tx, userID, ledger.UsageImage, input.Prompt)
			case providers.CapabilityTextToSpeech:
				return e.Ledger.AppendUsageTx(ctx, tx, userID, ledger.UsageVoice, input.Text)
			case providers.CapabilityBackgroundRemoval:
				return e.Ledger.AppendUsageTx(ctx, tx, userID, ledger.UsageBGRemoval, "")
			}
			return fmt.Errorf("unhandled capability %s: %w", capability, shared.ErrInternalServerError)
		},
	})
	if err != nil {
		log.Errorw("Failed to settle task", "error", err)
		return nil, err
	}

	log.Infow("Task settled", "new_balance", out.NewBalance)
	return out, nil
}
