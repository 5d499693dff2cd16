package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/irisfin/advisor/internal/memorystore"
	"github.com/irisfin/advisor/internal/metrics"
)

const sessionKeyPrefix = "iris:session:"

// Orchestrator runs a conversation turn end to end: session load, intent
// classification, tool routing, response synthesis and session persistence.
// Turns for the same user are serialized under a per-user lock; different
// users proceed in parallel.
type Orchestrator struct {
	store      *memorystore.Store
	contexts   *ContextBuilder
	markets    *MarketLookup
	desk       *TradeDesk
	synth      *Synthesizer
	sessionTTL time.Duration

	userLocks sync.Map // userID -> *sync.Mutex
}

// NewOrchestrator wires the turn pipeline together
func NewOrchestrator(store *memorystore.Store, contexts *ContextBuilder, markets *MarketLookup, desk *TradeDesk, synth *Synthesizer, sessionTTL time.Duration) *Orchestrator {
	if sessionTTL == 0 {
		sessionTTL = 168 * time.Hour
	}
	return &Orchestrator{
		store:      store,
		contexts:   contexts,
		markets:    markets,
		desk:       desk,
		synth:      synth,
		sessionTTL: sessionTTL,
	}
}

// HandleTurn processes one user message and returns the assistant reply.
// The only fatal error is response generation; every upstream failure has
// already degraded to text in the tool outputs.
func (o *Orchestrator) HandleTurn(ctx context.Context, userID, prompt string) (string, error) {
	lock := o.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	started := time.Now()
	session := o.loadSession(ctx, userID)

	// Intent is recomputed from scratch every turn; only the pending-trade
	// flag carries over.
	intent, drop := ClassifyIntent(prompt, session.PendingTrade)
	session.AppendMessage(RoleUser, prompt)

	log.Info().
		Str("user_id", userID).
		Str("intent", string(intent)).
		Bool("drops_pending", drop).
		Msg("Turn classified")

	if drop && session.PendingTrade != nil {
		dropped := session.PendingTrade
		session.PendingTrade = nil
		metrics.RecordTradeCancellation()
		log.Info().
			Str("user_id", userID).
			Str("symbol", dropped.Symbol).
			Str("intent", string(intent)).
			Msg("Pending trade dropped")

		// Explicit cancellation short-circuits the turn: acknowledge
		// directly, no context fetch, no generation.
		if intent == IntentCancelTrade {
			reply := fmt.Sprintf("Understood - I've cancelled the proposed %s of %s shares of %s. Nothing was submitted.",
				dropped.Action, dropped.Quantity.String(), dropped.Symbol)
			session.AppendMessage(RoleAssistant, reply)
			o.saveSession(ctx, session)
			metrics.RecordTurn(string(intent), time.Since(started))
			return reply, nil
		}
	}

	outputs := o.runTools(ctx, intent, session, prompt)

	reply, err := o.synth.Respond(ctx, outputs, session.Messages)
	if err != nil {
		// Persist before surfacing the failure: a cleared or newly created
		// pending trade must survive even a failed turn.
		o.saveSession(ctx, session)
		return "", err
	}

	session.AppendMessage(RoleAssistant, reply)
	o.saveSession(ctx, session)
	metrics.RecordTurn(string(intent), time.Since(started))
	return reply, nil
}

// runTools executes the tool node for the classified intent and collects the
// per-turn outputs. It mutates only the pending-trade slot of the session.
func (o *Orchestrator) runTools(ctx context.Context, intent Intent, session *SessionState, prompt string) ToolOutputs {
	var outputs ToolOutputs

	switch intent {
	case IntentTrade:
		trade, text := o.desk.Propose(ctx, session.UserID, prompt)
		session.PendingTrade = trade
		if trade != nil {
			outputs.ConfirmationRequest = text
		} else {
			outputs.TradeResult = text
		}

	case IntentConfirmTrade:
		if session.PendingTrade == nil {
			// Stale confirmation: state is untouched, the user just gets told.
			log.Warn().Str("user_id", session.UserID).Msg("Confirmation with no pending trade")
			outputs.TradeResult = "There is no pending trade to confirm. Nothing was submitted."
			return outputs
		}
		trade := session.PendingTrade
		session.PendingTrade = nil // cleared whatever the submission outcome
		outputs.TradeResult = o.desk.Execute(ctx, session.UserID, trade)

	case IntentAdvice:
		outputs.ContextData = o.contexts.Build(ctx, session.UserID, session.Messages)
		symbol := o.markets.ResolveTicker(prompt)
		outputs.ContextData += "\n" + o.markets.MarketData(ctx, symbol)
		if knowledge := o.markets.Knowledge(ctx, prompt); knowledge != "" {
			outputs.ContextData += "\n" + knowledge
		}

	default: // IntentGeneralChat
		// Small talk still gets the knowledge base, just not a quote for
		// the default symbol.
		outputs.ContextData = o.contexts.Build(ctx, session.UserID, session.Messages)
		if knowledge := o.markets.Knowledge(ctx, prompt); knowledge != "" {
			outputs.ContextData += "\n" + knowledge
		}
	}

	return outputs
}

// loadSession returns the stored session for a user, or a fresh one when the
// store misses or is down. Session-load failures never fail the turn.
func (o *Orchestrator) loadSession(ctx context.Context, userID string) *SessionState {
	session := &SessionState{UserID: userID}

	raw, err := o.store.Get(ctx, sessionKeyPrefix+userID)
	if err != nil {
		if !errors.Is(err, memorystore.ErrNotFound) {
			log.Warn().Err(err).Str("user_id", userID).Msg("Session load failed, starting fresh")
		}
		return session
	}

	if err := json.Unmarshal([]byte(raw), session); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Corrupt session envelope, starting fresh")
		return &SessionState{UserID: userID}
	}
	session.UserID = userID
	return session
}

func (o *Orchestrator) saveSession(ctx context.Context, session *SessionState) {
	raw, err := json.Marshal(session)
	if err != nil {
		log.Error().Err(err).Str("user_id", session.UserID).Msg("Session marshal failed")
		return
	}
	if err := o.store.SetWithTTL(ctx, sessionKeyPrefix+session.UserID, string(raw), o.sessionTTL); err != nil {
		log.Warn().Err(err).Str("user_id", session.UserID).Msg("Session persist failed")
	}
}

func (o *Orchestrator) lockFor(userID string) *sync.Mutex {
	lock, _ := o.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
