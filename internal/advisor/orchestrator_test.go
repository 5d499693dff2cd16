package advisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irisfin/advisor/internal/broker"
	"github.com/irisfin/advisor/internal/knowledge"
	"github.com/irisfin/advisor/internal/ledger"
	"github.com/irisfin/advisor/internal/memorystore"
)

type turnFixture struct {
	orch      *Orchestrator
	broker    *broker.MockService
	generator *stubGenerator
	extractor *stubExtractor
	searcher  *stubSearcher
}

func newTurnFixture(t *testing.T) *turnFixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store := memorystore.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ledgerMock := &ledger.MockService{
		Portfolio:    "Total Value: $10000.00. Holdings: NVDA (10 shares @ $450.00)",
		Transactions: "No recent transactions.",
	}
	brokerMock := broker.NewMockService()
	brokerMock.SetQuote("NVDA", 450.00, 450.00)

	generator := &stubGenerator{reply: "Here you go."}
	extractor := &stubExtractor{response: `{"symbol": "NVDA", "action": "BUY", "quantity": 15}`}
	searcher := &stubSearcher{}

	markets := NewMarketLookup(brokerMock, &stubEmbedder{vec: []float32{0.1}}, searcher, "SPY", 2)
	contexts := NewContextBuilder(store, ledgerMock, 300*time.Second, 1000, 10)
	desk := NewTradeDesk(extractor, brokerMock, markets, "SPY")
	synth := NewSynthesizer(generator)

	return &turnFixture{
		orch:      NewOrchestrator(store, contexts, markets, desk, synth, 168*time.Hour),
		broker:    brokerMock,
		generator: generator,
		extractor: extractor,
		searcher:  searcher,
	}
}

func TestHandleTurnProposeConfirmExecute(t *testing.T) {
	f := newTurnFixture(t)
	ctx := context.Background()

	// Turn 1: the proposal is created but nothing is submitted yet.
	_, err := f.orch.HandleTurn(ctx, "user-1", "Buy 15 shares of NVDA")
	require.NoError(t, err)
	assert.Contains(t, f.generator.lastPrompt, "--- PENDING CONFIRMATION ---")
	assert.Contains(t, f.generator.lastPrompt, "BUY 15 shares of NVDA")
	assert.Empty(t, f.broker.Orders, "no order before explicit confirmation")

	// Turn 2: confirmation submits the order and clears the proposal.
	_, err = f.orch.HandleTurn(ctx, "user-1", "yes")
	require.NoError(t, err)
	require.Len(t, f.broker.Orders, 1)
	assert.Equal(t, "NVDA", f.broker.Orders[0].Symbol)
	assert.Equal(t, broker.SideBuy, f.broker.Orders[0].Side)
	assert.Equal(t, "15", f.broker.Orders[0].Qty.String())
	assert.Contains(t, f.generator.lastPrompt, "Order placed: BUY 15 shares of NVDA.")

	// Turn 3: a second "yes" has no proposal to answer and submits nothing.
	_, err = f.orch.HandleTurn(ctx, "user-1", "yes")
	require.NoError(t, err)
	assert.Len(t, f.broker.Orders, 1, "the confirmation is not replayable")
}

func TestRunToolsConfirmWithNoPendingIsNoOp(t *testing.T) {
	f := newTurnFixture(t)

	session := &SessionState{UserID: "user-1"}
	outputs := f.orch.runTools(context.Background(), IntentConfirmTrade, session, "yes")

	assert.Equal(t, "There is no pending trade to confirm. Nothing was submitted.", outputs.TradeResult)
	assert.Empty(t, f.broker.Orders)
	assert.Nil(t, session.PendingTrade)
}

func TestHandleTurnCancelShortCircuits(t *testing.T) {
	f := newTurnFixture(t)
	ctx := context.Background()

	_, err := f.orch.HandleTurn(ctx, "user-1", "Buy 15 shares of NVDA")
	require.NoError(t, err)
	promptAfterProposal := f.generator.lastPrompt

	reply, err := f.orch.HandleTurn(ctx, "user-1", "no, cancel that")
	require.NoError(t, err)

	assert.Contains(t, reply, "cancelled")
	assert.Contains(t, reply, "NVDA")
	assert.Empty(t, f.broker.Orders)
	assert.Equal(t, promptAfterProposal, f.generator.lastPrompt, "cancellation replies directly without generation")

	// The cancelled proposal stays gone.
	_, err = f.orch.HandleTurn(ctx, "user-1", "yes")
	require.NoError(t, err)
	assert.Empty(t, f.broker.Orders)
}

func TestHandleTurnTopicDriftDropsProposal(t *testing.T) {
	f := newTurnFixture(t)
	ctx := context.Background()

	_, err := f.orch.HandleTurn(ctx, "user-1", "Buy 15 shares of NVDA")
	require.NoError(t, err)

	// An unconfirmed order never survives a change of subject.
	_, err = f.orch.HandleTurn(ctx, "user-1", "what's the weather like today?")
	require.NoError(t, err)

	_, err = f.orch.HandleTurn(ctx, "user-1", "yes")
	require.NoError(t, err)
	assert.Empty(t, f.broker.Orders)
}

func TestHandleTurnAdviceGroundsThePrompt(t *testing.T) {
	f := newTurnFixture(t)
	f.searcher.passages = []knowledge.Passage{
		{Title: "Semiconductors", Text: "Chip demand is cyclical."},
	}

	_, err := f.orch.HandleTurn(context.Background(), "user-1", "What is the price of NVDA?")
	require.NoError(t, err)

	assert.Contains(t, f.generator.lastPrompt, "--- USER CONTEXT ---")
	assert.Contains(t, f.generator.lastPrompt, "Total Value: $10000.00")
	assert.Contains(t, f.generator.lastPrompt, "Current Price of NVDA: $450.00")
	assert.Contains(t, f.generator.lastPrompt, "Relevant Financial Context:")
	assert.Contains(t, f.generator.lastPrompt, "[Semiconductors]: Chip demand is cyclical.")
}

func TestHandleTurnAdviceSurvivesKnowledgeOutage(t *testing.T) {
	f := newTurnFixture(t)
	f.searcher.err = errors.New("vector store down")

	reply, err := f.orch.HandleTurn(context.Background(), "user-1", "What's the outlook for NVDA?")

	require.NoError(t, err)
	assert.Equal(t, "Here you go.", reply)
	assert.Contains(t, f.generator.lastPrompt, "Current Price of NVDA")
	assert.NotContains(t, f.generator.lastPrompt, "Relevant Financial Context")
}

func TestHandleTurnGeneralChatSkipsMarketLookup(t *testing.T) {
	f := newTurnFixture(t)
	f.searcher.passages = []knowledge.Passage{
		{Title: "Basics", Text: "Time in the market beats timing the market."},
	}

	_, err := f.orch.HandleTurn(context.Background(), "user-1", "hello there")

	require.NoError(t, err)
	assert.Contains(t, f.generator.lastPrompt, "--- USER CONTEXT ---")
	assert.Contains(t, f.generator.lastPrompt, "[Basics]: Time in the market beats timing the market.")
	assert.NotContains(t, f.generator.lastPrompt, "Current Price")
	assert.Equal(t, 0, f.broker.QuoteCalls)
}

func TestHandleTurnGenerationFailureStillPersistsState(t *testing.T) {
	f := newTurnFixture(t)
	ctx := context.Background()

	_, err := f.orch.HandleTurn(ctx, "user-1", "Buy 15 shares of NVDA")
	require.NoError(t, err)

	// Generation dies on the confirmation turn. The order was already
	// submitted and the cleared proposal must survive the failed turn.
	f.generator.err = errors.New("model unreachable")
	_, err = f.orch.HandleTurn(ctx, "user-1", "yes")
	require.Error(t, err)
	require.Len(t, f.broker.Orders, 1)

	f.generator.err = nil
	_, err = f.orch.HandleTurn(ctx, "user-1", "yes")
	require.NoError(t, err)
	assert.Len(t, f.broker.Orders, 1, "the confirmation is not replayable")
}

func TestHandleTurnMalformedExtractionLeavesNoProposal(t *testing.T) {
	f := newTurnFixture(t)
	f.extractor.response = "sorry, I can't"
	ctx := context.Background()

	_, err := f.orch.HandleTurn(ctx, "user-1", "buy some of the good stuff")
	require.NoError(t, err)
	assert.Contains(t, f.generator.lastPrompt, "failed to understand the trade details")

	_, err = f.orch.HandleTurn(ctx, "user-1", "yes")
	require.NoError(t, err)
	assert.Empty(t, f.broker.Orders)
}

func TestHandleTurnConversationHistoryPersists(t *testing.T) {
	f := newTurnFixture(t)
	ctx := context.Background()

	_, err := f.orch.HandleTurn(ctx, "user-1", "hello, I'm thinking about tech stocks")
	require.NoError(t, err)

	_, err = f.orch.HandleTurn(ctx, "user-1", "anything else?")
	require.NoError(t, err)

	assert.Contains(t, f.generator.lastPrompt, "USER: hello, I'm thinking about tech stocks")
	assert.Contains(t, f.generator.lastPrompt, "ASSISTANT: Here you go.")
	assert.Contains(t, f.generator.lastPrompt, "USER: anything else?")
}

func TestHandleTurnSameUserTurnsAreSerialized(t *testing.T) {
	f := newTurnFixture(t)
	ctx := context.Background()

	_, err := f.orch.HandleTurn(ctx, "user-1", "Buy 15 shares of NVDA")
	require.NoError(t, err)

	// Racing confirmations for the same user: the per-user lock serializes
	// the turns, so the second one finds the proposal already cleared and
	// exactly one order reaches the gateway.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orch.HandleTurn(ctx, "user-1", "yes")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, f.broker.Orders, 1, "a confirmation must execute at most once")
}

func TestHandleTurnUsersDoNotShareSessions(t *testing.T) {
	f := newTurnFixture(t)
	ctx := context.Background()

	_, err := f.orch.HandleTurn(ctx, "user-1", "Buy 15 shares of NVDA")
	require.NoError(t, err)

	// A different user's "yes" confirms nothing.
	_, err = f.orch.HandleTurn(ctx, "user-2", "yes")
	require.NoError(t, err)
	assert.Empty(t, f.broker.Orders)
}
