package advisor

import (
	"context"
	"fmt"
	"strings"
)

// Generator produces the final user-facing reply
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const personaPreamble = `You are IRIS, an intelligent financial AI advisor. You give clear,
grounded guidance based on the user's actual portfolio and the market data provided below.
Never invent holdings, prices or transactions that are not in the provided data. Keep
replies concise and conversational. You are not a licensed financial advisor and should
remind users of that when giving investment opinions.`

// Synthesizer assembles the grounded generation prompt and produces the
// reply. Generation failure is the only fatal error of a turn; everything
// upstream has already degraded to text by the time Respond runs.
type Synthesizer struct {
	generator Generator
}

// NewSynthesizer creates a response synthesizer
func NewSynthesizer(generator Generator) *Synthesizer {
	return &Synthesizer{generator: generator}
}

// Respond generates the assistant reply from the turn's tool outputs and the
// conversation so far. Works with an entirely empty ToolOutputs: the prompt
// then degrades to persona plus conversation.
func (s *Synthesizer) Respond(ctx context.Context, outputs ToolOutputs, messages []Message) (string, error) {
	prompt := buildPrompt(outputs, messages)

	reply, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("response generation failed: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

func buildPrompt(outputs ToolOutputs, messages []Message) string {
	var b strings.Builder
	b.WriteString(personaPreamble)

	if outputs.ContextData != "" {
		b.WriteString("\n\n--- USER CONTEXT ---\n")
		b.WriteString(outputs.ContextData)
	}
	if outputs.TradeResult != "" {
		b.WriteString("\n\n--- TRADE RESULT ---\n")
		b.WriteString(outputs.TradeResult)
		b.WriteString("\nRelay this result to the user accurately; do not alter quantities or prices.")
	}
	if outputs.ConfirmationRequest != "" {
		b.WriteString("\n\n--- PENDING CONFIRMATION ---\n")
		b.WriteString(outputs.ConfirmationRequest)
		b.WriteString("\nAsk the user this confirmation question verbatim before anything else.")
	}

	b.WriteString("\n\n--- CONVERSATION ---\n")
	for _, msg := range messages {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(msg.Role), msg.Content)
	}
	b.WriteString("ASSISTANT:")
	return b.String()
}
