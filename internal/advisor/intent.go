package advisor

import "strings"

// Keyword sets for intent classification. Matching is case-insensitive;
// affirmation and negation tokens are matched on word boundaries so "no"
// does not fire inside "know".
var (
	affirmWords  = map[string]bool{"yes": true, "confirm": true, "ok": true, "okay": true, "yep": true, "sure": true}
	affirmPhrase = []string{"do it", "go ahead"}

	negateWords  = map[string]bool{"no": true, "cancel": true, "stop": true, "nope": true}
	negatePhrase = []string{"never mind", "nevermind"}

	tradeKeywords     = []string{"buy", "sell", "invest", "execute"}
	analysisKeywords  = []string{"price", "analyze", "market", "outlook"}
	portfolioKeywords = []string{"risk", "goal", "portfolio", "holdings"}
)

// ClassifyIntent maps the latest user message and the current pending-trade
// state to a routing decision. It is pure and deterministic: the second
// return value reports that the pending trade must be dropped (explicit
// cancellation, or topic drift away from an open proposal); the caller
// applies the drop, the classifier never mutates state itself.
func ClassifyIntent(message string, pending *PendingTrade) (Intent, bool) {
	lower := strings.ToLower(message)

	// A pending proposal takes priority: the message is read as an answer
	// to the confirmation question.
	if pending != nil {
		if containsWord(lower, affirmWords) || containsPhrase(lower, affirmPhrase) {
			return IntentConfirmTrade, false
		}
		if containsWord(lower, negateWords) || containsPhrase(lower, negatePhrase) {
			return IntentCancelTrade, true
		}
		// Topic drift cancels the proposal. Intentional policy: an
		// unconfirmed order never survives a change of subject.
		return IntentGeneralChat, true
	}

	if containsAny(lower, tradeKeywords) {
		return IntentTrade, false
	}
	if containsAny(lower, analysisKeywords) || containsAny(lower, portfolioKeywords) {
		return IntentAdvice, false
	}
	return IntentGeneralChat, false
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func containsWord(lower string, words map[string]bool) bool {
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	}) {
		if words[w] {
			return true
		}
	}
	return false
}

func containsPhrase(lower string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
