package llm

import (
	"sync"
	"unicode/utf8"
)

// modelPricing holds per-model pricing in USD per 1M tokens.
type modelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// priceTable maps model identifiers to their pricing.
var priceTable = map[string]modelPricing{
	// Anthropic models
	"claude-sonnet-4-5-20250929": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-haiku-4-5-20251001":  {InputPerMillion: 0.80, OutputPerMillion: 4.00},

	// OpenAI models
	"gpt-4":       {InputPerMillion: 30.00, OutputPerMillion: 60.00},
	"gpt-4o":      {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4o-mini": {InputPerMillion: 0.15, OutputPerMillion: 0.60},

	// Google models
	"gemini-2.0-flash": {InputPerMillion: 0.10, OutputPerMillion: 0.40},
	"gemini-1.5-pro":   {InputPerMillion: 1.25, OutputPerMillion: 5.00},
}

// EstimateCost returns the estimated cost in USD for the given model and token counts.
// Returns 0 if the model is not found in the price table.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	pricing, ok := priceTable[model]
	if !ok {
		return 0
	}

	inputCost := float64(inputTokens) / 1_000_000.0 * pricing.InputPerMillion
	outputCost := float64(outputTokens) / 1_000_000.0 * pricing.OutputPerMillion
	return inputCost + outputCost
}

// EstimateTokens provides a rough token count for text. ASCII is counted at
// one token per 4 bytes; every other rune (kana, kanji) as one token.
func EstimateTokens(text string) int {
	ascii, other := 0, 0
	for _, r := range text {
		if r < utf8.RuneSelf {
			ascii++
		} else {
			other++
		}
	}
	n := ascii/4 + other
	if n == 0 && len(text) > 0 {
		return 1
	}
	return n
}

// Usage accumulates token counts across calls. Safe for concurrent use.
type Usage struct {
	mu           sync.Mutex
	calls        int
	inputTokens  int
	outputTokens int
	cost         float64
}

// Add records one response.
func (u *Usage) Add(resp *CompletionResponse) {
	if resp == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	u.inputTokens += resp.InputTokens
	u.outputTokens += resp.OutputTokens
	u.cost += EstimateCost(resp.Model, resp.InputTokens, resp.OutputTokens)
}

// Totals returns the call count, token counts and estimated cost so far.
func (u *Usage) Totals() (calls, input, output int, cost float64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls, u.inputTokens, u.outputTokens, u.cost
}
