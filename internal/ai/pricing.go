package ai

import "strings"

// modelPrice is USD per one million tokens.
type modelPrice struct {
	Input  float64
	Output float64
}

var priceTable = map[string]modelPrice{
	"claude-sonnet-4-20250514":   {Input: 3.00, Output: 15.00},
	"claude-3-7-sonnet-20250219": {Input: 3.00, Output: 15.00},
	"claude-3-5-sonnet-20241022": {Input: 3.00, Output: 15.00},
	"claude-3-5-haiku-20241022":  {Input: 0.80, Output: 4.00},
	"claude-3-haiku-20240307":    {Input: 0.25, Output: 1.25},
	"gpt-4o":                     {Input: 2.50, Output: 10.00},
	"gpt-4o-mini":                {Input: 0.15, Output: 0.60},
	"gpt-4.1-mini":               {Input: 0.40, Output: 1.60},
	"gpt-3.5-turbo":              {Input: 0.50, Output: 1.50},
	"gemini-2.0-flash":           {Input: 0.10, Output: 0.40},
	"gemini-1.5-flash":           {Input: 0.075, Output: 0.30},
	"gemini-1.5-pro":             {Input: 1.25, Output: 5.00},
}

// EstimateCost returns the USD cost of a call. Unknown models cost 0.
// Dated variants ("gpt-4o-2024-08-06") fall back to the longest matching prefix.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	price, ok := lookupPrice(model)
	if !ok {
		return 0
	}
	in := float64(clampTokens(inputTokens))
	out := float64(clampTokens(outputTokens))
	return (in*price.Input + out*price.Output) / 1_000_000
}

func lookupPrice(model string) (modelPrice, bool) {
	if p, ok := priceTable[model]; ok {
		return p, true
	}
	best := ""
	for name := range priceTable {
		if strings.HasPrefix(model, name) && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return modelPrice{}, false
	}
	return priceTable[best], true
}
