package constants

import "strings"

// ParsingStrategy selects how aggressively the parsing service interprets
// noisy OCR text.
type ParsingStrategy string

const (
	StrategyAggressive   ParsingStrategy = "AGGRESSIVE"
	StrategyConservative ParsingStrategy = "CONSERVATIVE"
	StrategyAdaptive     ParsingStrategy = "ADAPTIVE"
)

var allStrategies = []ParsingStrategy{StrategyAggressive, StrategyConservative, StrategyAdaptive}

// ParseStrategy canonicalizes a strategy label from a queue message.
// Unknown or empty input falls back to ADAPTIVE.
func ParseStrategy(input string) (ParsingStrategy, bool) {
	normalized := ParsingStrategy(strings.ToUpper(strings.TrimSpace(input)))
	for _, s := range allStrategies {
		if s == normalized {
			return s, true
		}
	}
	return StrategyAdaptive, false
}
