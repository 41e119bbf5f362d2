package voice

import (
	"strings"
	"unicode"
)

const (
	DefaultStepBudget = 3
	ReducedStepBudget = 2

	shortUtteranceWords = 8
)

// Word prefixes, matched against lowercased tokens.
var (
	simpleVerbPrefixes = []string{
		"agreg", "añad", "anad", "sum", "crea", "registr", "busc", "muestr", "mostr", "list", "consult", "cuánt", "cuant",
		"add", "create", "find", "search", "show",
	}
	complexKeywordPrefixes = []string{
		"venta", "vend", "sale", "sell", "sold",
		"compra", "purchase",
		"proveedor", "supplier",
		"cliente", "customer",
		"métrica", "metrica", "metric",
		"alerta", "alert",
		"ajust", "adjust",
		"venc", "expir",
		"lote",
	}
	complexPhrases = []string{"stock lot"}
	conjunctions   = map[string]bool{
		"y": true, "luego": true, "después": true, "despues": true, "también": true, "tambien": true,
		"and": true, "then": true, "also": true,
	}
)

// StepBudget picks how many model steps a turn may use. Short single-intent
// create or search requests get the reduced budget; everything else the default.
func StepBudget(utterance string) int {
	text := strings.ToLower(strings.TrimSpace(utterance))
	words := tokenize(text)
	if len(words) == 0 || len(words) > shortUtteranceWords {
		return DefaultStepBudget
	}
	for _, p := range complexPhrases {
		if strings.Contains(text, p) {
			return DefaultStepBudget
		}
	}

	simple := false
	for _, w := range words {
		if conjunctions[w] || hasAnyPrefix(w, complexKeywordPrefixes) {
			return DefaultStepBudget
		}
		if hasAnyPrefix(w, simpleVerbPrefixes) {
			simple = true
		}
	}
	if !simple {
		return DefaultStepBudget
	}
	return ReducedStepBudget
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func hasAnyPrefix(w string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(w, p) {
			return true
		}
	}
	return false
}
