// Package symbol canonicalizes instrument identifiers. The canonical
// form is the compact venue style ("BTCUSDT"); slash-separated input
// ("btc/usdt") is accepted and collapsed.
package symbol

import "strings"

type Symbol struct {
	Base  string
	Quote string
}

// Canonical is the compact uppercase venue form.
func (s Symbol) Canonical() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

var quoteCurrencies = []string{"USDT", "USDC", "BUSD", "TUSD", "BTC", "ETH", "BNB"}

// Parse splits an identifier into base and quote. Compact input is
// matched against the known quote currencies; unknown quotes leave
// Base/Quote empty but Normalize still round-trips the raw string.
func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{
			Base:  strings.TrimSpace(parts[0]),
			Quote: strings.TrimSpace(parts[1]),
		}
	}
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{Base: s[:len(s)-len(quote)], Quote: quote}
		}
	}
	return Symbol{}
}

// Normalize returns the canonical form, falling back to the trimmed
// uppercase input when the pair cannot be split.
func Normalize(s string) string {
	if sym := Parse(s); sym.Canonical() != "" {
		return sym.Canonical()
	}
	return strings.ToUpper(strings.TrimSpace(s))
}

func IsValid(s string) bool {
	sym := Parse(s)
	return sym.Base != "" && sym.Quote != ""
}
