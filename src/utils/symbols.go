package utils

import "strings"

// NormalizeToUSDT ensures that a symbol ends with USDT.
// Examples:
//
//	BTCUSD  -> BTCUSDT
//	ETHUSD  -> ETHUSDT
//	BTCUSDT -> BTCUSDT
//	ethusd  -> ETHUSDT
//	BTC     -> BTC
func NormalizeToUSDT(symbol string) string {
	if symbol == "" {
		return symbol
	}

	s := strings.ToUpper(strings.TrimSpace(symbol))

	if strings.HasSuffix(s, "USDT") {
		return s
	}

	if strings.HasSuffix(s, "USD") {
		return strings.TrimSuffix(s, "USD") + "USDT"
	}

	return s
}

// SplitQuote splits "BTCUSDT" into "BTC" and "USDT". Symbols without a known
// quote return an empty quote.
func SplitQuote(symbol string) (base, quote string) {
	s := strings.ToUpper(symbol)
	for _, q := range []string{"USDT", "USDC", "BUSD", "BTC", "ETH"} {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return strings.TrimSuffix(s, q), q
		}
	}
	return s, ""
}
