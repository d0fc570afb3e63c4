package rates

// fallbackRates is the embedded USD-based rate table served when the live
// currency API is unreachable. Values are intentionally conservative
// snapshots, not live market rates.
var fallbackRates = map[string]float64{
	"USD": 1,
	"EUR": 0.92,
	"GBP": 0.79,
	"CAD": 1.35,
	"AUD": 1.52,
	"NZD": 1.64,
	"JPY": 148,
	"KRW": 1330,
	"CHF": 0.88,
	"SEK": 10.45,
	"NOK": 10.60,
	"DKK": 6.86,
	"PLN": 3.95,
	"CZK": 22.8,
	"SGD": 1.34,
	"HKD": 7.82,
	"MXN": 17.1,
	"BRL": 4.95,
	"INR": 83.1,
	"ZAR": 18.6,
	"AED": 3.67,
	"VND": 24500,
	"CLP": 930,
}

// FallbackRates returns a copy of the embedded USD-based fallback table.
func FallbackRates() map[string]float64 {
	out := make(map[string]float64, len(fallbackRates))
	for code, rate := range fallbackRates {
		out[code] = rate
	}
	return out
}

// FallbackRate returns the embedded rate for one currency, with ok reporting
// whether the currency is covered by the table.
func FallbackRate(code string) (float64, bool) {
	rate, ok := fallbackRates[code]
	return rate, ok
}
