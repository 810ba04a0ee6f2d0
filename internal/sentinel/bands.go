package sentinel

// PriceBand is a per-symbol plausibility window used to sanity-check
// upstream prices before they're trusted for a reconciliation decision.
type PriceBand struct {
	Min float64
	Max float64
}

// plausibilityBands is the table from spec.md §4.5.2. Symbols not listed
// have no band check.
var plausibilityBands = map[string]PriceBand{
	"ETH/USDT":  {Min: 2500, Max: 5000},
	"BTC/USDT":  {Min: 40000, Max: 80000},
	"SOL/USDT":  {Min: 100, Max: 300},
	"BNB/USDT":  {Min: 200, Max: 800},
	"ADA/USDT":  {Min: 0.3, Max: 2.0},
	"XRP/USDT":  {Min: 0.3, Max: 3.0},
	"DOGE/USDT": {Min: 0.05, Max: 0.5},
	"DOT/USDT":  {Min: 3, Max: 20},
	"LINK/USDT": {Min: 5, Max: 50},
	"AVAX/USDT": {Min: 20, Max: 100},
	"LTC/USDT":  {Min: 50, Max: 200},
}

// ethAlertBand is the narrower ETH/USDT band that only triggers a logged
// warning, never a rejection (spec.md Open Question — rejection/escalation
// behavior is explicitly undecided, so this stays logging-only).
var ethAlertBand = PriceBand{Min: 3500, Max: 4000}

// PlausibilityBand returns the band for a symbol and whether one exists.
func PlausibilityBand(symbol string) (PriceBand, bool) {
	b, ok := plausibilityBands[symbol]
	return b, ok
}

// InBand reports whether price falls within the symbol's plausibility band.
// Symbols without a configured band always pass.
func InBand(symbol string, price float64) bool {
	b, ok := plausibilityBands[symbol]
	if !ok {
		return true
	}
	return price >= b.Min && price <= b.Max
}

// InETHAlertBand reports whether price falls in the tighter ETH/USDT alert
// window. Callers log a warning on a hit; this never causes a rejection.
func InETHAlertBand(symbol string, price float64) bool {
	if symbol != "ETH/USDT" {
		return false
	}
	return price >= ethAlertBand.Min && price <= ethAlertBand.Max
}

// GhostThreshold returns the free-balance/quantity ratio below which an
// open position is considered a ghost, per trading mode.
func GhostThreshold(mode TradingMode, testnet, mainnet float64) float64 {
	if mode == ModeMainnet {
		return mainnet
	}
	return testnet
}
