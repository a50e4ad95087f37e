package models

import "time"

// ExchangeRates holds the six directed rates among SGD/USD/INR.
// The core only ever consumes a snapshot; ownership stays with the provider.
type ExchangeRates struct {
	SGDToUSD  float64   `json:"sgd_to_usd"`
	SGDToINR  float64   `json:"sgd_to_inr"`
	USDToSGD  float64   `json:"usd_to_sgd"`
	USDToINR  float64   `json:"usd_to_inr"`
	INRToSGD  float64   `json:"inr_to_sgd"`
	INRToUSD  float64   `json:"inr_to_usd"`
	FetchedAt time.Time `json:"fetched_at"`
}

// DefaultExchangeRates returns the fixed fallback table used when the
// rate provider is unavailable. Values are long-run averages, not live
// quotes.
func DefaultExchangeRates() *ExchangeRates {
	return &ExchangeRates{
		SGDToUSD: 0.74,
		SGDToINR: 62.0,
		USDToSGD: 1.35,
		USDToINR: 83.5,
		INRToSGD: 0.0161,
		INRToUSD: 0.0120,
	}
}

// Rate returns the directed rate from one currency to another.
// Identity pairs return 1; unknown pairs return 0.
func (r *ExchangeRates) Rate(from, to string) float64 {
	if from == to {
		return 1
	}
	switch from + to {
	case CurrencySGD + CurrencyUSD:
		return r.SGDToUSD
	case CurrencySGD + CurrencyINR:
		return r.SGDToINR
	case CurrencyUSD + CurrencySGD:
		return r.USDToSGD
	case CurrencyUSD + CurrencyINR:
		return r.USDToINR
	case CurrencyINR + CurrencySGD:
		return r.INRToSGD
	case CurrencyINR + CurrencyUSD:
		return r.INRToUSD
	}
	return 0
}
