// Package currency provides pure conversion helpers over an exchange-rate
// snapshot. No I/O happens here; callers fetch the table.
package currency

import (
	"strings"

	"github.com/praveensg/folioagent/internal/models"
)

// Convert converts amount from one supported currency to another using the
// given rate table. Identity conversions and unknown pairs return the amount
// unchanged — a malformed pair must never zero out a user's money.
func Convert(amount float64, from, to string, rates *models.ExchangeRates) float64 {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	if from == to || rates == nil {
		return amount
	}
	r := rates.Rate(from, to)
	if r <= 0 {
		return amount
	}
	return amount * r
}

// Valuations derives the three pre-converted holding valuations from a
// single amount in the given currency, each rounded to 2 decimal places.
func Valuations(amount float64, in string, rates *models.ExchangeRates) (sgd, usd, inr float64) {
	sgd = models.Round2(Convert(amount, in, models.CurrencySGD, rates))
	usd = models.Round2(Convert(amount, in, models.CurrencyUSD, rates))
	inr = models.Round2(Convert(amount, in, models.CurrencyINR, rates))
	return sgd, usd, inr
}
