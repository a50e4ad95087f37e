// Package models defines data structures for the folio agent
package models

import (
	"math"
	"strings"
	"time"
)

// Supported currency codes. All monetary values in a Holding are stored in
// the holding's entry currency plus three pre-converted valuations.
const (
	CurrencySGD = "SGD"
	CurrencyUSD = "USD"
	CurrencyINR = "INR"
)

// SupportedCurrencies lists the currency codes the agent accepts.
var SupportedCurrencies = []string{CurrencySGD, CurrencyUSD, CurrencyINR}

// IsSupportedCurrency reports whether code is one of the supported currencies.
func IsSupportedCurrency(code string) bool {
	code = strings.ToUpper(code)
	for _, c := range SupportedCurrencies {
		if c == code {
			return true
		}
	}
	return false
}

// Allocation buckets. Every holding belongs to exactly one.
const (
	CategoryEquity = "equity"
	CategoryCrypto = "crypto"
	CategoryDebt   = "debt"
	CategoryCash   = "cash"
)

// Categories lists the fixed allocation buckets.
var Categories = []string{CategoryEquity, CategoryCrypto, CategoryDebt, CategoryCash}

// IsValidCategory reports whether category is one of the fixed buckets.
func IsValidCategory(category string) bool {
	category = strings.ToLower(category)
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Holding represents a single tracked position.
// Invariant: CostBasis == round(Quantity × UnitPrice, 2), and the three
// valuations are mutually consistent under the exchange-rate table used at
// the last mutation.
type Holding struct {
	ID               string    `json:"id"`
	Symbol           string    `json:"symbol"`
	Name             string    `json:"name"`
	Category         string    `json:"category"`
	Location         string    `json:"location"` // custodian label, e.g. "DBS", "IBKR"
	Quantity         float64   `json:"quantity"`
	UnitPrice        float64   `json:"unit_price"` // cost basis per unit in entry currency
	CurrentUnitPrice float64   `json:"current_unit_price"`
	CostBasis        float64   `json:"cost_basis"`
	ValueSGD         float64   `json:"value_sgd"`
	ValueUSD         float64   `json:"value_usd"`
	ValueINR         float64   `json:"value_inr"`
	EntryCurrency    string    `json:"entry_currency"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Round2 rounds a monetary value to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// YearlyRecord captures one year of the user's financial history.
type YearlyRecord struct {
	ID        string    `json:"id"`
	Year      int       `json:"year"`
	Income    float64   `json:"income"`
	Expenses  float64   `json:"expenses"`
	Savings   float64   `json:"savings"`
	NetWorth  float64   `json:"net_worth"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FinancialProfile is caller-supplied background used only for prompting.
type FinancialProfile struct {
	MonthlyIncome  float64 `json:"monthly_income,omitempty"`
	MonthlySavings float64 `json:"monthly_savings,omitempty"`
	RiskTolerance  string  `json:"risk_tolerance,omitempty"`
	BaseCurrency   string  `json:"base_currency,omitempty"`
}
