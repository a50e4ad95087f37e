package agent

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/praveensg/folioagent/internal/models"
)

// Validator applies field-level and cross-field checks to a resolved payload
// before any mutation is attempted. Errors block execution; warnings lower
// confidence but do not.
type Validator struct {
	now func() time.Time
}

func NewValidator() *Validator {
	return &Validator{now: time.Now}
}

// Validate dispatches on the payload kind.
func (v *Validator) Validate(payload *models.ActionPayload, holdings []models.Holding) *models.ValidationResult {
	if payload == nil {
		return &models.ValidationResult{Errors: []string{"no action payload"}}
	}
	switch payload.Kind {
	case models.ActionAddHolding, models.ActionAddToExisting:
		if payload.Add == nil {
			return invalidPayload(payload.Kind)
		}
		return v.validateHolding(payload.Add.Symbol, payload.Add.Quantity, payload.Add.UnitPrice,
			payload.Add.Category, payload.Add.Currency, holdings, payload.Kind == models.ActionAddHolding)
	case models.ActionIncreaseHolding:
		if payload.Increase == nil {
			return invalidPayload(payload.Kind)
		}
		return v.validateHolding(payload.Increase.Symbol, payload.Increase.Quantity,
			payload.Increase.UnitPrice, "", payload.Increase.Currency, nil, false)
	case models.ActionEditHolding:
		if payload.Edit == nil {
			return invalidPayload(payload.Kind)
		}
		return v.validateEdit(payload.Edit)
	case models.ActionDeleteHolding:
		if payload.Delete == nil || payload.Delete.Symbol == "" {
			return invalidPayload(payload.Kind)
		}
		return scored(nil, nil, nil)
	case models.ActionReduceHolding:
		if payload.Reduce == nil {
			return invalidPayload(payload.Kind)
		}
		return v.validateReduce(payload.Reduce)
	case models.ActionAddYearlyData:
		if payload.YearlyData == nil {
			return invalidPayload(payload.Kind)
		}
		return v.validateYearly(payload.YearlyData)
	}
	return &models.ValidationResult{Errors: []string{fmt.Sprintf("unsupported action %q", payload.Kind)}}
}

func invalidPayload(kind models.ActionKind) *models.ValidationResult {
	return &models.ValidationResult{Errors: []string{fmt.Sprintf("missing payload for action %q", kind)}}
}

func (v *Validator) validateHolding(symbol string, quantity, unitPrice float64, category, currency string, holdings []models.Holding, warnDuplicate bool) *models.ValidationResult {
	var errs, warns, suggestions []string

	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		errs = append(errs, "symbol is required")
	} else if len(symbol) > 10 {
		errs = append(errs, fmt.Sprintf("symbol %q exceeds 10 characters", symbol))
	}

	if quantity != 0 {
		if quantity < 0 {
			errs = append(errs, "quantity must be greater than zero")
		} else if quantity > 1_000_000 {
			warns = append(warns, fmt.Sprintf("quantity %.0f is unusually large", quantity))
		}
	}
	if unitPrice != 0 {
		if unitPrice < 0 {
			errs = append(errs, "unit price must be greater than zero")
		} else if unitPrice > 100_000 {
			warns = append(warns, fmt.Sprintf("unit price %.2f is unusually large", unitPrice))
		}
	}
	if category != "" && !models.IsValidCategory(category) {
		errs = append(errs, fmt.Sprintf("category %q is not one of %s", category, strings.Join(models.Categories, ", ")))
	}
	if currency != "" && !models.IsSupportedCurrency(strings.ToUpper(currency)) {
		errs = append(errs, fmt.Sprintf("currency %q is not one of %s", currency, strings.Join(models.SupportedCurrencies, ", ")))
	}

	if warnDuplicate && symbol != "" {
		for i := range holdings {
			if strings.EqualFold(holdings[i].Symbol, symbol) {
				warns = append(warns, fmt.Sprintf("a %s holding already exists", holdings[i].Symbol))
				suggestions = append(suggestions, fmt.Sprintf("Add to the existing %s position instead of creating a duplicate", holdings[i].Symbol))
				break
			}
		}
	}
	return scored(errs, warns, suggestions)
}

func (v *Validator) validateEdit(p *models.EditHoldingPayload) *models.ValidationResult {
	var errs, warns []string
	if strings.TrimSpace(p.Symbol) == "" && p.HoldingID == "" {
		errs = append(errs, "edit requires a symbol or holding id")
	}
	if p.NewSymbol == "" && p.NewName == "" && p.NewLocation == "" && p.NewCategory == "" &&
		p.NewQuantity == nil && p.NewUnitPrice == nil {
		errs = append(errs, "edit specifies no changes")
	}
	if p.NewSymbol != "" && len(p.NewSymbol) > 10 {
		errs = append(errs, fmt.Sprintf("symbol %q exceeds 10 characters", p.NewSymbol))
	}
	if p.NewCategory != "" && !models.IsValidCategory(p.NewCategory) {
		errs = append(errs, fmt.Sprintf("category %q is not one of %s", p.NewCategory, strings.Join(models.Categories, ", ")))
	}
	if p.NewQuantity != nil && *p.NewQuantity <= 0 {
		errs = append(errs, "quantity must be greater than zero")
	}
	if p.NewUnitPrice != nil {
		if *p.NewUnitPrice <= 0 {
			errs = append(errs, "unit price must be greater than zero")
		} else if *p.NewUnitPrice > 100_000 {
			warns = append(warns, fmt.Sprintf("unit price %.2f is unusually large", *p.NewUnitPrice))
		}
	}
	return scored(errs, warns, nil)
}

func (v *Validator) validateReduce(p *models.ReduceHoldingPayload) *models.ValidationResult {
	var errs []string
	if strings.TrimSpace(p.Symbol) == "" && p.HoldingID == "" {
		errs = append(errs, "reduce requires a symbol or holding id")
	}
	if p.Quantity <= 0 && p.Fraction <= 0 {
		errs = append(errs, "reduce requires a quantity or a fraction")
	}
	if p.Fraction < 0 || p.Fraction > 1 {
		errs = append(errs, "fraction must be between 0 and 1")
	}
	return scored(errs, nil, nil)
}

func (v *Validator) validateYearly(p *models.YearlyDataPayload) *models.ValidationResult {
	var errs, warns []string

	maxYear := v.now().Year() + 10
	if p.Year < 1900 || p.Year > maxYear {
		errs = append(errs, fmt.Sprintf("year %d must be between 1900 and %d", p.Year, maxYear))
	}
	checkMoney := func(label string, val *float64) {
		if val == nil {
			return
		}
		if *val < 0 {
			errs = append(errs, fmt.Sprintf("%s must not be negative", label))
		} else if *val > 1e9 {
			warns = append(warns, fmt.Sprintf("%s %.0f is unusually large", label, *val))
		}
	}
	checkMoney("income", p.Income)
	checkMoney("expenses", p.Expenses)
	checkMoney("savings", p.Savings)
	checkMoney("net worth", p.NetWorth)

	if p.Income != nil && p.Expenses != nil && p.Savings != nil {
		expected := *p.Income - *p.Expenses
		if math.Abs(expected-*p.Savings) > 1000 {
			warns = append(warns, fmt.Sprintf("savings %.2f differs from income minus expenses (expected about %.2f)", *p.Savings, expected))
		}
	}
	if p.Currency != "" && !models.IsSupportedCurrency(strings.ToUpper(p.Currency)) {
		errs = append(errs, fmt.Sprintf("currency %q is not one of %s", p.Currency, strings.Join(models.SupportedCurrencies, ", ")))
	}
	return scored(errs, warns, nil)
}

// scored assembles the result with the confidence policy: any error zeroes
// confidence, more than two warnings drops it to 0.7, any warning to 0.85.
func scored(errs, warns, suggestions []string) *models.ValidationResult {
	result := &models.ValidationResult{
		Errors:      errs,
		Warnings:    warns,
		Suggestions: suggestions,
	}
	switch {
	case len(errs) > 0:
		result.Confidence = 0
	case len(warns) > 2:
		result.IsValid = true
		result.Confidence = 0.7
	case len(warns) > 0:
		result.IsValid = true
		result.Confidence = 0.85
	default:
		result.IsValid = true
		result.Confidence = 0.95
	}
	return result
}
