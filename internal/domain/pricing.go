package domain

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/currency"
)

// ErrInvalidCurrency is returned when a currency code is not a recognised ISO 4217 code.
var ErrInvalidCurrency = errors.New("domain: invalid currency code")

const basisPointsDenominator = 10_000

// PricingPolicy holds the flat-rate placeholders used to price an order.
type PricingPolicy struct {
	TaxRateBasisPoints int64
	FlatShipping       int64
}

// PricingBreakdown captures the monetary results of pricing a set of lines, in minor units.
type PricingBreakdown struct {
	Currency string
	Subtotal int64
	Tax      int64
	Shipping int64
	Total    int64
}

// Price computes subtotal, tax, shipping and total. Each derived figure is rounded once.
func (p PricingPolicy) Price(currencyCode string, lineTotals []int64) PricingBreakdown {
	var subtotal int64
	for _, amount := range lineTotals {
		subtotal += amount
	}
	tax := ApplyRate(subtotal, p.TaxRateBasisPoints)
	shipping := p.FlatShipping
	if shipping < 0 {
		shipping = 0
	}
	return PricingBreakdown{
		Currency: currencyCode,
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal + tax + shipping,
	}
}

// ApplyRate multiplies amount by a rate expressed in basis points, rounding half away from zero.
func ApplyRate(amount int64, basisPoints int64) int64 {
	if amount == 0 || basisPoints == 0 {
		return 0
	}
	product := amount * basisPoints
	quotient := product / basisPointsDenominator
	remainder := product % basisPointsDenominator
	if remainder < 0 {
		remainder = -remainder
	}
	if remainder*2 >= basisPointsDenominator {
		if product < 0 {
			quotient--
		} else {
			quotient++
		}
	}
	return quotient
}

// NormalizeCurrency upper-cases and validates an ISO 4217 code.
func NormalizeCurrency(code string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		return "", ErrInvalidCurrency
	}
	unit, err := currency.ParseISO(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidCurrency, trimmed)
	}
	return unit.String(), nil
}

// FormatAmount renders minor units as a decimal string followed by the currency code.
func FormatAmount(amount int64, currencyCode string) string {
	scale := 2
	if unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(currencyCode))); err == nil {
		scale, _ = currency.Standard.Rounding(unit)
	}
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	if scale == 0 {
		return fmt.Sprintf("%s%d %s", sign, amount, currencyCode)
	}
	divisor := int64(1)
	for i := 0; i < scale; i++ {
		divisor *= 10
	}
	return fmt.Sprintf("%s%d.%0*d %s", sign, amount/divisor, scale, amount%divisor, currencyCode)
}
