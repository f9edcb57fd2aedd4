package parser

import (
	"regexp"
	"strings"

	"github.com/aluiziolira/go-price-tracker/models"
	"github.com/shopspring/decimal"
)

var (
	nonPriceChars = regexp.MustCompile(`[^\d.]`)
	leadingNumber = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)`)
)

// ParsePrice returns the first candidate that yields a number, scanning in
// priority order. Everything but digits and dots is stripped first, so
// "AED 1,234.50" parses as 1234.50. ok is false when no candidate parses;
// a parsed zero is a real price. The category is accepted for symmetry with
// the pricing step and does not affect parsing.
func ParsePrice(category models.Category, candidates ...string) (decimal.Decimal, bool) {
	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		if price, ok := parseNumber(candidate); ok {
			return price, true
		}
	}
	return decimal.Zero, false
}

// parseNumber reads the leading numeric prefix of the cleaned text, so
// "12.50.99" reads as 12.50.
func parseNumber(text string) (decimal.Decimal, bool) {
	cleaned := nonPriceChars.ReplaceAllString(text, "")
	match := leadingNumber.FindString(cleaned)
	if match == "" {
		return decimal.Zero, false
	}
	value, err := decimal.NewFromString(strings.TrimSuffix(match, "."))
	if err != nil {
		return decimal.Zero, false
	}
	return value, true
}
