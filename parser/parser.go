package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-price-tracker/models"
)

// ValidateProduct ensures the scraper captured the fields a stored record
// needs. A missing price is allowed; the record is kept as a partial result.
func ValidateProduct(p *models.Product) error {
	if p == nil {
		return fmt.Errorf("product is nil")
	}
	if strings.TrimSpace(p.URL) == "" {
		return fmt.Errorf("product missing url")
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("product missing title for %s", p.URL)
	}
	if p.DiscountRate < 0 {
		return fmt.Errorf("negative discount rate for %s", p.URL)
	}
	return nil
}

// NormalizeCurrency returns code when the price symbol text mentions it,
// otherwise fallback.
func NormalizeCurrency(symbolText, code, fallback string) string {
	if code != "" && strings.Contains(strings.TrimSpace(symbolText), code) {
		return code
	}
	return fallback
}

// DiscountToPercent converts a savings badge such as "-25%" to 25. Anything
// unparseable is 0.
func DiscountToPercent(text string) int {
	text = strings.NewReplacer("-", "", "%", "").Replace(text)
	value, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || value < 0 {
		return 0
	}
	return value
}

// IsUnavailable reports whether the availability text marks the product as
// out of stock.
func IsUnavailable(availability string) bool {
	return normalizeLower(availability) == "currently unavailable"
}
