// Package pricing converts scraped source-currency prices into marked-up
// target-currency sale prices.
package pricing

import (
	"fmt"

	"github.com/aluiziolira/go-price-tracker/models"
	"github.com/shopspring/decimal"
)

// Tier applies Rate to source prices within [Min, Max]. The last tier of a
// table may be Unbounded, in which case Max is ignored.
type Tier struct {
	Min       decimal.Decimal
	Max       decimal.Decimal
	Unbounded bool
	Rate      decimal.Decimal
}

// Contains reports whether price falls inside the tier, bounds inclusive.
func (t Tier) Contains(price decimal.Decimal) bool {
	if price.LessThan(t.Min) {
		return false
	}
	return t.Unbounded || price.LessThanOrEqual(t.Max)
}

// Rules is the full pricing configuration. Categories missing from Shipping
// or Markup fall back to the General entries.
type Rules struct {
	SourceCurrency string
	TargetCurrency string
	ExchangeRate   decimal.Decimal
	DefaultMarkup  decimal.Decimal
	Shipping       map[models.Category]decimal.Decimal
	Markup         map[models.Category][]Tier
}

// DefaultRules returns the AED to USD rule set.
func DefaultRules() Rules {
	return Rules{
		SourceCurrency: "AED",
		TargetCurrency: "USD",
		ExchangeRate:   decimal.RequireFromString("0.275"),
		DefaultMarkup:  decimal.RequireFromString("0.2"),
		Shipping: map[models.Category]decimal.Decimal{
			models.CategoryPhones:  decimal.NewFromInt(30),
			models.CategoryLaptops: decimal.NewFromInt(35),
			models.CategoryGeneral: decimal.NewFromInt(13),
		},
		Markup: map[models.Category][]Tier{
			models.CategoryPhones: tiers(
				"0.9", "0.5", "0.4", "0.35", "0.3", "0.25", "0.23", "0.2", "0.18", "0.15",
			),
			models.CategoryLaptops: tiers(
				"1.2", "1", "1", "0.4", "0.35", "0.33", "0.3", "0.25", "0.22", "0.2",
			),
			// The top tier keeps the historical 0.8 rate; see DESIGN.md.
			models.CategoryGeneral: tiers(
				"0.7", "0.5", "0.3", "0.28", "0.23", "0.2", "0.18", "0.15", "0.12", "0.8",
			),
		},
	}
}

// standardBounds are the AED price bands shared by every default table.
var standardBounds = [][2]string{
	{"0", "49.99"},
	{"50", "99.99"},
	{"100", "149.99"},
	{"150", "199.99"},
	{"200", "499.99"},
	{"500", "999.99"},
	{"1000", "1999.99"},
	{"2000", "3999.99"},
	{"4000", "5000"},
	{"5001", ""},
}

func tiers(rates ...string) []Tier {
	out := make([]Tier, len(rates))
	for i, rate := range rates {
		bounds := standardBounds[i]
		out[i] = Tier{
			Min:  decimal.RequireFromString(bounds[0]),
			Rate: decimal.RequireFromString(rate),
		}
		if bounds[1] == "" {
			out[i].Unbounded = true
		} else {
			out[i].Max = decimal.RequireFromString(bounds[1])
		}
	}
	return out
}

// ShippingFor returns the shipping cost for category.
func (r Rules) ShippingFor(category models.Category) decimal.Decimal {
	if cost, ok := r.Shipping[category]; ok {
		return cost
	}
	return r.Shipping[models.CategoryGeneral]
}

// TiersFor returns the markup table for category.
func (r Rules) TiersFor(category models.Category) []Tier {
	if table, ok := r.Markup[category]; ok {
		return table
	}
	return r.Markup[models.CategoryGeneral]
}

// MatchingTiers counts the tiers of category's table containing price.
// Valid rules never yield more than one.
func (r Rules) MatchingTiers(price decimal.Decimal, category models.Category) int {
	count := 0
	for _, tier := range r.TiersFor(category) {
		if tier.Contains(price) {
			count++
		}
	}
	return count
}

// Validate checks the rule set is usable.
func (r Rules) Validate() error {
	if !r.ExchangeRate.IsPositive() {
		return fmt.Errorf("exchange rate must be positive")
	}
	if r.DefaultMarkup.IsNegative() {
		return fmt.Errorf("default markup cannot be negative")
	}
	if _, ok := r.Shipping[models.CategoryGeneral]; !ok {
		return fmt.Errorf("shipping table must define %s", models.CategoryGeneral)
	}
	if _, ok := r.Markup[models.CategoryGeneral]; !ok {
		return fmt.Errorf("markup table must define %s", models.CategoryGeneral)
	}
	for category, cost := range r.Shipping {
		if cost.IsNegative() {
			return fmt.Errorf("shipping for %s cannot be negative", category)
		}
	}
	for category, table := range r.Markup {
		if err := validateTiers(table); err != nil {
			return fmt.Errorf("markup for %s: %w", category, err)
		}
	}
	return nil
}

func validateTiers(table []Tier) error {
	for i, tier := range table {
		if tier.Min.IsNegative() {
			return fmt.Errorf("tier %d: min cannot be negative", i)
		}
		if tier.Rate.IsNegative() {
			return fmt.Errorf("tier %d: rate cannot be negative", i)
		}
		if tier.Unbounded && i != len(table)-1 {
			return fmt.Errorf("tier %d: only the last tier may be unbounded", i)
		}
		if !tier.Unbounded && tier.Max.LessThan(tier.Min) {
			return fmt.Errorf("tier %d: max %s below min %s", i, tier.Max, tier.Min)
		}
		if i > 0 {
			prev := table[i-1]
			if !tier.Min.GreaterThan(prev.Max) {
				return fmt.Errorf("tier %d overlaps tier %d", i, i-1)
			}
		}
	}
	return nil
}
