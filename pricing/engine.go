package pricing

import (
	"fmt"

	"github.com/aluiziolira/go-price-tracker/models"
	"github.com/shopspring/decimal"
)

// Engine applies a validated rule set. It holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	rules Rules
}

// NewEngine validates rules and returns an engine bound to them.
func NewEngine(rules Rules) (*Engine, error) {
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pricing rules: %w", err)
	}
	return &Engine{rules: rules}, nil
}

// Rules returns the engine's rule set.
func (e *Engine) Rules() Rules {
	return e.rules
}

// MarkupRate returns the rate of the tier containing the source price, or
// the default rate when no tier does.
func (e *Engine) MarkupRate(source decimal.Decimal, category models.Category) decimal.Decimal {
	for _, tier := range e.rules.TiersFor(category) {
		if tier.Contains(source) {
			return tier.Rate
		}
	}
	return e.rules.DefaultMarkup
}

// ShippingCost returns the flat shipping surcharge for category.
func (e *Engine) ShippingCost(category models.Category) decimal.Decimal {
	return e.rules.ShippingFor(category)
}

// Price converts a source-currency price into the final target-currency
// price: converted + shipping + converted*markup, rounded to cents. Zero or
// negative input yields an absent price.
func (e *Engine) Price(source decimal.Decimal, category models.Category) decimal.NullDecimal {
	if !source.IsPositive() {
		return decimal.NullDecimal{}
	}
	converted := source.Mul(e.rules.ExchangeRate)
	markup := converted.Mul(e.MarkupRate(source, category))
	final := converted.Add(e.ShippingCost(category)).Add(markup).Round(2)
	return decimal.NewNullDecimal(final)
}
