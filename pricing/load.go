package pricing

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aluiziolira/go-price-tracker/models"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type fileRules struct {
	SourceCurrency string                `yaml:"source_currency"`
	TargetCurrency string                `yaml:"target_currency"`
	ExchangeRate   *float64              `yaml:"exchange_rate"`
	DefaultMarkup  *float64              `yaml:"default_markup"`
	Shipping       map[string]float64    `yaml:"shipping"`
	Markup         map[string][]fileTier `yaml:"markup"`
}

type fileTier struct {
	Min  float64  `yaml:"min"`
	Max  *float64 `yaml:"max"`
	Rate float64  `yaml:"rate"`
}

// LoadRules reads a YAML override file and merges it over DefaultRules.
// Categories listed in the file replace the default entry wholesale.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read pricing file: %w", err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return Rules{}, fmt.Errorf("parse pricing file %q: %w", path, err)
	}
	return rules, nil
}

// ParseRules merges YAML overrides over DefaultRules and validates the result.
func ParseRules(data []byte) (Rules, error) {
	var raw fileRules
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return Rules{}, err
	}

	rules := DefaultRules()
	if raw.SourceCurrency != "" {
		rules.SourceCurrency = raw.SourceCurrency
	}
	if raw.TargetCurrency != "" {
		rules.TargetCurrency = raw.TargetCurrency
	}
	if raw.ExchangeRate != nil {
		rules.ExchangeRate = decimal.NewFromFloat(*raw.ExchangeRate)
	}
	if raw.DefaultMarkup != nil {
		rules.DefaultMarkup = decimal.NewFromFloat(*raw.DefaultMarkup)
	}
	for label, cost := range raw.Shipping {
		category, ok := models.ParseCategory(label)
		if !ok {
			return Rules{}, fmt.Errorf("shipping: unknown category %q", label)
		}
		rules.Shipping[category] = decimal.NewFromFloat(cost)
	}
	for label, table := range raw.Markup {
		category, ok := models.ParseCategory(label)
		if !ok {
			return Rules{}, fmt.Errorf("markup: unknown category %q", label)
		}
		converted := make([]Tier, 0, len(table))
		for _, t := range table {
			tier := Tier{
				Min:  decimal.NewFromFloat(t.Min),
				Rate: decimal.NewFromFloat(t.Rate),
			}
			if t.Max == nil {
				tier.Unbounded = true
			} else {
				tier.Max = decimal.NewFromFloat(*t.Max)
			}
			converted = append(converted, tier)
		}
		rules.Markup[category] = converted
	}

	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}
