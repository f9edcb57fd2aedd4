package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-price-tracker/models"
	"github.com/aluiziolira/go-price-tracker/pricing"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// ErrNoResult is returned when a page could not be turned into a product at
// all. A product with empty fields is a partial result, not ErrNoResult.
var ErrNoResult = errors.New("parser: no result")

const (
	titleSelector        = "#productTitle"
	currencySelector     = ".a-price-symbol"
	discountSelector     = ".savingsPercentage"
	availabilitySelector = "#availability span"
	imageAttr            = "data-a-dynamic-image"
)

// Price and image locations, highest priority first.
var (
	currentPriceSelectors = []string{
		".priceToPay span.a-price-whole",
		".a.size.base.a-color-price",
		".a-button-selected .a-color-base",
	}
	originalPriceSelectors = []string{
		"#priceblock_ourprice",
		".a-price.a-text-price span.a-offscreen",
		"#listPrice",
		"#priceblock_dealprice",
		".a-size-base.a-color-price",
	}
	imageSelectors = []string{"#imgBlkFront", "#landingImage"}
)

// Defaults are the fallbacks applied when a page omits a field.
type Defaults struct {
	Currency string
}

// DefaultDefaults returns the stock fallbacks.
func DefaultDefaults() Defaults {
	return Defaults{Currency: "$"}
}

// Extractor turns a product page into a models.Product. It is stateless and
// safe for concurrent use.
type Extractor struct {
	Engine   *pricing.Engine
	Labels   LabelSet
	Defaults Defaults
	Now      func() time.Time
}

// NewExtractor builds an extractor with the default label allow-list and
// fallbacks.
func NewExtractor(engine *pricing.Engine) *Extractor {
	return &Extractor{
		Engine:   engine,
		Labels:   DefaultLabels(),
		Defaults: DefaultDefaults(),
		Now:      time.Now,
	}
}

// Extract runs every field extractor over doc. Missing elements leave the
// matching field empty; a malformed image list or an unexpected panic
// returns ErrNoResult instead of a partially built product.
func (x *Extractor) Extract(url string, doc Document) (product *models.Product, err error) {
	defer func() {
		if r := recover(); r != nil {
			product = nil
			err = fmt.Errorf("%w: %s: panic: %v", ErrNoResult, url, r)
		}
	}()

	title := doc.Text(titleSelector)
	var crumbs []string
	doc.Each(breadcrumbSelector, func(crumb Document) {
		crumbs = append(crumbs, crumb.Content())
	})
	category := ClassifyCategory(crumbs, title)

	current := x.price(category, candidateTexts(doc, currentPriceSelectors))
	original := x.price(category, candidateTexts(doc, originalPriceSelectors))

	imageURL, err := firstImage(imageList(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoResult, url, err)
	}

	product = &models.Product{
		URL:           url,
		Title:         title,
		Category:      category,
		Currency:      NormalizeCurrency(doc.Text(currencySelector), x.Engine.Rules().SourceCurrency, x.Defaults.Currency),
		CurrentPrice:  firstValid(current, original),
		OriginalPrice: firstValid(original, current),
		DiscountRate:  DiscountToPercent(doc.FirstText(discountSelector)),
		IsOutOfStock:  IsUnavailable(doc.Text(availabilitySelector)),
		Description:   ExtractDescription(doc, x.Labels),
		ImageURL:      imageURL,
		PriceHistory:  models.PriceHistory{},
		ScrapedAt:     x.now(),
	}
	product.LowestPrice = product.CurrentPrice
	product.HighestPrice = product.OriginalPrice
	product.AveragePrice = product.CurrentPrice

	return product, nil
}

func (x *Extractor) price(category models.Category, candidates []string) decimal.NullDecimal {
	source, ok := ParsePrice(category, candidates...)
	if !ok {
		return decimal.NullDecimal{}
	}
	final := x.Engine.Price(source, category)
	slog.Debug("priced product",
		slog.String("category", category.String()),
		slog.String("source_price", source.String()),
		slog.String("shipping", x.Engine.ShippingCost(category).String()),
		slog.String("markup", x.Engine.MarkupRate(source, category).String()),
		slog.Bool("priced", final.Valid),
	)
	return final
}

func (x *Extractor) now() time.Time {
	if x.Now == nil {
		return time.Now()
	}
	return x.Now()
}

func candidateTexts(doc Document, selectors []string) []string {
	texts := make([]string, len(selectors))
	for i, selector := range selectors {
		texts[i] = doc.FirstText(selector)
	}
	return texts
}

func imageList(doc Document) string {
	for _, selector := range imageSelectors {
		if raw := doc.Attr(selector, imageAttr); raw != "" {
			return raw
		}
	}
	return "{}"
}

// firstImage returns the first key of the image JSON object in document
// order. The keys are image URLs, the values their dimensions.
func firstImage(raw string) (string, error) {
	if !gjson.Valid(raw) {
		return "", fmt.Errorf("malformed image list")
	}
	parsed := gjson.Parse(raw)
	if !parsed.IsObject() {
		return "", nil
	}
	var first string
	parsed.ForEach(func(key, _ gjson.Result) bool {
		first = key.String()
		return false
	})
	return first, nil
}

func firstValid(prices ...decimal.NullDecimal) decimal.NullDecimal {
	for _, p := range prices {
		if p.Valid {
			return p
		}
	}
	return decimal.NullDecimal{}
}
