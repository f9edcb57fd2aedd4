// Package models defines data structures for the scraper.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a normalised snapshot of one product page.
type Product struct {
	URL           string              `json:"url"`
	Title         string              `json:"title"`
	Category      Category            `json:"category"`
	Currency      string              `json:"currency"`
	CurrentPrice  decimal.NullDecimal `json:"current_price"`
	OriginalPrice decimal.NullDecimal `json:"original_price"`
	DiscountRate  int                 `json:"discount_rate"`
	IsOutOfStock  bool                `json:"is_out_of_stock"`
	Description   string              `json:"description"`
	ImageURL      string              `json:"image_url,omitempty"`
	PriceHistory  PriceHistory        `json:"price_history"`
	LowestPrice   decimal.NullDecimal `json:"lowest_price"`
	HighestPrice  decimal.NullDecimal `json:"highest_price"`
	AveragePrice  decimal.NullDecimal `json:"average_price"`
	ScrapedAt     time.Time           `json:"scraped_at"`
}

// HasPrice reports whether a current price was extracted.
func (p *Product) HasPrice() bool {
	return p != nil && p.CurrentPrice.Valid
}

// PriceHistoryItem is one observed price.
type PriceHistoryItem struct {
	Price decimal.Decimal `json:"price"`
	Date  time.Time       `json:"date"`
}

// PriceHistory is an unordered collection of observations.
type PriceHistory []PriceHistoryItem

// Lowest returns the minimum observed price; ok is false for an empty history.
func (h PriceHistory) Lowest() (decimal.Decimal, bool) {
	if len(h) == 0 {
		return decimal.Zero, false
	}
	lowest := h[0].Price
	for _, item := range h[1:] {
		if item.Price.LessThan(lowest) {
			lowest = item.Price
		}
	}
	return lowest, true
}

// Highest returns the maximum observed price; ok is false for an empty history.
func (h PriceHistory) Highest() (decimal.Decimal, bool) {
	if len(h) == 0 {
		return decimal.Zero, false
	}
	highest := h[0].Price
	for _, item := range h[1:] {
		if item.Price.GreaterThan(highest) {
			highest = item.Price
		}
	}
	return highest, true
}

// Average returns the mean observed price rounded to cents.
func (h PriceHistory) Average() (decimal.Decimal, bool) {
	if len(h) == 0 {
		return decimal.Zero, false
	}
	sum := decimal.Zero
	for _, item := range h {
		sum = sum.Add(item.Price)
	}
	return sum.Div(decimal.NewFromInt(int64(len(h)))).Round(2), true
}

// ScraperResult holds the overall result of a scraping operation
type ScraperResult struct {
	StartTime          time.Time
	EndTime            time.Time
	TotalCount         int
	ErrorCount         int
	ExtractionFailures int
	FailedURLs         []string
	ErrorsByType       map[string]int
	RetryCount         int
	RequestCount       int
	PageCount          int
}
