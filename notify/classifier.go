package notify

import "github.com/aluiziolira/go-price-tracker/models"

// DefaultThresholdPercent is the discount that raises KindThresholdMet.
const DefaultThresholdPercent = 40

// Classifier picks the alert for a freshly scraped product.
type Classifier struct {
	ThresholdPercent int
}

// NewClassifier returns a classifier using DefaultThresholdPercent.
func NewClassifier() Classifier {
	return Classifier{ThresholdPercent: DefaultThresholdPercent}
}

// Classify compares scraped against the stored snapshot. The first rule that
// holds wins:
//
//  1. the scraped price is below the lowest price in the stored history
//  2. the product is back in stock
//  3. the discount reaches the threshold
//
// An empty stored history or a missing scraped price skips rule 1.
func (c Classifier) Classify(scraped, stored *models.Product) Kind {
	if scraped == nil || stored == nil {
		return KindNone
	}

	if scraped.CurrentPrice.Valid {
		if lowest, ok := stored.PriceHistory.Lowest(); ok && scraped.CurrentPrice.Decimal.LessThan(lowest) {
			return KindLowestPrice
		}
	}
	if !scraped.IsOutOfStock && stored.IsOutOfStock {
		return KindChangeOfStock
	}
	if scraped.DiscountRate >= c.ThresholdPercent {
		return KindThresholdMet
	}
	return KindNone
}
