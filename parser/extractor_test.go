package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aluiziolira/go-price-tracker/models"
	"github.com/aluiziolira/go-price-tracker/pricing"
)

const testURL = "http://example.test/dp/B0TEST"

type pageOptions struct {
	current      string
	original     string
	availability string
	images       string
}

func buildProductPage(opts pageOptions) string {
	var b bytes.Buffer
	b.WriteString(`<html><body>`)
	b.WriteString(`<ul class="a-unordered-list a-horizontal a-size-small">`)
	for _, crumb := range []string{"Electronics", "Mobile Phones &amp; Communication", "Mobile Phones"} {
		fmt.Fprintf(&b, `<li><a class="a-link-normal a-color-tertiary" href="#"> %s </a></li>`, crumb)
	}
	b.WriteString(`</ul>`)
	b.WriteString(`<span id="productTitle">  Apple iPhone 15 (128 GB) - Black  </span>`)
	if opts.current != "" {
		fmt.Fprintf(&b, `<div class="priceToPay"><span class="a-price-symbol">AED</span><span class="a-price-whole">%s</span></div>`, opts.current)
	}
	if opts.original != "" {
		fmt.Fprintf(&b, `<span class="a-price a-text-price"><span class="a-offscreen">%s</span></span>`, opts.original)
	}
	b.WriteString(`<span class="savingsPercentage">-33%</span>`)
	fmt.Fprintf(&b, `<div id="availability"><span>%s</span></div>`, opts.availability)
	if opts.images != "" {
		fmt.Fprintf(&b, `<img id="landingImage" data-a-dynamic-image='%s'>`, opts.images)
	}
	b.WriteString(`<div id="prodDetails"><table class="prodDetTable">`)
	b.WriteString(`<tr><th class="prodDetSectionEntry">Brand</th><td class="prodDetAttrValue">Apple</td></tr>`)
	b.WriteString(`</table></div>`)
	b.WriteString(`</body></html>`)
	return b.String()
}

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	engine, err := pricing.NewEngine(pricing.DefaultRules())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	x := NewExtractor(engine)
	x.Now = func() time.Time { return time.Date(2025, 11, 4, 13, 9, 13, 0, time.UTC) }
	return x
}

func TestExtractFullPage(t *testing.T) {
	x := newTestExtractor(t)
	doc := mustParse(t, buildProductPage(pageOptions{
		current:      "100.",
		original:     "AED 150.00",
		availability: " In stock ",
		images:       `{"https://img.test/b.jpg":[500,500],"https://img.test/a.jpg":[100,100]}`,
	}))

	product, err := x.Extract(testURL, doc)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if product.URL != testURL {
		t.Fatalf("url = %q", product.URL)
	}
	if product.Title != "Apple iPhone 15 (128 GB) - Black" {
		t.Fatalf("title = %q", product.Title)
	}
	if product.Category != models.CategoryPhones {
		t.Fatalf("category = %s, want Phones", product.Category)
	}
	if product.Currency != "AED" {
		t.Fatalf("currency = %q, want AED", product.Currency)
	}
	if got := product.CurrentPrice.Decimal.StringFixed(2); !product.CurrentPrice.Valid || got != "68.50" {
		t.Fatalf("current price = %s (valid=%v), want 68.50", got, product.CurrentPrice.Valid)
	}
	if got := product.OriginalPrice.Decimal.StringFixed(2); !product.OriginalPrice.Valid || got != "85.69" {
		t.Fatalf("original price = %s (valid=%v), want 85.69", got, product.OriginalPrice.Valid)
	}
	if product.DiscountRate != 33 {
		t.Fatalf("discount = %d, want 33", product.DiscountRate)
	}
	if product.IsOutOfStock {
		t.Fatalf("product should be in stock")
	}
	if product.ImageURL != "https://img.test/b.jpg" {
		t.Fatalf("image = %q, want first key in document order", product.ImageURL)
	}
	if product.Description != "Brand: Apple" {
		t.Fatalf("description = %q", product.Description)
	}
	if !product.LowestPrice.Decimal.Equal(product.CurrentPrice.Decimal) ||
		!product.HighestPrice.Decimal.Equal(product.OriginalPrice.Decimal) ||
		!product.AveragePrice.Decimal.Equal(product.CurrentPrice.Decimal) {
		t.Fatalf("initial aggregates not seeded from prices: %+v", product)
	}
}

func TestExtractPriceFallbacks(t *testing.T) {
	x := newTestExtractor(t)

	onlyOriginal, err := x.Extract(testURL, mustParse(t, buildProductPage(pageOptions{original: "AED 150.00"})))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !onlyOriginal.CurrentPrice.Valid || !onlyOriginal.CurrentPrice.Decimal.Equal(onlyOriginal.OriginalPrice.Decimal) {
		t.Fatalf("current price should fall back to original, got %v", onlyOriginal.CurrentPrice)
	}

	noPrice, err := x.Extract(testURL, mustParse(t, buildProductPage(pageOptions{})))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if noPrice.CurrentPrice.Valid || noPrice.OriginalPrice.Valid {
		t.Fatalf("prices should be absent, got %v / %v", noPrice.CurrentPrice, noPrice.OriginalPrice)
	}
	if noPrice.Title == "" {
		t.Fatalf("title should still be extracted")
	}
	if noPrice.Currency != "$" {
		t.Fatalf("currency = %q, want default $", noPrice.Currency)
	}

	zeroPrice, err := x.Extract(testURL, mustParse(t, buildProductPage(pageOptions{current: "0"})))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if zeroPrice.CurrentPrice.Valid {
		t.Fatalf("zero source price must not produce a shipping-only price, got %s", zeroPrice.CurrentPrice.Decimal)
	}
}

func TestExtractOutOfStock(t *testing.T) {
	x := newTestExtractor(t)
	product, err := x.Extract(testURL, mustParse(t, buildProductPage(pageOptions{availability: "Currently unavailable"})))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !product.IsOutOfStock {
		t.Fatalf("product should be out of stock")
	}
}

func TestExtractMalformedImageListIsNoResult(t *testing.T) {
	x := newTestExtractor(t)
	product, err := x.Extract(testURL, mustParse(t, buildProductPage(pageOptions{images: `{"https://img.test/a.jpg":`})))
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected ErrNoResult, got %v", err)
	}
	if product != nil {
		t.Fatalf("expected no product, got %+v", product)
	}
}

func TestExtractEmptyPage(t *testing.T) {
	x := newTestExtractor(t)
	product, err := x.Extract(testURL, mustParse(t, "<html><body></body></html>"))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if product.Title != "" || product.Category != models.CategoryGeneral || product.ImageURL != "" {
		t.Fatalf("unexpected partial product: %+v", product)
	}
	if product.PriceHistory == nil {
		t.Fatalf("price history should be an empty collection")
	}
}

type panickingDocument struct{ Document }

func (panickingDocument) Text(string) string { panic("boom") }

func TestExtractRecoversPanics(t *testing.T) {
	x := newTestExtractor(t)
	doc := panickingDocument{Document: mustParse(t, "<html></html>")}

	product, err := x.Extract(testURL, doc)
	if !errors.Is(err, ErrNoResult) || product != nil {
		t.Fatalf("expected ErrNoResult without product, got %v / %+v", err, product)
	}
}

func TestExtractIdempotent(t *testing.T) {
	x := newTestExtractor(t)
	page := buildProductPage(pageOptions{
		current:  "1,234.",
		original: "AED 1,499.00",
		images:   `{"https://img.test/a.jpg":[1,1]}`,
	})

	first, err := x.Extract(testURL, mustParse(t, page))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	second, err := x.Extract(testURL, mustParse(t, page))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if !bytes.Equal(a, b) {
		t.Fatalf("extractions differ:\n%s\n%s", a, b)
	}
}
