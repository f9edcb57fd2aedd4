package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/go-price-tracker/config"
	"github.com/aluiziolira/go-price-tracker/models"
	"github.com/aluiziolira/go-price-tracker/parser"
	"github.com/aluiziolira/go-price-tracker/pipeline"
	"github.com/aluiziolira/go-price-tracker/pricing"
	"github.com/gocolly/colly/v2"
	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

func TestRetryManagerScheduleRespectsLimit(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxRetries = 2
	cfg.RetryBackoff = time.Hour
	cfg.RetryBackoffMax = time.Hour

	rm := newRetryManager(colly.NewCollector(), cfg, NewMetrics())

	if !rm.Schedule("http://example.com/page") {
		t.Fatalf("first retry should be scheduled")
	}
	if !rm.Schedule("http://example.com/page") {
		t.Fatalf("second retry should be scheduled")
	}
	if rm.Schedule("http://example.com/page") {
		t.Fatalf("third retry should not be scheduled")
	}

	rm.Stop()
	if got := rm.TotalRetries(); got != 2 {
		t.Fatalf("total retries = %d, want 2", got)
	}
}

func TestRetryManagerBackoffCapped(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RetryBackoff = 200 * time.Millisecond
	cfg.RetryBackoffMax = 500 * time.Millisecond

	rm := newRetryManager(colly.NewCollector(), cfg, NewMetrics())

	delay := rm.backoff(4)
	if delay > cfg.RetryBackoffMax {
		t.Fatalf("delay %v exceeds max %v", delay, cfg.RetryBackoffMax)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
		retry      bool
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown", retry: true},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout", retry: true},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout", retry: true},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection", retry: true},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden", retry: false},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found", retry: false},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited", retry: true},
		{name: "server error", err: nil, statusCode: http.StatusBadGateway, expected: "server_error", retry: true},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other", retry: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := classifyError(tt.err, tt.statusCode)
			if got := errorTypeLabel(classified); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
			if got := retryable(classified); got != tt.retry {
				t.Fatalf("retryable = %v, want %v", got, tt.retry)
			}
		})
	}
}

func TestNewScraperRequiresURLs(t *testing.T) {
	cfg := config.DefaultConfig()
	if _, err := NewScraper(cfg, newTestExtractor(t)); err == nil {
		t.Fatalf("expected error without product URLs")
	}
	cfg.URLs = []string{"http://example.test/dp/1"}
	if _, err := NewScraper(cfg, nil); err == nil {
		t.Fatalf("expected error without extractor")
	}
}

func TestAllowedHosts(t *testing.T) {
	hosts, err := allowedHosts([]string{
		"https://shop.test/dp/1",
		"https://shop.test:8443/dp/2",
		"https://other.test/dp/3",
	})
	if err != nil {
		t.Fatalf("allowed hosts: %v", err)
	}
	if len(hosts) != 2 || hosts[0] != "shop.test" || hosts[1] != "other.test" {
		t.Fatalf("hosts = %v", hosts)
	}
	if _, err := allowedHosts([]string{"/dp/relative"}); err == nil {
		t.Fatalf("expected error for url without host")
	}
}

func TestScraperHTTPStatusClassification(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{status: http.StatusTooManyRequests, expected: "rate_limited"},
		{status: http.StatusForbidden, expected: "forbidden"},
		{status: http.StatusNotFound, expected: "not_found"},
		{status: http.StatusServiceUnavailable, expected: "server_error"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			cfg := testConfig("http://example.test/dp/B0001")
			cfg.MaxRetries = 0
			cfg.PipelineBufferSize = 16
			cfg.BatchSize = 1

			transport := httpmock.NewMockTransport()
			transport.RegisterResponder("GET", cfg.URLs[0], httpmock.NewStringResponder(tt.status, ""))

			s, err := NewScraper(cfg, newTestExtractor(t))
			if err != nil {
				t.Fatalf("new scraper: %v", err)
			}
			s.collector.WithTransport(transport)

			writer := &collectingWriter{}
			p := pipeline.NewPipeline(context.Background(), writer, cfg)
			p.Start(1)

			result, err := s.Run(context.Background(), p)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if err := p.Close(); err != nil {
				t.Fatalf("close pipeline: %v", err)
			}

			if got := result.ErrorsByType[tt.expected]; got == 0 {
				t.Fatalf("expected %q classification for status %d", tt.expected, tt.status)
			}
			if len(result.FailedURLs) != 1 || result.FailedURLs[0] != cfg.URLs[0] {
				t.Fatalf("failed urls = %v", result.FailedURLs)
			}
			if writer.Count() != 0 {
				t.Fatalf("error pages should not produce products")
			}
		})
	}
}

type collectingWriter struct {
	mu       sync.Mutex
	products []*models.Product
}

func (cw *collectingWriter) Write(products []*models.Product) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.products = append(cw.products, products...)
	return nil
}

func (cw *collectingWriter) Close() error {
	return nil
}

func (cw *collectingWriter) Validate() error {
	return nil
}

func (cw *collectingWriter) Count() int {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return len(cw.products)
}

func (cw *collectingWriter) All() []*models.Product {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	out := make([]*models.Product, len(cw.products))
	copy(out, cw.products)
	return out
}

func TestScraper_Integration(t *testing.T) {
	const base = "http://example.test/dp/"
	var urls []string
	for i := 1; i <= 5; i++ {
		urls = append(urls, fmt.Sprintf("%sB%04d", base, i))
	}
	broken := base + "broken"
	unpriced := base + "unpriced"

	cfg := testConfig(append(urls, broken, unpriced, urls[0])...)
	cfg.Parallelism = 4
	cfg.PipelineBufferSize = 128
	cfg.BatchSize = 2
	cfg.DedupeMaxSize = 1000

	transport := httpmock.NewMockTransport()
	for i, u := range urls {
		transport.RegisterResponder("GET", u, htmlResponder(buildProductPage(fmt.Sprintf("Phone %d", i+1), "100", validImages)))
	}
	transport.RegisterResponder("GET", broken, htmlResponder(buildProductPage("Broken", "100", "{not json")))
	transport.RegisterResponder("GET", unpriced, htmlResponder(buildProductPage("Unpriced", "", validImages)))

	s, err := NewScraper(cfg, newTestExtractor(t))
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	s.collector.WithTransport(transport)

	writer := &collectingWriter{}
	p := pipeline.NewPipeline(context.Background(), writer, cfg)
	p.Start(2)

	result, err := s.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close pipeline: %v", err)
	}

	if got := writer.Count(); got != 6 {
		t.Fatalf("products=%d, want 6 (requests=%d errors=%d failed=%v)", got, result.RequestCount, result.ErrorCount, result.FailedURLs)
	}
	if result.RequestCount != 7 {
		t.Fatalf("requests=%d, want 7 (duplicate URL visited once)", result.RequestCount)
	}
	if result.ExtractionFailures != 1 {
		t.Fatalf("extraction failures=%d, want 1", result.ExtractionFailures)
	}
	if result.TotalCount != 6 {
		t.Fatalf("total count=%d, want 6", result.TotalCount)
	}

	var sample, missing *models.Product
	for _, product := range writer.All() {
		switch product.URL {
		case urls[0]:
			sample = product
		case unpriced:
			missing = product
		}
	}
	if sample == nil {
		t.Fatalf("expected product with URL %s", urls[0])
	}
	if sample.Title != "Phone 1" {
		t.Fatalf("title=%q, want %q", sample.Title, "Phone 1")
	}
	if sample.Category != models.CategoryPhones {
		t.Fatalf("category=%s, want Phones", sample.Category)
	}
	if !sample.CurrentPrice.Valid || !sample.CurrentPrice.Decimal.Equal(decimal.RequireFromString("68.5")) {
		t.Fatalf("price=%+v, want 68.50", sample.CurrentPrice)
	}
	if sample.ImageURL != "https://img.test/main.jpg" {
		t.Fatalf("image=%q", sample.ImageURL)
	}
	if missing == nil || missing.CurrentPrice.Valid {
		t.Fatalf("unpriced page should be kept without a price, got %+v", missing)
	}

	if got := testutil.ToFloat64(s.Metrics.ExtractionsTotal.WithLabelValues("failed")); got != 1 {
		t.Fatalf("failed extractions metric = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.Metrics.ExtractionsTotal.WithLabelValues("missing_price")); got != 1 {
		t.Fatalf("missing_price extractions metric = %v, want 1", got)
	}
}

type benchWriter struct {
	mu    sync.Mutex
	count int
}

func (bw *benchWriter) Write(products []*models.Product) error {
	bw.mu.Lock()
	bw.count += len(products)
	bw.mu.Unlock()
	return nil
}

func (bw *benchWriter) Close() error {
	return nil
}

func (bw *benchWriter) Validate() error {
	return nil
}

func BenchmarkPipeline_Throughput(b *testing.B) {
	cfg := config.DefaultConfig()
	cfg.PipelineBufferSize = 1024
	cfg.BatchSize = 64
	cfg.DedupeMaxSize = 5000000

	price := decimal.NewNullDecimal(decimal.RequireFromString("68.50"))
	for _, workers := range []int{4, 8, 16, 32} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			writer := &benchWriter{}
			p := pipeline.NewPipeline(context.Background(), writer, cfg)
			p.Start(workers)

			scrapedAt := time.Unix(0, 0)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				product := &models.Product{
					URL:          fmt.Sprintf("http://example.test/dp/%d", i),
					Title:        "Benchmark Product",
					CurrentPrice: price,
					ScrapedAt:    scrapedAt,
				}
				if err := p.Process(product); err != nil {
					b.Fatalf("process: %v", err)
				}
			}
			b.StopTimer()
			if err := p.Close(); err != nil {
				b.Fatalf("close: %v", err)
			}
			elapsed := b.Elapsed().Seconds()
			if elapsed > 0 {
				b.ReportMetric(float64(b.N)/elapsed, "items/sec")
			}
		})
	}
}

const validImages = `{"https://img.test/main.jpg":[500,500],"https://img.test/alt.jpg":[100,100]}`

func testConfig(urls ...string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.URLs = urls
	cfg.Parallelism = 1
	cfg.Delay = 0
	cfg.RandomDelay = 0
	return cfg
}

func newTestExtractor(t *testing.T) *parser.Extractor {
	t.Helper()
	engine, err := pricing.NewEngine(pricing.DefaultRules())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return parser.NewExtractor(engine)
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func buildProductPage(title, price, images string) string {
	var builder strings.Builder
	builder.WriteString("<html><body>")
	builder.WriteString(`<ul class="a-unordered-list a-horizontal a-size-small">`)
	for _, crumb := range []string{"Electronics", "Mobile Phones &amp; Communication", "Mobile Phones"} {
		fmt.Fprintf(&builder, `<li><a class="a-link-normal a-color-tertiary" href="#">%s</a></li>`, crumb)
	}
	builder.WriteString("</ul>")
	fmt.Fprintf(&builder, `<span id="productTitle">%s</span>`, title)
	if price != "" {
		fmt.Fprintf(&builder, `<div class="priceToPay"><span class="a-price-symbol">AED</span><span class="a-price-whole">%s</span></div>`, price)
	}
	builder.WriteString(`<div id="availability"><span>In stock</span></div>`)
	fmt.Fprintf(&builder, `<img id="landingImage" data-a-dynamic-image='%s'>`, images)
	builder.WriteString("</body></html>")
	return builder.String()
}
