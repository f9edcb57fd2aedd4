package parser

import (
	"testing"
	"time"

	"github.com/aluiziolira/go-price-tracker/models"
)

func TestValidateProduct(t *testing.T) {
	tests := []struct {
		name    string
		product *models.Product
		wantErr bool
	}{
		{
			name: "valid product",
			product: &models.Product{
				URL:       "http://example.test/dp/1",
				Title:     "Test Phone",
				ScrapedAt: time.Now(),
			},
			wantErr: false,
		},
		{
			name:    "nil product",
			product: nil,
			wantErr: true,
		},
		{
			name: "missing title",
			product: &models.Product{
				URL: "http://example.test/dp/1",
			},
			wantErr: true,
		},
		{
			name: "missing url",
			product: &models.Product{
				Title: "Test Phone",
			},
			wantErr: true,
		},
		{
			name: "negative discount",
			product: &models.Product{
				URL:          "http://example.test/dp/1",
				Title:        "Test Phone",
				DiscountRate: -5,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProduct(tt.product)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProduct() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDiscountToPercent(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{name: "badge", input: "-25%", expected: 25},
		{name: "with whitespace", input: "  -40% ", expected: 40},
		{name: "plain number", input: "10", expected: 10},
		{name: "empty string", input: "", expected: 0},
		{name: "garbage", input: "save big", expected: 0},
		{name: "fraction", input: "-12.5%", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DiscountToPercent(tt.input)
			if result != tt.expected {
				t.Errorf("DiscountToPercent(%q) = %d, want %d", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalizeCurrency(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "code present", input: "AED", expected: "AED"},
		{name: "code repeated", input: " AEDAED ", expected: "AED"},
		{name: "other symbol", input: "€", expected: "$"},
		{name: "empty string", input: "", expected: "$"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeCurrency(tt.input, "AED", "$")
			if result != tt.expected {
				t.Errorf("NormalizeCurrency(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestIsUnavailable(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{input: "Currently unavailable.", expected: false},
		{input: "  Currently Unavailable  ", expected: true},
		{input: "In stock", expected: false},
		{input: "", expected: false},
	}

	for _, tt := range tests {
		if got := IsUnavailable(tt.input); got != tt.expected {
			t.Errorf("IsUnavailable(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}
