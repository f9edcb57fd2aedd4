package parser

import (
	"testing"

	"github.com/aluiziolira/go-price-tracker/models"
)

func TestClassifyCategory(t *testing.T) {
	tests := []struct {
		name     string
		crumbs   []string
		title    string
		expected models.Category
	}{
		{
			name:     "mobile phones after parent",
			crumbs:   []string{"Electronics", "Mobile Phones & Communication", "Mobile Phones", "Smartphones"},
			expected: models.CategoryPhones,
		},
		{
			name:     "mobile accessories after parent",
			crumbs:   []string{"Mobile Phones & Communication", "Accessories", "Cases"},
			expected: models.CategoryMobileAccessories,
		},
		{
			name:     "laptops after computers",
			crumbs:   []string{"Computers", "Laptops"},
			expected: models.CategoryLaptops,
		},
		{
			name:     "laptop accessories after electronics",
			crumbs:   []string{"Electronics", "Accessories & Supplies"},
			expected: models.CategoryLaptopAccessories,
		},
		{
			name:     "traditional laptops crumb",
			crumbs:   []string{"electronics", "computers", "laptops", "traditional laptops"},
			expected: models.CategoryLaptops,
		},
		{
			name:     "macbook title",
			crumbs:   nil,
			title:    "Apple MacBook Air M2, 8GB RAM, 256GB SSD",
			expected: models.CategoryLaptops,
		},
		{
			name:     "macbook title missing ssd",
			title:    "Apple MacBook Air sleeve with RAM pouch",
			expected: models.CategoryGeneral,
		},
		{
			name:     "iphone crumb",
			crumbs:   []string{"Shop", "iPhone"},
			expected: models.CategoryPhones,
		},
		{
			name:     "iphone title",
			title:    "Apple iPhone 15 Pro, 256GB",
			expected: models.CategoryPhones,
		},
		{
			name:     "parent crumb is last",
			crumbs:   []string{"Home", "Mobile Phones & Communication"},
			title:    "Apple iPhone 15",
			expected: models.CategoryPhones,
		},
		{
			name:     "parent followed by unrelated crumb falls through",
			crumbs:   []string{"Mobile Phones & Communication", "Smartwatches"},
			expected: models.CategoryGeneral,
		},
		{
			name:     "nothing matches",
			crumbs:   []string{"Home & Kitchen", "Kettles"},
			title:    "Electric kettle 1.7L",
			expected: models.CategoryGeneral,
		},
		{
			name:     "empty input",
			expected: models.CategoryGeneral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyCategory(tt.crumbs, tt.title)
			if got != tt.expected {
				t.Errorf("ClassifyCategory(%v, %q) = %s, want %s", tt.crumbs, tt.title, got, tt.expected)
			}
		})
	}
}
