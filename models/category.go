package models

import (
	"fmt"
	"strings"
)

// Category is the closed set of product categories the pricing rules know about.
type Category int

const (
	CategoryGeneral Category = iota
	CategoryPhones
	CategoryLaptops
	CategoryMobileAccessories
	CategoryLaptopAccessories
)

var categoryNames = [...]string{
	CategoryGeneral:           "General",
	CategoryPhones:            "Phones",
	CategoryLaptops:           "Laptops",
	CategoryMobileAccessories: "Mobile Accessories",
	CategoryLaptopAccessories: "Laptop Accessories",
}

// Categories lists every category in declaration order.
func Categories() []Category {
	return []Category{
		CategoryGeneral,
		CategoryPhones,
		CategoryLaptops,
		CategoryMobileAccessories,
		CategoryLaptopAccessories,
	}
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return categoryNames[CategoryGeneral]
	}
	return categoryNames[c]
}

// ParseCategory resolves a label case-insensitively.
func ParseCategory(label string) (Category, bool) {
	label = strings.TrimSpace(label)
	for i, name := range categoryNames {
		if strings.EqualFold(name, label) {
			return Category(i), true
		}
	}
	return CategoryGeneral, false
}

func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	parsed, ok := ParseCategory(string(text))
	if !ok {
		return fmt.Errorf("unknown category %q", string(text))
	}
	*c = parsed
	return nil
}
