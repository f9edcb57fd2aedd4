package parser

import (
	"strings"

	"github.com/aluiziolira/go-price-tracker/models"
)

const breadcrumbSelector = "ul.a-unordered-list.a-horizontal.a-size-small a.a-link-normal.a-color-tertiary"

// ClassifyCategory infers a category from the breadcrumb trail (broad to
// specific) and the product title. The first matching rule wins:
//
//  1. the crumb after "mobile phones & communication" names mobile phones or accessories
//  2. the crumb after "computers"/"electronics" names laptops or accessories
//  3. a "traditional laptops" crumb, or a MacBook title mentioning RAM and SSD
//  4. an "iphone" crumb, or a title mentioning apple and iphone
//
// Anything else is General.
func ClassifyCategory(breadcrumbs []string, title string) models.Category {
	crumbs := make([]string, len(breadcrumbs))
	for i, crumb := range breadcrumbs {
		crumbs[i] = normalizeLower(crumb)
	}
	title = normalizeLower(title)

	if next, ok := crumbAfter(crumbs, "mobile phones & communication"); ok {
		switch {
		case strings.Contains(next, "mobile phones"):
			return models.CategoryPhones
		case strings.Contains(next, "accessories"):
			return models.CategoryMobileAccessories
		}
	}

	if next, ok := crumbAfter(crumbs, "computers", "electronics"); ok {
		switch {
		case strings.Contains(next, "laptops"):
			return models.CategoryLaptops
		case strings.Contains(next, "accessories"):
			return models.CategoryLaptopAccessories
		}
	}

	if anyContains(crumbs, "traditional laptops") ||
		containsAll(title, "apple macbook", "ram", "ssd") {
		return models.CategoryLaptops
	}

	if anyContains(crumbs, "iphone") || containsAll(title, "apple", "iphone") {
		return models.CategoryPhones
	}

	return models.CategoryGeneral
}

// crumbAfter finds the first crumb containing any needle and returns the one
// following it. ok is false when no crumb matches or the match is last.
func crumbAfter(crumbs []string, needles ...string) (string, bool) {
	for i, crumb := range crumbs {
		for _, needle := range needles {
			if !strings.Contains(crumb, needle) {
				continue
			}
			if i+1 >= len(crumbs) || crumbs[i+1] == "" {
				return "", false
			}
			return crumbs[i+1], true
		}
	}
	return "", false
}

func anyContains(crumbs []string, needle string) bool {
	for _, crumb := range crumbs {
		if strings.Contains(crumb, needle) {
			return true
		}
	}
	return false
}

func containsAll(s string, needles ...string) bool {
	for _, needle := range needles {
		if !strings.Contains(s, needle) {
			return false
		}
	}
	return true
}

func normalizeLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
