package parser

import "strings"

// region describes one place on a product page that contributes description
// lines. Bullet regions set only item; table regions set row, label and value.
type region struct {
	item      string
	row       string
	label     string
	value     string
	allowList bool
}

// descriptionRegions are visited in order; lines keep that order.
var descriptionRegions = []region{
	{item: "#feature-bullets ul.a-unordered-list.a-vertical.a-spacing-mini li span.a-list-item"},
	{
		row:       "table.a-normal.a-spacing-micro tr",
		label:     "td.a-span3 span.a-size-base.a-text-bold",
		value:     "td.a-span9 span.a-size-base.po-break-word",
		allowList: true,
	},
	{row: "#prodDetails table.prodDetTable tr", label: "th.prodDetSectionEntry", value: "td.prodDetAttrValue"},
	{row: ".aplus-tech-spec-table tbody tr", label: "td.a-text-bold span", value: "td:nth-child(2) span"},
	{row: "#prodDetails #technical-details table tbody tr", label: "th", value: "td"},
	{item: "#detailBullets_feature_div ul.a-unordered-list.a-nostyle.a-vertical.a-spacing-none li span.a-list-item"},
}

// ExtractDescription assembles "Label: Value" lines and bullet texts from the
// page's structured regions, joined by newlines. Only the overview attribute
// table is filtered through labels.
func ExtractDescription(doc Document, labels LabelSet) string {
	var parts []string

	for _, r := range descriptionRegions {
		if r.item != "" {
			doc.Each(r.item, func(item Document) {
				if text := collapseSpace(item.Content()); text != "" {
					parts = append(parts, text)
				}
			})
			continue
		}

		doc.Each(r.row, func(row Document) {
			label := collapseSpace(row.Text(r.label))
			value := collapseSpace(row.Text(r.value))
			if label == "" || value == "" {
				return
			}
			if r.allowList && !labels.Has(label) {
				return
			}
			parts = append(parts, label+": "+value)
		})
	}

	return strings.Join(parts, "\n")
}

// collapseSpace folds every whitespace run into one space and trims.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
