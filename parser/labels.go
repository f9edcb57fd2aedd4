package parser

// LabelSet is an allow-list of attribute labels, matched exactly.
type LabelSet map[string]struct{}

// NewLabelSet builds a set from labels; duplicates collapse.
func NewLabelSet(labels ...string) LabelSet {
	set := make(LabelSet, len(labels))
	for _, label := range labels {
		set[label] = struct{}{}
	}
	return set
}

// Has reports whether label is allowed.
func (s LabelSet) Has(label string) bool {
	_, ok := s[label]
	return ok
}

// DefaultLabels returns the attribute labels kept from the product overview table.
func DefaultLabels() LabelSet {
	return NewLabelSet(
		"Brand",
		"Operating system",
		"screen size",
		"Human interface input",
		"Hard disk size",
		"RAM memory",
		"Installed RAM memory size",
		"Processor brand",
		"Graphics co-processor",
		"Graphics card description",
		"Graphics RAM type",
		"Graphics card interface",
		"Connectivity type",
		"Wireless communication standard",
		"Number of USB 2.0 ports",
		"Number of USB 3.0 ports",
		"Number of HDMI ports",
		"Number of audio-out ports",
		"Number of Ethernet ports",
		"Number of Microphone ports",
		"Number of VGA ports",
		"Number of USB 3.1 ports",
		"Memory storage capacity",
		"Model name",
		"Wireless carrier",
		"Color",
		"Connectivity technology",
		"Form factor",
		"Display size",
		"Display type",
		"Display resolution",
		"Other camera features",
		"Device interface - primary",
		"Other display features",
		"Included components",
		"Manufacturer",
		"Item model number",
		"Product dimensions",
		"Item dimensions L x W x H",
		"Batteries",
		"Item weight",
		"ASIN",
		"Customer reviews",
		"Best Sellers Rank",
		"Date First Available",
		"Is Discontinued By Manufacturer",
		"Impedance",
		"Earplacement",
		"Material",
		"Special features",
		"Mounting hardware",
		"Number of pieces",
		"Batteries included",
		"Batteries required",
		"Battery cell composition",
		"Battery Power Rating",
		"Manufacturer recommended age",
		"Language",
		"Mfg Recommended age",
		"Department",
		"Manufacturer Part Number",
		"Product Name",
		"Product Dimensions",
		"color",
		"style",
		"Base Type",
		"Voltage",
		"Wattage",
		"Item Package Quantity",
		"Number Of Pieces",
		"CPU speed",
		"Processor Count",
		"Computer Memory Type",
		"Flash Memory Size",
		"Hard Drive Interface",
	)
}
