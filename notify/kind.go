// Package notify decides which alert a product change should raise and hands
// alerts to a delivery collaborator.
package notify

// Kind is the closed set of alerts. The zero value means no alert.
type Kind int

const (
	KindNone Kind = iota
	KindWelcome
	KindChangeOfStock
	KindLowestPrice
	KindThresholdMet
)

func (k Kind) String() string {
	switch k {
	case KindWelcome:
		return "WELCOME"
	case KindChangeOfStock:
		return "CHANGE_OF_STOCK"
	case KindLowestPrice:
		return "LOWEST_PRICE"
	case KindThresholdMet:
		return "THRESHOLD_MET"
	default:
		return ""
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
