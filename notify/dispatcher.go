package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aluiziolira/go-price-tracker/models"
)

// Notification is one alert for the subscribers of a product.
type Notification struct {
	Kind       Kind
	Product    *models.Product
	Recipients []string
}

// Dispatcher delivers notifications, e.g. by email.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// Subject returns a one-line summary for an alert about title.
func Subject(kind Kind, title string) string {
	short := title
	if runes := []rune(title); len(runes) > 40 {
		short = string(runes[:40]) + "..."
	}
	switch kind {
	case KindWelcome:
		return fmt.Sprintf("Welcome to price tracking for %s", short)
	case KindChangeOfStock:
		return fmt.Sprintf("%s is back in stock", short)
	case KindLowestPrice:
		return fmt.Sprintf("Lowest price alert for %s", short)
	case KindThresholdMet:
		return fmt.Sprintf("Discount alert for %s", short)
	default:
		return ""
	}
}

// LogDispatcher records notifications with slog instead of sending them.
type LogDispatcher struct {
	Logger *slog.Logger
}

// Dispatch logs n.
func (d LogDispatcher) Dispatch(ctx context.Context, n Notification) error {
	if n.Product == nil {
		return fmt.Errorf("notification %s has no product", n.Kind)
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification",
		slog.String("kind", n.Kind.String()),
		slog.String("subject", Subject(n.Kind, n.Product.Title)),
		slog.String("url", n.Product.URL),
		slog.Int("recipients", len(n.Recipients)),
	)
	return nil
}
