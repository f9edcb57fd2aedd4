// Package tracker merges freshly scraped products into their stored history
// and raises notifications for subscribers.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/aluiziolira/go-price-tracker/models"
	"github.com/aluiziolira/go-price-tracker/notify"
	"github.com/aluiziolira/go-price-tracker/store"
	"github.com/shopspring/decimal"
)

// Store is the persistence the tracker needs. Load must return
// store.ErrNotFound for unknown URLs.
type Store interface {
	Load(ctx context.Context, url string) (*models.Product, error)
	Save(ctx context.Context, product *models.Product) error
	Subscribers(ctx context.Context, url string) ([]string, error)
	AddSubscriber(ctx context.Context, url, email string) (bool, error)
}

// Tracker keeps stored snapshots current.
type Tracker struct {
	store      Store
	dispatcher notify.Dispatcher
	classifier notify.Classifier
	now        func() time.Time
}

// New builds a tracker. A nil dispatcher logs notifications through slog.
func New(s Store, dispatcher notify.Dispatcher, classifier notify.Classifier) *Tracker {
	if dispatcher == nil {
		dispatcher = notify.LogDispatcher{}
	}
	return &Tracker{
		store:      s,
		dispatcher: dispatcher,
		classifier: classifier,
		now:        time.Now,
	}
}

// Track stores scraped and returns the notification it raised. The first
// sighting of a URL is stored with a one-item history and raises nothing.
func (t *Tracker) Track(ctx context.Context, scraped *models.Product) (notify.Kind, error) {
	if scraped == nil || scraped.URL == "" {
		return notify.KindNone, fmt.Errorf("track: product without url")
	}

	stored, err := t.store.Load(ctx, scraped.URL)
	if errors.Is(err, store.ErrNotFound) {
		fresh := t.merge(scraped, nil)
		if err := t.store.Save(ctx, fresh); err != nil {
			return notify.KindNone, fmt.Errorf("track %s: %w", scraped.URL, err)
		}
		slog.Debug("tracking new product", slog.String("url", scraped.URL))
		return notify.KindNone, nil
	}
	if err != nil {
		return notify.KindNone, fmt.Errorf("track %s: %w", scraped.URL, err)
	}

	kind := t.classifier.Classify(scraped, stored)
	updated := t.merge(scraped, stored.PriceHistory)
	if err := t.store.Save(ctx, updated); err != nil {
		return notify.KindNone, fmt.Errorf("track %s: %w", scraped.URL, err)
	}

	if kind == notify.KindNone {
		return kind, nil
	}
	if err := t.notify(ctx, kind, updated); err != nil {
		return kind, fmt.Errorf("track %s: %w", scraped.URL, err)
	}
	return kind, nil
}

// Subscribe adds email to a tracked product and sends it a welcome
// notification. added is false when the address was already subscribed.
func (t *Tracker) Subscribe(ctx context.Context, url, email string) (bool, error) {
	product, err := t.store.Load(ctx, url)
	if err != nil {
		return false, fmt.Errorf("subscribe to %s: %w", url, err)
	}

	added, err := t.store.AddSubscriber(ctx, url, email)
	if err != nil {
		return false, fmt.Errorf("subscribe to %s: %w", url, err)
	}
	if !added {
		return false, nil
	}

	err = t.dispatcher.Dispatch(ctx, notify.Notification{
		Kind:       notify.KindWelcome,
		Product:    product,
		Recipients: []string{email},
	})
	if err != nil {
		return true, fmt.Errorf("welcome %s: %w", email, err)
	}
	return true, nil
}

func (t *Tracker) notify(ctx context.Context, kind notify.Kind, product *models.Product) error {
	recipients, err := t.store.Subscribers(ctx, product.URL)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		slog.Debug("no subscribers for notification",
			slog.String("kind", kind.String()),
			slog.String("url", product.URL),
		)
		return nil
	}
	return t.dispatcher.Dispatch(ctx, notify.Notification{
		Kind:       kind,
		Product:    product,
		Recipients: recipients,
	})
}

// merge returns a copy of scraped carrying history plus the scraped price,
// with the aggregates recomputed from that history.
func (t *Tracker) merge(scraped *models.Product, history models.PriceHistory) *models.Product {
	updated := *scraped
	updated.PriceHistory = slices.Clone(history)
	if updated.PriceHistory == nil {
		updated.PriceHistory = models.PriceHistory{}
	}

	if scraped.CurrentPrice.Valid {
		date := scraped.ScrapedAt
		if date.IsZero() {
			date = t.now()
		}
		updated.PriceHistory = append(updated.PriceHistory, models.PriceHistoryItem{
			Price: scraped.CurrentPrice.Decimal,
			Date:  date,
		})
	}

	if lowest, ok := updated.PriceHistory.Lowest(); ok {
		updated.LowestPrice = decimal.NewNullDecimal(lowest)
	}
	if highest, ok := updated.PriceHistory.Highest(); ok {
		updated.HighestPrice = decimal.NewNullDecimal(highest)
	}
	if average, ok := updated.PriceHistory.Average(); ok {
		updated.AveragePrice = decimal.NewNullDecimal(average)
	}
	return &updated
}
