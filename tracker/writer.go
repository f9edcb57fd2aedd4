package tracker

import (
	"context"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-price-tracker/models"
	"github.com/aluiziolira/go-price-tracker/notify"
)

// Writer feeds pipeline batches into a Tracker.
type Writer struct {
	ctx     context.Context
	tracker *Tracker

	mu      sync.Mutex
	tracked int
	raised  map[notify.Kind]int
}

// NewWriter returns a Writer whose store calls use ctx.
func NewWriter(ctx context.Context, t *Tracker) *Writer {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Writer{
		ctx:     ctx,
		tracker: t,
		raised:  make(map[notify.Kind]int),
	}
}

// Write tracks each product in order and stops at the first failure.
func (w *Writer) Write(products []*models.Product) error {
	for _, product := range products {
		kind, err := w.tracker.Track(w.ctx, product)
		if err != nil {
			return err
		}
		w.mu.Lock()
		w.tracked++
		if kind != notify.KindNone {
			w.raised[kind]++
		}
		w.mu.Unlock()
	}
	return nil
}

// Close is a no-op; the store is owned by the caller.
func (w *Writer) Close() error {
	return nil
}

// Validate fails when nothing was tracked.
func (w *Writer) Validate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tracked == 0 {
		return fmt.Errorf("no products tracked")
	}
	return nil
}

// Tracked returns how many products were stored.
func (w *Writer) Tracked() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tracked
}

// Raised returns notification counts by kind label.
func (w *Writer) Raised() map[string]int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]int, len(w.raised))
	for k, v := range w.raised {
		out[k.String()] = v
	}
	return out
}
