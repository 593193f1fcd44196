package feed

import (
	"context"

	"github.com/ajitpratap0/onix/pkg/errors"
)

// Consumer receives sealed sections. Update is called synchronously; the
// notification must not be retained after Update returns. A returned error
// is a per-record failure and does not stop the parse.
//
// Consumers are compared by identity in Detach, so implementations should
// be pointer types.
type Consumer interface {
	Update(ctx context.Context, n Notification) error
}

// Bus is an ordered registry of consumers.
type Bus struct {
	consumers []Consumer
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Attach appends c to the registry. Attaching the same consumer twice
// results in two deliveries per notification.
func (b *Bus) Attach(c Consumer) *Bus {
	b.consumers = append(b.consumers, c)
	return b
}

// Detach removes every registration of c. It is a no-op if c is not attached.
func (b *Bus) Detach(c Consumer) *Bus {
	kept := b.consumers[:0:0]
	for _, existing := range b.consumers {
		if existing != c {
			kept = append(kept, existing)
		}
	}
	b.consumers = kept
	return b
}

// Len returns the number of registrations.
func (b *Bus) Len() int { return len(b.consumers) }

// Notify delivers n to every consumer in attachment order. The registry is
// snapshotted first, so Attach/Detach from inside a consumer only affects
// later notifications. Every consumer is called; their errors are joined.
func (b *Bus) Notify(ctx context.Context, n Notification) error {
	snapshot := make([]Consumer, len(b.consumers))
	copy(snapshot, b.consumers)

	var errs []error
	for _, c := range snapshot {
		if err := c.Update(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
