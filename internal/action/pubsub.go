package action

import (
	"errors"
	"fmt"
)

// ErrDuplicateSubscription is returned when a client name is already
// subscribed. Two sessions identifying under the same name is a caller
// bug, so the second attempt must fail loudly instead of silently
// replacing the first.
var ErrDuplicateSubscription = errors.New("client name already subscribed")

// SubscriberFunc receives result items produced for a client outside the
// request that triggered them (scheduled jobs, asynchronous actions).
type SubscriberFunc func(item ResultItem) error

// Subscribe registers the delivery callback for a client name.
func (d *Dispatcher) Subscribe(clientName string, fn SubscriberFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subs[clientName]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSubscription, clientName)
	}
	d.subs[clientName] = fn
	d.log.Debug().Str("client", clientName).Msg("subscribed")
	return nil
}

// Unsubscribe removes a client's subscription. Unknown names are a no-op.
func (d *Dispatcher) Unsubscribe(clientName string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.subs, clientName)
}

// publish delivers an item to the sole subscription for a client name.
// Delivery is synchronous to preserve ordering, but a callback failure is
// logged and never propagated to the dispatching sweep.
func (d *Dispatcher) publish(clientName string, item ResultItem) {
	d.mu.RLock()
	fn, ok := d.subs[clientName]
	d.mu.RUnlock()
	if !ok {
		return
	}

	if err := fn(item); err != nil {
		d.log.Error().Err(err).
			Str("client", clientName).
			Str("item", fmt.Sprintf("%T", item)).
			Msg("subscriber callback failed")
	}
}
