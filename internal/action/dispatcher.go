package action

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soyeahso/gerald/internal/logging"
)

// Dispatcher routes action invocations to registered adapters, holds the
// pending delayed-action schedules, and fans out result items to the one
// session subscribed under each client name.
type Dispatcher struct {
	mu        sync.RWMutex
	adapters  []Adapter
	schedules []*schedule
	subs      map[string]SubscriberFunc

	tick time.Duration
	now  func() int64
	log  *logging.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTickInterval overrides the scheduler sweep interval.
func WithTickInterval(d time.Duration) Option {
	return func(dp *Dispatcher) { dp.tick = d }
}

// WithClock overrides the epoch-seconds clock.
func WithClock(now func() int64) Option {
	return func(dp *Dispatcher) { dp.now = now }
}

// NewDispatcher creates a dispatcher with no adapters registered.
func NewDispatcher(log *logging.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		subs: make(map[string]SubscriberFunc),
		tick: time.Second,
		now:  func() int64 { return time.Now().Unix() },
		log:  log.Sub("dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register appends an adapter. Registration order decides which adapter
// is tried first on invoke. Call before Initialise.
func (d *Dispatcher) Register(a Adapter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.adapters = append(d.adapters, a)
}

// Initialise initialises every registered adapter in parallel, then checks
// that no two adapters declare the same action id. Any adapter failure or
// duplicate id is fatal.
func (d *Dispatcher) Initialise(ctx context.Context) error {
	adapters := d.adapterList()

	g, ctx := errgroup.WithContext(ctx)
	for _, a := range adapters {
		a := a
		g.Go(func() error {
			return a.Initialise(ctx)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("initialising adapters: %w", err)
	}

	seen := make(map[string]bool)
	for _, a := range adapters {
		for _, act := range a.Actions() {
			if seen[act.ID] {
				return fmt.Errorf("duplicate action id %q declared by multiple adapters", act.ID)
			}
			seen[act.ID] = true
		}
	}

	d.log.Info().Int("adapters", len(adapters)).Int("actions", len(seen)).Msg("adapters initialised")
	return nil
}

// Actions returns the union of every adapter's commands, for building the
// conversation tool schema. Jobs are excluded.
func (d *Dispatcher) Actions() []Action {
	var commands []Action
	for _, a := range d.adapterList() {
		for _, act := range a.Actions() {
			if act.Kind == KindCommand {
				commands = append(commands, act)
			}
		}
	}
	return commands
}

// Invoke routes an invocation to the first registered adapter owning its
// action id. A miss across all adapters returns (nil, nil). Result items
// are delivered to the invoking client's subscription; schedule items are
// additionally queued for the scheduler, and repeated evaluate requests
// collapse into a single evaluate published after the batch.
func (d *Dispatcher) Invoke(ctx context.Context, clientName string, inv Invocation) (*Result, error) {
	var res *Result
	for _, a := range d.adapterList() {
		r, err := a.Invoke(ctx, inv)
		if err != nil {
			return nil, fmt.Errorf("action %s: %w", inv.ID, err)
		}
		if r != nil {
			res = r
			break
		}
	}

	if res == nil {
		d.log.Debug().Str("action", inv.ID).Msg("no adapter owns action")
		return nil, nil
	}

	if !res.Success {
		d.log.Warn().Str("action", inv.ID).Str("client", clientName).Msg("action reported failure")
		return res, nil
	}

	d.log.Debug().
		Str("action", inv.ID).
		Str("client", clientName).
		Int("items", len(res.Items)).
		Msg("action run")

	evaluate := false
	for _, item := range res.Items {
		switch it := item.(type) {
		case EvaluateItem:
			evaluate = true
			continue
		case ScheduleItem:
			d.addSchedule(clientName, it)
		}
		d.publish(clientName, item)
	}

	if evaluate {
		d.publish(clientName, EvaluateItem{})
	}

	return res, nil
}

func (d *Dispatcher) adapterList() []Adapter {
	d.mu.RLock()
	defer d.mu.RUnlock()
	adapters := make([]Adapter, len(d.adapters))
	copy(adapters, d.adapters)
	return adapters
}
