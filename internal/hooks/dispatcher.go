// Package hooks is a typed dispatch table for settings lifecycle events.
// Listeners run in ascending priority; listeners with equal priority run in registration
// order.
package hooks

import (
	"captchaguard/internal/types"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
)

type Event string

const (
	// SettingsLoaded fires once at bootstrap with the persisted record.
	SettingsLoaded Event = "settings_loaded"
	// SettingsUpdated fires after a record was written successfully.
	SettingsUpdated Event = "settings_updated"
	// SettingsReset fires after the record was deleted and defaults written back.
	SettingsReset Event = "settings_reset"
)

// Default priorities of the built-in listeners.
const (
	PriorityClient       = 10
	PriorityIntegrations = 20
	PriorityNotify       = 100
)

type Listener interface {
	Handle(ctx context.Context, ev Event, s types.Settings) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, ev Event, s types.Settings) error

func (f ListenerFunc) Handle(ctx context.Context, ev Event, s types.Settings) error {
	return f(ctx, ev, s)
}

type registration struct {
	priority int
	seq      int
	name     string
	listener Listener
}

type Dispatcher struct {
	mu    sync.RWMutex
	seq   int
	table map[Event][]registration
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{table: make(map[Event][]registration)}
}

// Register adds a listener for ev. name only shows up in logs and errors.
func (d *Dispatcher) Register(ev Event, priority int, name string, l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	regs := append(d.table[ev], registration{priority: priority, seq: d.seq, name: name, listener: l})
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].priority != regs[j].priority {
			return regs[i].priority < regs[j].priority
		}
		return regs[i].seq < regs[j].seq
	})
	d.table[ev] = regs
}

// RegisterAll registers l for every lifecycle event.
func (d *Dispatcher) RegisterAll(priority int, name string, l Listener) {
	for _, ev := range []Event{SettingsLoaded, SettingsUpdated, SettingsReset} {
		d.Register(ev, priority, name, l)
	}
}

// Dispatch runs every listener of ev. A failing listener does not stop the others; all
// failures are joined into the returned error.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event, s types.Settings) error {
	d.mu.RLock()
	regs := append([]registration(nil), d.table[ev]...)
	d.mu.RUnlock()

	var errs []error
	for _, r := range regs {
		if err := r.listener.Handle(ctx, ev, s.Clone()); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"event":    ev,
				"listener": r.name,
			}).Error("Settings listener failed")
			errs = append(errs, fmt.Errorf("%s: %w", r.name, err))
		}
	}
	return errors.Join(errs...)
}

// Listeners returns the registered listener names for ev in dispatch order.
func (d *Dispatcher) Listeners(ev Event) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.table[ev]))
	for _, r := range d.table[ev] {
		out = append(out, r.name)
	}
	return out
}
