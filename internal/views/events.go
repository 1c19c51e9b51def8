package views

import (
	"context"
	"log/slog"

	"github.com/claude/fitconsole/internal/docstore"
	"github.com/claude/fitconsole/internal/models"
)

// Events is a live list of backend events.
type Events struct {
	base
	store docstore.Store

	events      []models.Event
	loaded      bool
	unsubscribe func()
	onChange    func(EventsState)
}

// EventsState is the rendered event list, newest first.
type EventsState struct {
	Loaded bool           `json:"loaded"`
	Events []models.Event `json:"events"`
}

func NewEvents(store docstore.Store, log *slog.Logger) *Events {
	return &Events{base: newBase("events", log), store: store}
}

// OnChange registers fn to run after every snapshot. Set it before Load.
func (e *Events) OnChange(fn func(EventsState)) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

// Load subscribes to the events collection and waits for the first snapshot.
func (e *Events) Load(ctx context.Context) error {
	fetch(&e.base, "subscribe", func(ctx context.Context) (func(), error) {
		return e.store.Collection(docstore.EventsCollection).OnSnapshot(ctx, e.apply)
	}, func(unsubscribe func()) { e.unsubscribe = unsubscribe })
	return e.wait(ctx)
}

func (e *Events) apply(snap docstore.Snapshot) {
	events := docstore.Events(snap)

	e.mu.Lock()
	e.events = events
	e.loaded = true
	fn := e.onChange
	st := e.stateLocked()
	e.mu.Unlock()

	if fn != nil {
		fn(st)
	}
}

// Close ends the subscription and cancels a pending one.
func (e *Events) Close() {
	e.mu.Lock()
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	e.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	e.base.Close()
}

func (e *Events) State() EventsState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Events) stateLocked() EventsState {
	events := e.events
	if events == nil {
		events = []models.Event{}
	}
	return EventsState{Loaded: e.loaded, Events: events}
}
