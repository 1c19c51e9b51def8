// Package docstore is a realtime document store: subscribers to a collection get
// the full snapshot when they subscribe and again after every change.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/claude/fitconsole/internal/metrics"
	"github.com/claude/fitconsole/internal/models"
)

// EventsCollection holds the backend's event log.
const EventsCollection = "events"

// Document is one stored JSON document.
type Document struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Snapshot is the full contents of a collection, newest first.
type Snapshot struct {
	Collection string
	Docs       []Document
}

// Store opens collections.
type Store interface {
	Collection(name string) Collection
	Close()
}

// Collection is a named set of documents.
type Collection interface {
	// OnSnapshot calls fn with the current snapshot, then again after every
	// change until ctx ends or unsubscribe is called. Calls to fn are serialized.
	OnSnapshot(ctx context.Context, fn func(Snapshot)) (unsubscribe func(), err error)
	// Put creates or replaces a document. An empty id gets a generated one.
	Put(ctx context.Context, id string, data any) (string, error)
	Delete(ctx context.Context, id string) error
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Events decodes a snapshot of the events collection. Documents that do not
// decode are skipped.
func Events(s Snapshot) []models.Event {
	events := make([]models.Event, 0, len(s.Docs))
	for _, d := range s.Docs {
		var ev models.Event
		if err := json.Unmarshal(d.Data, &ev); err != nil {
			continue
		}
		if ev.ID == "" {
			ev.ID = d.ID
		}
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = d.CreatedAt
		}
		events = append(events, ev)
	}
	return events
}

func encode(data any) (json.RawMessage, error) {
	if raw, ok := data.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return b, nil
}

func recordSnapshot(collection string) {
	metrics.DocstoreSnapshots.WithLabelValues(collection).Inc()
}
