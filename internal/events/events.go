// Package events carries purchase and ad change notifications to clients.
//
// Consumers must apply events per entity using Version (last write wins);
// no global ordering is guaranteed across entities.
package events

import (
	"context"
	"log/slog"
	"time"
)

const (
	TypePurchaseCompleted = "purchase.completed"
	TypePurchaseFailed    = "purchase.failed"
	TypeAdCreated         = "ad.created"
	TypeAdUpdated         = "ad.updated"
	TypeAdDeleted         = "ad.deleted"
)

type Event struct {
	Type     string      `json:"type"`
	Entity   string      `json:"entity"` // purchase | ad
	EntityID string      `json:"entityId"`
	BoxIndex int         `json:"boxIndex"`
	UserID   string      `json:"userId"`
	Version  int64       `json:"version"`
	Data     interface{} `json:"data,omitempty"`
}

// New stamps the event with a version taken from the wall clock.
func New(eventType, entity, entityID string, boxIndex int, userID string, data interface{}) Event {
	return Event{
		Type:     eventType,
		Entity:   entity,
		EntityID: entityID,
		BoxIndex: boxIndex,
		UserID:   userID,
		Version:  time.Now().UnixNano(),
		Data:     data,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Multi publishes to every publisher and logs individual failures.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) error {
	var firstErr error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			slog.WarnContext(ctx, "event publish failed", "type", event.Type, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
