package models

import "time"

// Product event types published after a successful mutation.
const (
	EventProductCreated = "product.created"
	EventProductUpdated = "product.updated"
	EventProductDeleted = "product.deleted"
)

// ProductEvent describes a change to the catalog.
type ProductEvent struct {
	Type       string    `json:"type"`
	ProductID  uint      `json:"productId"`
	Product    *Product  `json:"produto,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewProductEvent builds an event for the given product. Delete events carry no payload.
func NewProductEvent(eventType string, p *Product) ProductEvent {
	e := ProductEvent{Type: eventType, ProductID: p.ID, OccurredAt: time.Now().UTC()}
	if eventType != EventProductDeleted {
		cp := *p
		e.Product = &cp
	}
	return e
}
