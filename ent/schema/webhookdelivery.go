package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
)

// WebhookDelivery holds the schema for delivery-id dedup rows with TTL.
type WebhookDelivery struct {
	ent.Schema
}

func (WebhookDelivery) Fields() []ent.Field {
	return []ent.Field{
		field.String("delivery_id").Unique().Immutable(),
		field.Time("seen_at"),
		field.Time("expires_at"),
	}
}
