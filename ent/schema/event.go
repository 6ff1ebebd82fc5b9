package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Event holds the schema definition for the append-only event log entity.
//
// This schema documents the logical "events" table (spec.md §6). The
// running Store does not drive this through the generated ent client —
// see DESIGN.md for why — but the shape here is authoritative for the
// migrations in pkg/database/migrations.
type Event struct {
	ent.Schema
}

// Fields of the Event.
func (Event) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("event_type").
			Comment("dotted event type, e.g. intent.created"),
		field.Time("timestamp").
			Default(time.Now).
			Immutable(),
		field.String("trace_id").
			Comment("correlates every event of one lifecycle pass"),
		field.String("intent_id").
			Optional().
			Nillable(),
		field.String("agent_id").
			Optional().
			Nillable(),
		field.String("tenant_id").
			Optional().
			Nillable(),
		field.JSON("payload", map[string]interface{}{}),
		field.JSON("evidence", map[string]interface{}{}).
			Optional(),
	}
}

// Indexes of the Event.
func (Event) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("event_type"),
		index.Fields("intent_id"),
		index.Fields("trace_id"),
		index.Fields("tenant_id", "timestamp"),
		index.Fields("timestamp"),
	}
}
