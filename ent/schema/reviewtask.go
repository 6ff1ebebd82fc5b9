package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ReviewTask holds the schema for a human-review obligation (spec.md §4.9).
type ReviewTask struct {
	ent.Schema
}

func (ReviewTask) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").Unique().Immutable(),
		field.String("intent_id"),
		field.Enum("status").
			Values("pending", "assigned", "completed", "cancelled", "escalated").
			Default("pending"),
		field.String("reviewer").Optional().Nillable(),
		field.Int("priority").Default(3),
		field.Time("created_at").Default(time.Now).Immutable(),
		field.Time("sla_deadline"),
		field.String("trigger"),
		field.String("resolution").Optional().Nillable(),
		field.Text("notes").Optional().Nillable(),
	}
}

func (ReviewTask) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("intent_id"),
		index.Fields("status", "sla_deadline"),
	}
}
