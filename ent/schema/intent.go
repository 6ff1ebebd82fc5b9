package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Intent holds the schema definition for a proposed change under
// lifecycle control (spec.md §3). Mutable fields (status, retries) are
// updated in place; history lives in the event log, not here.
type Intent struct {
	ent.Schema
}

// Fields of the Intent.
func (Intent) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("tenant_id").
			Optional().
			Nillable(),
		field.String("plan_id").
			Optional().
			Nillable().
			Comment("groups dependent intents"),
		field.String("source"),
		field.String("target"),
		field.Enum("status").
			Values("READY", "VALIDATED", "QUEUED", "MERGED", "REJECTED", "BLOCKED").
			Default("READY"),
		field.Int("retries").
			Default(0).
			Min(0),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.String("created_by").
			Optional(),
		field.Enum("risk_level").
			Values("LOW", "MEDIUM", "HIGH", "CRITICAL").
			Default("LOW"),
		field.Int("priority").
			Default(3).
			Min(1).
			Max(5),
		field.String("origin_type").
			Optional(),
		field.JSON("semantic", map[string]interface{}{}),
		field.JSON("technical", map[string]interface{}{}),
		field.Strings("checks_required").
			Optional(),
		field.Strings("dependencies").
			Optional(),
	}
}

// Indexes of the Intent.
func (Intent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status"),
		index.Fields("tenant_id"),
		index.Fields("plan_id"),
		index.Fields("priority", "id"),
	}
}
