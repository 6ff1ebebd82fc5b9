package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// RiskPolicy holds the schema for per-tenant risk-gate thresholds (spec.md §4.6).
type RiskPolicy struct {
	ent.Schema
}

func (RiskPolicy) Fields() []ent.Field {
	return []ent.Field{
		field.String("tenant_id").Optional().Nillable(),
		field.JSON("data", map[string]interface{}{}),
		field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now),
	}
}

func (RiskPolicy) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id").Unique(),
	}
}
