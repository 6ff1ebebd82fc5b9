package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ComplianceThresholds holds the schema for per-tenant SLO targets (spec.md §4.10).
type ComplianceThresholds struct {
	ent.Schema
}

func (ComplianceThresholds) Fields() []ent.Field {
	return []ent.Field{
		field.String("tenant_id").Optional().Nillable(),
		field.JSON("data", map[string]interface{}{}),
		field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now),
	}
}

func (ComplianceThresholds) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id").Unique(),
	}
}
