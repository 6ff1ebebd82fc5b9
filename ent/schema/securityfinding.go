package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// SecurityFinding holds the schema for normalized scanner output (spec.md §3).
type SecurityFinding struct {
	ent.Schema
}

func (SecurityFinding) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").Unique().Immutable(),
		field.String("scanner"),
		field.Enum("category").Values("sast", "sca", "secrets"),
		field.Enum("severity").Values("critical", "high", "medium", "low", "info"),
		field.String("file"),
		field.Int("line"),
		field.String("rule"),
		field.Text("evidence").Optional(),
		field.Float("confidence").Default(0),
		field.String("intent_id").Optional().Nillable(),
		field.String("tenant_id").Optional().Nillable(),
	}
}

func (SecurityFinding) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("intent_id"),
		index.Fields("severity"),
	}
}
