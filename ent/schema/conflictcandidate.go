package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ConflictCandidate holds the schema for a pair of intents whose semantic
// similarity crossed the configured threshold (spec.md §4.11).
type ConflictCandidate struct {
	ent.Schema
}

func (ConflictCandidate) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").Unique().Immutable(),
		field.String("intent_a"),
		field.String("intent_b"),
		field.Float("similarity"),
		field.Float("scope_overlap").Default(0),
		field.Bool("target_overlap").Default(false),
		field.Float("combined_score"),
		field.Time("detected_at"),
	}
}

func (ConflictCandidate) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("intent_a"),
		index.Fields("intent_b"),
	}
}
