package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
)

// ChainState holds the schema for the audit hash chain's running head
// (spec.md §4.3). Typically one row keyed "main".
type ChainState struct {
	ent.Schema
}

func (ChainState) Fields() []ent.Field {
	return []ent.Field{
		field.String("chain_id").Unique().Immutable(),
		field.String("last_hash"),
		field.Int("event_count"),
		field.Time("updated_at"),
	}
}
