package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Embedding holds the schema for (intent_id, model) -> semantic vector.
type Embedding struct {
	ent.Schema
}

func (Embedding) Fields() []ent.Field {
	return []ent.Field{
		field.String("intent_id"),
		field.String("model"),
		field.Int("dimension"),
		field.String("checksum").Comment("SHA-256 of the canonical text"),
		field.Bytes("vector").Comment("serialized float64 array"),
		field.Time("generated_at").Default(time.Now),
	}
}

func (Embedding) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("intent_id", "model").Unique(),
	}
}
