package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
)

// QueueLock holds the schema for the table-based advisory lock (spec.md §5).
type QueueLock struct {
	ent.Schema
}

func (QueueLock) Fields() []ent.Field {
	return []ent.Field{
		field.String("lock_name").Unique().Immutable(),
		field.String("holder_pid"),
		field.Time("acquired_at"),
		field.Time("expires_at"),
	}
}
