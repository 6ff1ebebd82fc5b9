package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// AgentPolicy holds the schema for per-(agent_id, tenant_id) authorization
// limits (spec.md §3, §4.8).
type AgentPolicy struct {
	ent.Schema
}

func (AgentPolicy) Fields() []ent.Field {
	return []ent.Field{
		field.String("agent_id"),
		field.String("tenant_id").Optional().Nillable(),
		field.JSON("data", map[string]interface{}{}).
			Comment("full AgentPolicy blob; see pkg/models.AgentPolicy"),
		field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now),
	}
}

func (AgentPolicy) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id", "agent_id").Unique(),
	}
}
