package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// CommitLink holds the schema for (intent_id, repo, sha, role) links.
type CommitLink struct {
	ent.Schema
}

func (CommitLink) Fields() []ent.Field {
	return []ent.Field{
		field.String("intent_id"),
		field.String("repo"),
		field.String("sha"),
		field.Enum("role").Values("head", "base", "merge"),
	}
}

func (CommitLink) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("intent_id", "repo", "sha", "role").Unique(),
	}
}
