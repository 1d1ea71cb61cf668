package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// User is a learner account.
type User struct {
	ent.Schema
}

func (User) Annotations() []schema.Annotation {
	return []schema.Annotation{entsql.Annotation{Table: "users"}}
}

func (User) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("user_id").
			Immutable().
			Comment("UUID v4"),
		field.String("username"),
		field.String("roles").
			Default("[]").
			Comment("JSON array of role names"),
		field.String("email").
			Unique().
			Comment("Lower-cased login identity"),
		field.Enum("user_level").
			Values("unknown", "beginner", "intermediate", "advanced").
			Default("unknown"),
		field.Int64("created_at").
			Immutable().
			Comment("Unix microseconds"),
	}
}

func (User) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("messages", Message.Type),
		edge.To("analysis", UserAnalysis.Type).Unique(),
	}
}
