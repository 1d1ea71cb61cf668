package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// UserAnalysis holds the learner's proficiency record, one row per user.
type UserAnalysis struct {
	ent.Schema
}

func (UserAnalysis) Annotations() []schema.Annotation {
	return []schema.Annotation{entsql.Annotation{Table: "user_analysis"}}
}

func (UserAnalysis) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("user_id"),
		field.Int64("last_analysis_at").
			Optional().
			Nillable(),
		field.String("current_level").
			Default("unknown"),
		field.String("previous_level").
			Default("unknown"),
		field.Text("recommendation").
			Default(""),
		field.Float("confidence").
			Default(0),
		field.Text("topics").
			Default("{}").
			Comment("JSON object of topic to subtopics"),
	}
}

func (UserAnalysis) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("user", User.Type).
			Ref("analysis").
			Unique(),
	}
}
