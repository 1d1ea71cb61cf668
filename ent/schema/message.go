package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Message is one persisted conversation message. A turn writes a learner
// message and a tutor message together.
type Message struct {
	ent.Schema
}

func (Message) Annotations() []schema.Annotation {
	return []schema.Annotation{entsql.Annotation{Table: "messages"}}
}

func (Message) Fields() []ent.Field {
	return []ent.Field{
		field.String("user_id"),
		field.String("chat_id"),
		field.Enum("role").
			Values("user", "assistant"),
		field.Text("content"),
		field.Text("parts").
			Optional().
			Comment("JSON content parts, present when the message carried images"),
		field.Int64("timestamp").
			Comment("Unix microseconds"),
	}
}

func (Message) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("user", User.Type).
			Ref("messages").
			Field("user_id").
			Unique().
			Required(),
	}
}

func (Message) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "chat_id", "timestamp"),
	}
}
