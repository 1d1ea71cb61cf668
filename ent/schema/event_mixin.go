package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"entgo.io/ent/schema/mixin"
)

// EventMixin adds ordering and attribution to audit rows. Sequence is
// global across event tables; user_id is empty for calls made outside a
// learner's turn, such as document preprocessing from the CLI.
type EventMixin struct {
	mixin.Schema
}

func (EventMixin) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("sequence").
			Immutable(),
		field.Int64("timestamp").
			Immutable().
			Comment("unix microseconds, UTC"),
		field.String("user_id").
			Default("").
			Immutable().
			Comment("learner whose turn triggered the event"),
	}
}

func (EventMixin) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("sequence").Unique(),
		index.Fields("user_id", "timestamp"),
	}
}
