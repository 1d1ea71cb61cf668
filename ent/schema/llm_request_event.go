package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// LLMRequestEvent is the audit row for one provider call made on behalf of
// a learner. Prompts and replies are stored verbatim so `dsatutor llm view`
// can replay what the tutor saw.
type LLMRequestEvent struct {
	ent.Schema
}

func (LLMRequestEvent) Annotations() []schema.Annotation {
	return []schema.Annotation{entsql.Annotation{Table: "llm_request_events"}}
}

func (LLMRequestEvent) Mixin() []ent.Mixin {
	return []ent.Mixin{EventMixin{}}
}

func (LLMRequestEvent) Fields() []ent.Field {
	return []ent.Field{
		// Routing.
		field.String("provider"),
		field.String("model").
			Comment("Model that answered, as reported by the provider"),
		field.String("purpose").
			Comment("Tutor stage, e.g. classify, grade, answer, analysis"),
		field.String("schema_name").
			Default("").
			Comment("Structured-output schema, empty for free text"),

		// Cost.
		field.Int("input_tokens").Default(0).NonNegative(),
		field.Int("output_tokens").Default(0).NonNegative(),
		field.Int64("latency_ms").Default(0).NonNegative(),

		// Outcome.
		field.Bool("success"),
		field.String("stop_reason").
			Default("").
			Comment("end, max_tokens or refusal"),
		field.String("error_message").Default(""),

		// Transcript.
		field.Text("request_body").Default(""),
		field.Text("response_body").Default(""),
	}
}

func (LLMRequestEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("purpose", "success"),
		index.Fields("model"),
	}
}
