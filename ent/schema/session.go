package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Session is one assessment conversation. The full state is stored as a
// JSON document; the other columns exist for listing and filtering.
type Session struct {
	ent.Schema
}

func (Session) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			MaxLen(64).
			NotEmpty().
			Immutable(),
		field.String("title").
			Default(""),
		field.Enum("status").
			Values("active", "completed", "abandoned"),
		field.Int("current_level").
			Range(1, 5),
		field.Int("message_count").
			Default(0),
		field.Int64("version").
			Comment("Optimistic concurrency counter"),
		field.Bytes("state").
			Comment("JSON encoded session state"),
		field.Int64("created_at").
			Immutable(),
		field.Int64("updated_at"),
	}
}

func (Session) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status", "updated_at"),
	}
}
