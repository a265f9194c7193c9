package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// SessionEvent records session lifecycle and level changes.
type SessionEvent struct {
	ent.Schema
}

func (SessionEvent) Mixin() []ent.Mixin {
	return []ent.Mixin{EventMixin{}}
}

func (SessionEvent) Fields() []ent.Field {
	return []ent.Field{
		field.String("session_id").
			NotEmpty().
			Comment("Session the event belongs to"),
		field.String("action").
			NotEmpty().
			Comment("start, turn, end or abandon"),
		field.Int("level").
			Default(0).
			Comment("Level after the event"),
		field.String("level_rule").
			Default("").
			Comment("Rule that moved the level, if any"),
		field.String("answer_quality").
			Default(""),
		field.String("detail").
			Default(""),
	}
}

func (SessionEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("session_id", "sequence"),
	}
}
