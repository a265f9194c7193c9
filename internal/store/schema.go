package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table and column names shared by the repositories.
const (
	sessionsTable    = "sessions"
	sessionEventsTbl = "session_events"
	llmEventsTable   = "llm_request_events"
)

var (
	sessionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 64},
		{Name: "title", Type: field.TypeString, Default: ""},
		{Name: "status", Type: field.TypeString, Size: 16},
		{Name: "current_level", Type: field.TypeInt},
		{Name: "message_count", Type: field.TypeInt, Default: 0},
		{Name: "version", Type: field.TypeInt64},
		{Name: "state", Type: field.TypeBytes},
		{Name: "created_at", Type: field.TypeInt64},
		{Name: "updated_at", Type: field.TypeInt64},
	}
	sessionsSchema = &schema.Table{
		Name:       sessionsTable,
		Columns:    sessionsColumns,
		PrimaryKey: []*schema.Column{sessionsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "session_status_updated_at", Columns: []*schema.Column{sessionsColumns[2], sessionsColumns[8]}},
		},
	}

	sessionEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeInt64},
		{Name: "session_id", Type: field.TypeString, Size: 64},
		{Name: "action", Type: field.TypeString, Size: 16},
		{Name: "level", Type: field.TypeInt, Default: 0},
		{Name: "level_rule", Type: field.TypeString, Default: ""},
		{Name: "answer_quality", Type: field.TypeString, Default: ""},
		{Name: "detail", Type: field.TypeString, Default: ""},
	}
	sessionEventsSchema = &schema.Table{
		Name:       sessionEventsTbl,
		Columns:    sessionEventsColumns,
		PrimaryKey: []*schema.Column{sessionEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "sessionevent_session_id_sequence", Columns: []*schema.Column{sessionEventsColumns[3], sessionEventsColumns[1]}},
		},
	}

	llmEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeInt64},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "input_tokens", Type: field.TypeInt},
		{Name: "output_tokens", Type: field.TypeInt},
		{Name: "latency_ms", Type: field.TypeInt64},
		{Name: "success", Type: field.TypeBool},
		{Name: "error_message", Type: field.TypeString, Default: ""},
		{Name: "request_body", Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: "response_body", Type: field.TypeString, Size: 2147483647, Default: ""},
	}
	llmEventsSchema = &schema.Table{
		Name:       llmEventsTable,
		Columns:    llmEventsColumns,
		PrimaryKey: []*schema.Column{llmEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "llmrequestevent_purpose", Columns: []*schema.Column{llmEventsColumns[5]}},
		},
	}

	// tables lists every ent-managed table. global_sequence is created by
	// the sequence counter itself.
	tables = []*schema.Table{
		sessionsSchema,
		sessionEventsSchema,
		llmEventsSchema,
	}
)
