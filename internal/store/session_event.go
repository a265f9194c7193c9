package store

import (
	"context"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

func (r *eventRepo) AppendSessionEvent(ctx context.Context, data SessionEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	query, args := entsql.Dialect(dialect.SQLite).Insert(sessionEventsTbl).
		Columns("sequence", "timestamp", "session_id", "action", "level", "level_rule", "answer_quality", "detail").
		Values(seqNum, time.Now().UnixMilli(), data.SessionID, data.Action, data.Level,
			data.LevelRule, data.AnswerQuality, data.Detail).
		Query()

	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("save session event: %w", err)
	}
	return nil
}

type sessionEventRow struct {
	ID            int    `sql:"id"`
	Sequence      int64  `sql:"sequence"`
	Timestamp     int64  `sql:"timestamp"`
	SessionID     string `sql:"session_id"`
	Action        string `sql:"action"`
	Level         int    `sql:"level"`
	LevelRule     string `sql:"level_rule"`
	AnswerQuality string `sql:"answer_quality"`
	Detail        string `sql:"detail"`
}

func (r *eventRepo) QuerySessionEvents(ctx context.Context, sessionID string, opts QueryOpts) ([]SessionEventRecord, error) {
	t := entsql.Table(sessionEventsTbl)
	sel := entsql.Dialect(dialect.SQLite).Select(
		t.C("id"), t.C("sequence"), t.C("timestamp"), t.C("session_id"), t.C("action"),
		t.C("level"), t.C("level_rule"), t.C("answer_quality"), t.C("detail"),
	).From(t).
		Where(entsql.EQ(t.C("session_id"), sessionID)).
		OrderBy(t.C("sequence"))
	applyQueryOpts(sel, opts)

	query, args := sel.Query()
	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	defer rows.Close()

	var scanned []sessionEventRow
	if err := entsql.ScanSlice(rows, &scanned); err != nil {
		return nil, fmt.Errorf("scan session events: %w", err)
	}

	out := make([]SessionEventRecord, len(scanned))
	for i, row := range scanned {
		out[i] = SessionEventRecord{
			ID:        row.ID,
			Sequence:  row.Sequence,
			Timestamp: time.UnixMilli(row.Timestamp).UTC(),
			SessionEventData: SessionEventData{
				SessionID:     row.SessionID,
				Action:        row.Action,
				Level:         row.Level,
				LevelRule:     row.LevelRule,
				AnswerQuality: row.AnswerQuality,
				Detail:        row.Detail,
			},
		}
	}
	return out, nil
}
