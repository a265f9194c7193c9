package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/socratic/internal/assessment"
)

// SessionRepo persists session states as one row per session: indexed
// summary columns next to the full state document.
type SessionRepo struct {
	drv *entsql.Driver
}

func (r *SessionRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

// Load returns the stored state for id, or ErrNotFound.
func (r *SessionRepo) Load(ctx context.Context, id string) (*assessment.SessionState, error) {
	t := entsql.Table(sessionsTable)
	query, args := r.builder().Select(t.C("state")).
		From(t).
		Where(entsql.EQ(t.C("id"), id)).
		Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query session: %w", err)
		}
		return nil, ErrNotFound
	}

	var doc []byte
	if err := rows.Scan(&doc); err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	var state assessment.SessionState
	if err := json.Unmarshal(doc, &state); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &state, nil
}

// Save writes state if the stored version still equals state.Version and
// bumps the version on success. A state with version 0 is inserted.
func (r *SessionRepo) Save(ctx context.Context, state *assessment.SessionState) error {
	expected := state.Version
	state.Version = expected + 1

	doc, err := json.Marshal(state)
	if err != nil {
		state.Version = expected
		return fmt.Errorf("encode session %s: %w", state.ID, err)
	}

	if expected == 0 {
		err = r.insert(ctx, state, doc)
	} else {
		err = r.update(ctx, state, expected, doc)
	}
	if err != nil {
		state.Version = expected
		return err
	}
	return nil
}

func (r *SessionRepo) insert(ctx context.Context, s *assessment.SessionState, doc []byte) error {
	query, args := r.builder().Insert(sessionsTable).
		Columns("id", "title", "status", "current_level", "message_count", "version", "state", "created_at", "updated_at").
		Values(s.ID, s.Title, string(s.Status), s.CurrentLevel, len(s.Messages), s.Version, doc,
			s.CreatedAt.UnixMilli(), s.UpdatedAt.UnixMilli()).
		OnConflict(entsql.ConflictColumns("id"), entsql.DoNothing()).
		Query()

	n, err := r.exec(ctx, query, args)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", s.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("insert session %s: %w", s.ID, ErrConflict)
	}
	return nil
}

func (r *SessionRepo) update(ctx context.Context, s *assessment.SessionState, expected int64, doc []byte) error {
	query, args := r.builder().Update(sessionsTable).
		Set("title", s.Title).
		Set("status", string(s.Status)).
		Set("current_level", s.CurrentLevel).
		Set("message_count", len(s.Messages)).
		Set("version", s.Version).
		Set("state", doc).
		Set("updated_at", s.UpdatedAt.UnixMilli()).
		Where(entsql.And(
			entsql.EQ("id", s.ID),
			entsql.EQ("version", expected),
		)).
		Query()

	n, err := r.exec(ctx, query, args)
	if err != nil {
		return fmt.Errorf("update session %s: %w", s.ID, err)
	}
	if n == 1 {
		return nil
	}

	// Nothing matched: either the row is gone or someone else saved first.
	if _, err := r.Load(ctx, s.ID); err != nil {
		return err
	}
	return fmt.Errorf("update session %s at version %d: %w", s.ID, expected, ErrConflict)
}

func (r *SessionRepo) exec(ctx context.Context, query string, args []any) (int64, error) {
	var res entsql.Result
	if err := r.drv.Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// sessionRow is the scan target for summary queries.
type sessionRow struct {
	ID           string `sql:"id"`
	Title        string `sql:"title"`
	Status       string `sql:"status"`
	CurrentLevel int    `sql:"current_level"`
	MessageCount int    `sql:"message_count"`
	Version      int64  `sql:"version"`
	CreatedAt    int64  `sql:"created_at"`
	UpdatedAt    int64  `sql:"updated_at"`
}

// List returns session summaries, most recently updated first.
func (r *SessionRepo) List(ctx context.Context, opts ListOptions) ([]SessionSummary, error) {
	t := entsql.Table(sessionsTable)
	sel := r.builder().Select(
		t.C("id"), t.C("title"), t.C("status"), t.C("current_level"),
		t.C("message_count"), t.C("version"), t.C("created_at"), t.C("updated_at"),
	).From(t)

	if opts.Status != "" {
		sel.Where(entsql.EQ(t.C("status"), string(opts.Status)))
	}
	if !opts.UpdatedBefore.IsZero() {
		sel.Where(entsql.LT(t.C("updated_at"), opts.UpdatedBefore.UnixMilli()))
	}
	sel.OrderBy(entsql.Desc(t.C("updated_at")), t.C("id"))
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}

	query, args := sel.Query()
	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var scanned []sessionRow
	if err := entsql.ScanSlice(rows, &scanned); err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}

	out := make([]SessionSummary, len(scanned))
	for i, row := range scanned {
		out[i] = SessionSummary{
			ID:           row.ID,
			Title:        row.Title,
			Status:       assessment.Status(row.Status),
			CurrentLevel: row.CurrentLevel,
			MessageCount: row.MessageCount,
			Version:      row.Version,
			CreatedAt:    time.UnixMilli(row.CreatedAt).UTC(),
			UpdatedAt:    time.UnixMilli(row.UpdatedAt).UTC(),
		}
	}
	return out, nil
}
