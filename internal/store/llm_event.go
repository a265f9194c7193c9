package store

import (
	"context"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

func (r *eventRepo) AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	query, args := entsql.Dialect(dialect.SQLite).Insert(llmEventsTable).
		Columns("sequence", "timestamp", "provider", "model", "purpose", "input_tokens",
			"output_tokens", "latency_ms", "success", "error_message", "request_body", "response_body").
		Values(seqNum, time.Now().UnixMilli(), data.Provider, data.Model, data.Purpose, data.InputTokens,
			data.OutputTokens, data.LatencyMs, data.Success, data.ErrorMessage, data.RequestBody, data.ResponseBody).
		Query()

	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("save LLM request event: %w", err)
	}
	return nil
}

type llmEventRow struct {
	ID           int    `sql:"id"`
	Sequence     int64  `sql:"sequence"`
	Timestamp    int64  `sql:"timestamp"`
	Provider     string `sql:"provider"`
	Model        string `sql:"model"`
	Purpose      string `sql:"purpose"`
	InputTokens  int    `sql:"input_tokens"`
	OutputTokens int    `sql:"output_tokens"`
	LatencyMs    int64  `sql:"latency_ms"`
	Success      bool   `sql:"success"`
	ErrorMessage string `sql:"error_message"`
	RequestBody  string `sql:"request_body"`
	ResponseBody string `sql:"response_body"`
}

func (row llmEventRow) record() LLMRequestEventRecord {
	return LLMRequestEventRecord{
		ID:        row.ID,
		Sequence:  row.Sequence,
		Timestamp: time.UnixMilli(row.Timestamp).UTC(),
		LLMRequestEventData: LLMRequestEventData{
			Provider:     row.Provider,
			Model:        row.Model,
			Purpose:      row.Purpose,
			InputTokens:  row.InputTokens,
			OutputTokens: row.OutputTokens,
			LatencyMs:    row.LatencyMs,
			Success:      row.Success,
			ErrorMessage: row.ErrorMessage,
			RequestBody:  row.RequestBody,
			ResponseBody: row.ResponseBody,
		},
	}
}

func selectLLMEvents() (*entsql.Selector, *entsql.SelectTable) {
	t := entsql.Table(llmEventsTable)
	cols := make([]string, len(llmEventsColumns))
	for i, c := range llmEventsColumns {
		cols[i] = t.C(c.Name)
	}
	return entsql.Dialect(dialect.SQLite).Select(cols...).From(t), t
}

func (r *eventRepo) queryLLMRows(ctx context.Context, sel *entsql.Selector) ([]llmEventRow, error) {
	query, args := sel.Query()
	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var scanned []llmEventRow
	if err := entsql.ScanSlice(rows, &scanned); err != nil {
		return nil, err
	}
	return scanned, nil
}

func (r *eventRepo) QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEventRecord, error) {
	sel, t := selectLLMEvents()
	if opts.Purpose != "" {
		sel.Where(entsql.EQ(t.C("purpose"), opts.Purpose))
	}
	sel.OrderBy(entsql.Desc(t.C("sequence")))
	applyQueryOpts(sel, opts)

	scanned, err := r.queryLLMRows(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("query LLM events: %w", err)
	}

	out := make([]LLMRequestEventRecord, len(scanned))
	for i, row := range scanned {
		out[i] = row.record()
	}
	return out, nil
}

func (r *eventRepo) GetLLMEvent(ctx context.Context, id int) (*LLMRequestEventRecord, error) {
	sel, t := selectLLMEvents()
	sel.Where(entsql.EQ(t.C("id"), id))

	scanned, err := r.queryLLMRows(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("get LLM event %d: %w", id, err)
	}
	if len(scanned) == 0 {
		return nil, nil
	}
	rec := scanned[0].record()
	return &rec, nil
}

type usageRow struct {
	Key          string `sql:"key"`
	Calls        int    `sql:"calls"`
	InputTokens  int64  `sql:"input_tokens"`
	OutputTokens int64  `sql:"output_tokens"`
	LatencyMs    int64  `sql:"latency_ms"`
}

// usageBy aggregates token usage grouped by one column, largest first.
func (r *eventRepo) usageBy(ctx context.Context, column string) ([]usageRow, error) {
	t := entsql.Table(llmEventsTable)
	sel := entsql.Dialect(dialect.SQLite).Select(
		entsql.As(t.C(column), "key"),
		entsql.As(entsql.Count("*"), "calls"),
		entsql.As("COALESCE(SUM("+t.C("input_tokens")+"), 0)", "input_tokens"),
		entsql.As("COALESCE(SUM("+t.C("output_tokens")+"), 0)", "output_tokens"),
		entsql.As("COALESCE(SUM("+t.C("latency_ms")+"), 0)", "latency_ms"),
	).From(t).
		GroupBy(t.C(column)).
		OrderBy(entsql.Desc("calls"), "key")

	query, args := sel.Query()
	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var scanned []usageRow
	if err := entsql.ScanSlice(rows, &scanned); err != nil {
		return nil, err
	}
	return scanned, nil
}

func (r *eventRepo) LLMUsageByPurpose(ctx context.Context) ([]PurposeUsage, error) {
	rows, err := r.usageBy(ctx, "purpose")
	if err != nil {
		return nil, fmt.Errorf("query usage by purpose: %w", err)
	}
	out := make([]PurposeUsage, len(rows))
	for i, u := range rows {
		out[i] = PurposeUsage{
			Purpose:      u.Key,
			Calls:        u.Calls,
			InputTokens:  int(u.InputTokens),
			OutputTokens: int(u.OutputTokens),
		}
		if u.Calls > 0 {
			out[i].AvgLatencyMs = u.LatencyMs / int64(u.Calls)
		}
	}
	return out, nil
}

func (r *eventRepo) LLMUsageByModel(ctx context.Context) ([]ModelUsage, error) {
	rows, err := r.usageBy(ctx, "model")
	if err != nil {
		return nil, fmt.Errorf("query usage by model: %w", err)
	}
	out := make([]ModelUsage, len(rows))
	for i, u := range rows {
		out[i] = ModelUsage{
			Model:        u.Key,
			Calls:        u.Calls,
			InputTokens:  int(u.InputTokens),
			OutputTokens: int(u.OutputTokens),
		}
	}
	return out, nil
}
