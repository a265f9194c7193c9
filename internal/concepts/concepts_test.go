package concepts

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/socratic/internal/assessment"
	"github.com/abhisek/socratic/internal/llm"
)

func analysisJSON() map[string]any {
	return map[string]any{
		"concepts": []map[string]any{
			{"id": "concept_1", "name": " Supply ", "definition": "Goods offered", "complexity": 2, "sourceSection": "Ch. 1"},
			{"id": "concept_2", "name": "Demand", "definition": "Goods wanted", "complexity": 2, "sourceSection": "Ch. 1"},
			{"id": "concept_3", "name": "Equilibrium", "definition": "Where they meet", "complexity": 4, "sourceSection": "Ch. 2"},
		},
		"relations": []map[string]any{
			{"from": "concept_1", "to": "concept_3", "type": "leads_to"},
			{"from": "concept_2", "to": "concept_9", "type": "leads_to"},
		},
		"examples": []map[string]any{
			{"concept": "concept_2", "example": "Ice cream in summer"},
		},
	}
}

func TestAnalyze(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockJSON(analysisJSON()))
	ex := NewExtractor(mock, DefaultConfig(), nil)

	a, err := ex.Analyze(context.Background(), "Markets bring together buyers and sellers.")
	require.NoError(t, err)

	require.Len(t, a.Concepts, 3)
	assert.Equal(t, "Supply", a.Concepts[0].Name)
	assert.Equal(t, []Relation{{From: "concept_1", To: "concept_3", Type: RelationLeadsTo}}, a.Relations)
	assert.Len(t, a.Examples, 1)

	req, ok := mock.LastCall()
	require.True(t, ok)
	assert.Equal(t, AnalysisSchema, req.Schema)
	assert.True(t, strings.HasPrefix(req.Messages[0].Content, "TEXT:\n"))
}

func TestAnalyze_RejectsBadInput(t *testing.T) {
	mock := llm.NewMockProvider()
	ex := NewExtractor(mock, DefaultConfig(), nil)

	_, err := ex.Analyze(context.Background(), "  \n ")
	assert.ErrorIs(t, err, ErrEmptyDocument)
	assert.ErrorIs(t, err, assessment.ErrValidation)

	_, err = ex.Analyze(context.Background(), strings.Repeat("a", MaxDocumentLength+1))
	assert.ErrorIs(t, err, ErrDocumentTooLarge)
	assert.ErrorIs(t, err, assessment.ErrValidation)

	_, err = ex.Analyze(context.Background(), strings.Repeat("é", MaxDocumentLength))
	assert.NotErrorIs(t, err, ErrDocumentTooLarge, "limit counts characters, not bytes")

	assert.Equal(t, 1, mock.CallCount())
}

func TestAnalyze_NoConcepts(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockJSON(map[string]any{
		"concepts":  []any{},
		"relations": []any{},
		"examples":  []any{},
	}))
	ex := NewExtractor(mock, DefaultConfig(), nil)

	_, err := ex.Analyze(context.Background(), "Nothing here.")
	assert.ErrorIs(t, err, ErrNoConcepts)
	var invalid *llm.ErrInvalidResponse
	assert.ErrorAs(t, err, &invalid)
}

func TestNormalize(t *testing.T) {
	a := &Analysis{
		Title: "  Markets ",
		Concepts: assessment.Catalog{
			{ID: "", Name: "Price", Complexity: 9},
			{ID: "concept_1", Name: "Supply", Complexity: 0},
			{ID: "concept_1", Name: "Duplicate"},
			{ID: " concept_4 ", Name: ""},
			{ID: "", Name: ""},
		},
		Relations: []Relation{
			{From: "concept_1", To: "concept_4", Type: RelationPartOf},
			{From: "concept_1", To: "concept_4", Type: "causes"},
			{From: "concept_1", To: "ghost", Type: RelationLeadsTo},
		},
		Examples: []Example{
			{Concept: "concept_2", Example: "A price tag"},
			{Concept: "concept_1", Example: "  "},
		},
	}

	Normalize(a)

	want := &Analysis{
		Title: "Markets",
		Concepts: assessment.Catalog{
			{ID: "concept_2", Name: "Price", Complexity: 5},
			{ID: "concept_1", Name: "Supply", Complexity: 1},
			{ID: "concept_4", Name: "concept_4", Complexity: 1},
		},
		Relations: []Relation{{From: "concept_1", To: "concept_4", Type: RelationPartOf}},
		Examples:  []Example{{Concept: "concept_2", Example: "A price tag"}},
	}
	if diff := cmp.Diff(want, a); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestCatalogRoundTrip(t *testing.T) {
	a := &Analysis{
		Title: "Markets",
		Concepts: assessment.Catalog{
			{ID: "supply", Name: "Supply", Definition: "Goods offered", Complexity: 2},
			{ID: "demand", Name: "Demand", Complexity: 3},
		},
		Relations: []Relation{{From: "supply", To: "demand", Type: RelationContrastsWith}},
		Examples:  []Example{},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCatalog(&buf, a))
	assert.Contains(t, buf.String(), "title: Markets")

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	got, err := LoadCatalog(path)
	require.NoError(t, err)
	if diff := cmp.Diff(a, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadCatalog_Forms(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantIDs []string
		wantErr bool
	}{
		{
			name:    "bare yaml list",
			file:    "c.yaml",
			body:    "- id: a\n  name: A\n- id: b\n  name: B\n",
			wantIDs: []string{"a", "b"},
		},
		{
			name:    "yaml with document marker",
			file:    "c.yml",
			body:    "---\ntitle: T\nconcepts:\n  - id: a\n    name: A\n",
			wantIDs: []string{"a"},
		},
		{
			name:    "json object",
			file:    "c.json",
			body:    `{"title": "T", "concepts": [{"id": "x", "name": "X"}]}`,
			wantIDs: []string{"x"},
		},
		{
			name:    "bare json list",
			file:    "c.json",
			body:    `[{"id": "x", "name": "X"}, {"name": "Y"}]`,
			wantIDs: []string{"x", "concept_1"},
		},
		{
			name:    "empty catalog is invalid",
			file:    "c.yaml",
			body:    "title: nothing\n",
			wantErr: true,
		},
		{
			name:    "malformed json",
			file:    "c.json",
			body:    `{"concepts": [`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))

			a, err := LoadCatalog(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			var ids []string
			for _, c := range a.Catalog() {
				ids = append(ids, c.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestLoadCatalog_Missing(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
