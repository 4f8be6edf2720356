package pipeline

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/entrega-cli/internal/docstore"
	"github.com/sells-group/entrega-cli/internal/enrich"
	"github.com/sells-group/entrega-cli/internal/llm"
)

func testRecords(t *testing.T) []enrich.ExtractionRecord {
	t.Helper()
	var records []enrich.ExtractionRecord
	for _, id := range []string{"grupo01", "grupo02"} {
		var rec enrich.ExtractionRecord
		require.NoError(t, llm.DecodeJSON(extractionAnswer(id), &rec))
		rec.Internal = &enrich.ExtractionMetadata{ProyectoID: id}
		records = append(records, rec)
	}
	return records
}

func TestConsolidator_Consolidate(t *testing.T) {
	outDir := t.TempDir()
	ai := &mockCompleter{}
	warmer := mock.MatchedBy(func(o llm.Options) bool {
		return math.Abs(o.Temperature-0.2) < 1e-9
	})
	ai.On("Complete", mock.Anything, promptWith(consolidationMarker, "grupo02"), warmer).
		Return(consolidationAnswer, nil)
	ai.On("Complete", mock.Anything, promptWith(executiveMarker, "Entrega 2"), warmer).
		Return("```markdown\n# Reporte Ejecutivo\n\nTodo bien.\n```", nil)

	c := NewConsolidator(ai, docstore.NewFS("", nil), testOptions(), nil)
	res, err := c.Consolidate(context.Background(), testRecords(t), "ctx", 2, outDir)
	require.NoError(t, err)
	ai.AssertExpectations(t)

	assert.Equal(t, []any{"RAG"}, res.Analysis["patrones"])
	assert.Equal(t, "# Reporte Ejecutivo\n\nTodo bien.", res.Report)
	// Four technical, four business and one risk row per record.
	assert.Equal(t, 18, res.DecisionRows)

	md, err := os.ReadFile(filepath.Join(outDir, ExecutiveFile))
	require.NoError(t, err)
	assert.Equal(t, res.Report, string(md))

	csv, err := os.ReadFile(filepath.Join(outDir, DecisionsFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csv)), "\n")
	assert.Len(t, lines, 19)
	assert.Equal(t, "Proyecto,Dominio,Categoría,Tipo,Decisión", lines[0])

	var saved map[string]any
	require.NoError(t, docstore.NewFS("", nil).ReadJSON(context.Background(), filepath.Join(outDir, ConsolidatedFile), &saved))
	assert.Equal(t, res.Analysis, saved)
}

func TestConsolidator_ReportFailureIsNotFatal(t *testing.T) {
	outDir := t.TempDir()
	ai := &mockCompleter{}
	ai.On("Complete", mock.Anything, promptWith(consolidationMarker), mock.Anything).Return(consolidationAnswer, nil)
	ai.On("Complete", mock.Anything, promptWith(executiveMarker), mock.Anything).Return("", errors.New("timeout"))

	res, err := NewConsolidator(ai, docstore.NewFS("", nil), testOptions(), nil).
		Consolidate(context.Background(), testRecords(t), "ctx", 1, outDir)
	require.NoError(t, err)
	assert.Empty(t, res.Report)
	assert.False(t, fileExists(filepath.Join(outDir, ExecutiveFile)))
	assert.True(t, fileExists(filepath.Join(outDir, ConsolidatedFile)))
	assert.True(t, fileExists(filepath.Join(outDir, DecisionsFile)))
}

func TestConsolidator_UnparseableAnalysis(t *testing.T) {
	outDir := t.TempDir()
	ai := &mockCompleter{}
	ai.On("Complete", mock.Anything, promptWith(consolidationMarker), mock.Anything).Return("sin datos", nil)

	_, err := NewConsolidator(ai, docstore.NewFS("", nil), testOptions(), nil).
		Consolidate(context.Background(), testRecords(t), "ctx", 1, outDir)
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrNoJSON)
	assert.False(t, fileExists(filepath.Join(outDir, ConsolidatedFile)))
}

func TestConsolidator_NoRecords(t *testing.T) {
	ai := &mockCompleter{}
	_, err := NewConsolidator(ai, docstore.NewFS("", nil), testOptions(), nil).
		Consolidate(context.Background(), nil, "ctx", 1, t.TempDir())
	assert.ErrorIs(t, err, ErrNoRecords)
	ai.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func TestConsolidator_NoDecisionsSkipsCSV(t *testing.T) {
	outDir := t.TempDir()
	ai := &mockCompleter{}
	ai.On("Complete", mock.Anything, promptWith(consolidationMarker), mock.Anything).Return(consolidationAnswer, nil)
	ai.On("Complete", mock.Anything, promptWith(executiveMarker), mock.Anything).Return("# R", nil)

	records := []enrich.ExtractionRecord{{Observaciones: "vacío"}}
	res, err := NewConsolidator(ai, docstore.NewFS("", nil), testOptions(), nil).
		Consolidate(context.Background(), records, "ctx", 1, outDir)
	require.NoError(t, err)
	assert.Zero(t, res.DecisionRows)
	assert.False(t, fileExists(filepath.Join(outDir, DecisionsFile)))
}
