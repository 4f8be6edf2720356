package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/entrega-cli/internal/docstore"
	"github.com/sells-group/entrega-cli/internal/enrich"
)

func TestGradesPhase_Run(t *testing.T) {
	e := testEntrega(t)
	outDir := t.TempDir()
	ai := &mockCompleter{}
	ai.On("Complete", mock.Anything, promptWith(comparativeMarker, "Grupo02", "comentarios_tutor", "diseño flojo"), mock.Anything).
		Return("```\n# Comparativa\n```", nil)

	docs := docstore.NewFS("", nil)
	res, err := NewGradesPhase(ai, docs, testOptions(), nil).
		Run(context.Background(), testRecords(t), e.GradesCSV, 2, outDir)
	require.NoError(t, err)
	ai.AssertExpectations(t)

	assert.InDelta(t, 40.0, res.Table.MaxTotalPoints, 1e-9)
	require.Len(t, res.Enriched, 2)
	require.NotNil(t, res.Enriched[0].Calificacion)
	assert.Equal(t, "Grupo01", res.Enriched[0].Calificacion.GroupID)
	assert.InDelta(t, 87.5, res.Enriched[0].Calificacion.Percent, 1e-9)

	assert.Equal(t, 2, res.Analysis.Summary.AnalyzedCount)
	require.Len(t, res.Analysis.Discrepancies, 1)
	assert.Equal(t, enrich.LowGradeManyStrengths, res.Analysis.Discrepancies[0].Kind)
	assert.Equal(t, "# Comparativa", res.Report)

	for _, name := range []string{GradesSummaryFile, EnrichedFile, ComparisonFile, ComparativeFile} {
		assert.True(t, fileExists(filepath.Join(outDir, name)), name)
	}

	var saved []enrich.ExtractionRecord
	require.NoError(t, docs.ReadJSON(context.Background(), filepath.Join(outDir, EnrichedFile), &saved))
	require.Len(t, saved, 2)
	assert.True(t, saved[1].IsEnriched())
	assert.Equal(t, "Grupo02", saved[1].Calificacion.GroupID)
}

func TestGradesPhase_WithoutCompleter(t *testing.T) {
	e := testEntrega(t)
	outDir := t.TempDir()

	res, err := NewGradesPhase(nil, docstore.NewFS("", nil), testOptions(), nil).
		Run(context.Background(), testRecords(t), e.GradesCSV, 2, outDir)
	require.NoError(t, err)
	assert.Empty(t, res.Report)
	assert.True(t, fileExists(filepath.Join(outDir, ComparisonFile)))
	assert.False(t, fileExists(filepath.Join(outDir, ComparativeFile)))
}

func TestGradesPhase_ReportFailureIsNotFatal(t *testing.T) {
	e := testEntrega(t)
	outDir := t.TempDir()
	ai := &mockCompleter{}
	ai.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("unavailable"))

	res, err := NewGradesPhase(ai, docstore.NewFS("", nil), testOptions(), nil).
		Run(context.Background(), testRecords(t), e.GradesCSV, 2, outDir)
	require.NoError(t, err)
	assert.Empty(t, res.Report)
	assert.False(t, fileExists(filepath.Join(outDir, ComparativeFile)))
}

func TestGradesPhase_MissingGrades(t *testing.T) {
	outDir := t.TempDir()
	_, err := NewGradesPhase(nil, docstore.NewFS("", nil), testOptions(), nil).
		Run(context.Background(), testRecords(t), filepath.Join(outDir, "nada.csv"), 2, outDir)
	require.Error(t, err)
	assert.True(t, docstore.IsNotFound(err))
	assert.False(t, fileExists(filepath.Join(outDir, GradesSummaryFile)))
}
