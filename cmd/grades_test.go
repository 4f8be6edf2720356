package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/entrega-cli/internal/config"
	"github.com/sells-group/entrega-cli/internal/docstore"
	"github.com/sells-group/entrega-cli/internal/enrich"
	"github.com/sells-group/entrega-cli/internal/llm"
)

const entrega1CSV = `Grupos,Repositorio,Tutor,Criterio,Diseño,Puntos totales,Retroalimentación
,,,Puntos,40,,
,,,Descripción,Calidad,,
Grupo01,repoA,Ana,,30,30,bien
Grupo02,repoB,Luis,,20,20,regular
`

const entrega2CSV = `Grupos,Repositorio,Tutor,Criterio,Diseño,Código,Puntos totales,Retroalimentación
,,,Puntos,40,60,,
,,,Descripción,Calidad,Código,,
Grupo01,repoA,Ana,,35,55,90,muy bien
Grupo02,repoB,Luis,,20,30,50,regular
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestGradesSummary(t *testing.T) {
	path := writeFile(t, t.TempDir(), "e1.csv", entrega1CSV)

	var buf bytes.Buffer
	require.NoError(t, gradesSummary(context.Background(), &buf, docstore.NewFS("", nil), path, 1))

	out := buf.String()
	assert.Contains(t, out, "# Resumen de Calificaciones - Entrega 1")
	assert.Contains(t, out, "| Grupo01 | Ana | 30.00 (75.0%) |")
}

func TestGradesSummary_MissingFile(t *testing.T) {
	var buf bytes.Buffer
	err := gradesSummary(context.Background(), &buf, docstore.NewFS("", nil), filepath.Join(t.TempDir(), "nada.csv"), 1)
	require.Error(t, err)
	assert.True(t, docstore.IsNotFound(err))
	assert.Empty(t, buf.String())
}

func TestGradesCompare(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "e1.csv", entrega1CSV)
	b := writeFile(t, dir, "e2.csv", entrega2CSV)

	var buf bytes.Buffer
	require.NoError(t, gradesCompare(context.Background(), &buf, docstore.NewFS("", nil), a, b))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, []any{"Grupo01", "Grupo02"}, got["grupos_comunes"])
	// Grupo01: 75% -> 90%, Grupo02: 50% -> 50%.
	assert.Len(t, got["mejoras"], 1)
	assert.Len(t, got["estables"], 1)
}

func TestGradesEnrich(t *testing.T) {
	dir := t.TempDir()
	docs := docstore.NewFS("", nil)
	ctx := context.Background()

	e := config.Entrega{
		Number:    1,
		OutputDir: filepath.Join(dir, "resultados"),
		GradesCSV: writeFile(t, dir, "e1.csv", entrega1CSV),
	}
	rec := enrich.ExtractionRecord{
		FortalezasGenerales:  []string{"a"},
		DebilidadesGenerales: []string{"b", "c"},
		Internal:             &enrich.ExtractionMetadata{ProyectoID: "grupo-1"},
	}
	require.NoError(t, docs.WriteJSON(ctx, filepath.Join(e.OutputDir, config.ExtractionsDir, "grupo-1_extraction.json"), rec))

	res, err := gradesEnrich(ctx, docs, nil, llm.Options{}, e)
	require.NoError(t, err)
	require.Len(t, res.Enriched, 1)
	require.NotNil(t, res.Enriched[0].Calificacion)
	assert.Equal(t, "Grupo01", res.Enriched[0].Calificacion.GroupID)
	assert.Equal(t, 1, res.Analysis.Summary.AnalyzedCount)
	assert.Empty(t, res.Report)

	assert.FileExists(t, filepath.Join(e.OutputDir, config.GradesDir, "analisis_comparativo.json"))
	assert.NoFileExists(t, filepath.Join(e.OutputDir, config.GradesDir, "reporte_comparativo.md"))
}

func TestGradesEnrich_Errors(t *testing.T) {
	dir := t.TempDir()
	docs := docstore.NewFS("", nil)
	ctx := context.Background()

	_, err := gradesEnrich(ctx, docs, nil, llm.Options{}, config.Entrega{Number: 1, OutputDir: dir})
	assert.ErrorContains(t, err, "no grades export")

	require.NoError(t, os.MkdirAll(filepath.Join(dir, config.ExtractionsDir), 0o755))
	_, err = gradesEnrich(ctx, docs, nil, llm.Options{}, config.Entrega{Number: 1, OutputDir: dir, GradesCSV: "x.csv"})
	assert.ErrorContains(t, err, "run analyze first")

	_, err = gradesEnrich(ctx, docs, nil, llm.Options{}, config.Entrega{Number: 1, OutputDir: filepath.Join(dir, "nada"), GradesCSV: "x.csv"})
	require.Error(t, err)
	assert.True(t, docstore.IsNotFound(err))
}
