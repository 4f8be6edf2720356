package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/entrega-cli/internal/config"
	"github.com/sells-group/entrega-cli/internal/llm"
	"github.com/sells-group/entrega-cli/internal/resilience"
)

const testGradesCSV = `Grupos,Repositorio,Tutor,Criterio,Diseño,Diseño Comments,Puntos totales,Retroalimentación
,,,Puntos,40,,,
,,,Descripción,Calidad del diseño,,,
Grupo01,repoA,Ana,,35,buen diseño,35,bien
Grupo02,repoB,Luis,,15,diseño flojo,15,mejorable
`

const consolidationAnswer = "```json\n{\"resumen\": {\"total_proyectos\": 2}, \"patrones\": [\"RAG\"]}\n```"

func extractionAnswer(name string) string {
	return fmt.Sprintf(`{
  "metadata": {"nombre_proyecto": %q, "dominio": "educación", "problema_identificado": "tutorías"},
  "decisiones_tecnicas": {"arquitectura": "RAG", "modelos_llm": ["gemini"], "tecnologias": ["python"], "integraciones": []},
  "decisiones_negocio": {"usuarios_objetivo": ["estudiantes"], "metricas_exito": [], "alcance_mvp": "chat", "escalabilidad": ""},
  "riesgos_identificados": [{"riesgo": "alucinaciones", "mitigacion": "citas", "categoria": "técnico"}],
  "fortalezas_generales": ["claridad", "alcance"],
  "debilidades_generales": ["pruebas"],
  "observaciones": "ok"
}`, name)
}

// testEntrega lays out an entrega on disk: statement, rubric, two project
// documents and a grades export.
func testEntrega(t *testing.T) config.Entrega {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"enunciado.md":         "# Enunciado\nConstruir un asistente.",
		"rubrica.md":           "# Rúbrica\nDiseño 40 puntos.",
		"proyectos/grupo01.md": "PROYECTO-GRUPO01 asistente de tutorías",
		"proyectos/grupo02.md": "PROYECTO-GRUPO02 asistente de biblioteca",
		"proyectos/notas.txt":  "no es un proyecto",
		"calificaciones.csv":   testGradesCSV,
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return config.Entrega{
		Number:       2,
		Enunciado:    filepath.Join(dir, "enunciado.md"),
		Rubrica:      filepath.Join(dir, "rubrica.md"),
		ProyectosDir: filepath.Join(dir, "proyectos"),
		OutputDir:    filepath.Join(dir, "resultados"),
		GradesCSV:    filepath.Join(dir, "calificaciones.csv"),
	}
}

func testConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			Provider:        llm.ProviderGemini,
			Temperature:     0.1,
			MaxOutputTokens: 8192,
			TopP:            0.95,
			TopK:            40,
		},
		Gemini: config.GeminiConfig{Model: "gemini-2.5-flash-lite"},
		Retry: config.RetryConfig{
			MaxAttempts:      3,
			InitialBackoffMs: 1,
			MaxBackoffMs:     1,
			Multiplier:       2,
		},
		Batch: config.BatchConfig{MaxConcurrentProjects: 2},
	}
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}
}

func testOptions() llm.Options {
	opts := llm.OptionsFromConfig(testConfig().LLM)
	opts.Model = "gemini-2.5-flash-lite"
	return opts
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
