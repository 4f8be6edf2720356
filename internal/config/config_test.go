package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/entrega-cli/internal/docstore"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.InDelta(t, 0.1, cfg.LLM.Temperature, 0.001)
	assert.Equal(t, 8192, cfg.LLM.MaxOutputTokens)
	assert.InDelta(t, 0.95, cfg.LLM.TopP, 0.001)
	assert.Equal(t, 40, cfg.LLM.TopK)
	assert.InDelta(t, 1.0, cfg.LLM.RequestsPerSecond, 0.001)
	assert.Equal(t, "gemini-2.5-flash-lite", cfg.Gemini.Model)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2000, cfg.Retry.InitialBackoffMs)
	assert.Equal(t, 1, cfg.Batch.MaxConcurrentProjects)
	assert.Equal(t, "entrega-runs.db", cfg.Store.Path)
	assert.Equal(t, "entregas.yaml", cfg.EntregasFile)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "gemini-2.5-flash-lite", cfg.Model())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
llm:
  provider: anthropic
  temperature: 0.3
batch:
  max_concurrent_projects: 4
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 0.001)
	assert.Equal(t, 4, cfg.Batch.MaxConcurrentProjects)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Model())
	// Defaults still apply for unset values
	assert.Equal(t, 40, cfg.LLM.TopK)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log:\n  level: debug\n"), 0o644))

	t.Setenv("ENTREGA_LOG_LEVEL", "warn")
	t.Setenv("ENTREGA_LLM_TOP_K", "20")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 20, cfg.LLM.TopK)
}

func TestLoadProviderKeyFallback(t *testing.T) {
	chdirTemp(t)
	t.Setenv("GEMINI_API_KEY", "from-sdk-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-sdk-env", cfg.Gemini.Key)

	t.Setenv("ENTREGA_GEMINI_KEY", "from-prefixed-env")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "from-prefixed-env", cfg.Gemini.Key)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			LLM:   LLMConfig{Provider: "gemini", Temperature: 0.1, MaxOutputTokens: 8192},
			Batch: BatchConfig{MaxConcurrentProjects: 1},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.LLM.Provider = "openai" }},
		{"negative temperature", func(c *Config) { c.LLM.Temperature = -0.1 }},
		{"zero output tokens", func(c *Config) { c.LLM.MaxOutputTokens = 0 }},
		{"zero concurrency", func(c *Config) { c.Batch.MaxConcurrentProjects = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestInitLoggerConsole(t *testing.T) {
	logger, err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.Same(t, logger, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	_, err := InitLogger(LogConfig{Level: "info", Format: "json"})
	assert.NoError(t, err)
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	_, err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func writeEntregaTree(t *testing.T, dir string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "entrega1", "proyectos"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "entrega1", "enunciado.md"), []byte("# Enunciado"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "entrega1", "rubrica.md"), []byte("# Rúbrica"), 0o644))

	path := filepath.Join(dir, "entregas.yaml")
	content := `
entregas:
  1:
    enunciado: entrega1/enunciado.md
    rubrica: entrega1/rubrica.md
    proyectos_dir: entrega1/proyectos
    output_dir: entrega1/resultados
    grades_csv: entrega1/calificaciones.csv
  2:
    enunciado: /abs/enunciado.md
    rubrica: entrega2/rubrica.md
    proyectos_dir: entrega2/proyectos
    output_dir: entrega2/resultados
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadEntregas(t *testing.T) {
	dir := t.TempDir()
	entregas, err := LoadEntregas(writeEntregaTree(t, dir))
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, entregas.Numbers())

	e, err := entregas.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Number)
	assert.Equal(t, filepath.Join(dir, "entrega1", "enunciado.md"), e.Enunciado)
	assert.Equal(t, filepath.Join(dir, "entrega1", "calificaciones.csv"), e.GradesCSV)
	assert.NoError(t, e.Validate())

	e2, err := entregas.Get(2)
	require.NoError(t, err)
	assert.Equal(t, "/abs/enunciado.md", e2.Enunciado)
	assert.Empty(t, e2.GradesCSV)

	var nf *docstore.NotFoundError
	require.ErrorAs(t, e2.Validate(), &nf)
	assert.Equal(t, "/abs/enunciado.md", nf.Path)

	_, err = entregas.Get(7)
	assert.ErrorContains(t, err, "no configuration for entrega 7")
}

func TestLoadEntregas_MissingFile(t *testing.T) {
	_, err := LoadEntregas(filepath.Join(t.TempDir(), "entregas.yaml"))
	assert.True(t, docstore.IsNotFound(err))
}

func TestLoadEntregas_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entregas.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entregas: [1, 2"), 0o644))

	_, err := LoadEntregas(path)
	assert.ErrorContains(t, err, "parse entregas file")
}

func TestEntregaValidate_MissingProjectsDir(t *testing.T) {
	dir := t.TempDir()
	entregas, err := LoadEntregas(writeEntregaTree(t, dir))
	require.NoError(t, err)
	e, _ := entregas.Get(1)
	require.NoError(t, os.Remove(e.ProyectosDir))

	var nf *docstore.NotFoundError
	require.ErrorAs(t, e.Validate(), &nf)
	assert.Equal(t, e.ProyectosDir, nf.Path)
}
