package config

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/entrega-cli/internal/docstore"
)

// Output subdirectories of an entrega's output directory.
const (
	ExtractionsDir   = "fase1_extracciones"
	ConsolidationDir = "fase2_consolidado"
	GradesDir        = "fase3_calificaciones"
)

// Entrega describes the inputs and outputs of one assignment delivery.
type Entrega struct {
	Number       int    `yaml:"-"`
	Enunciado    string `yaml:"enunciado"`
	Rubrica      string `yaml:"rubrica"`
	ProyectosDir string `yaml:"proyectos_dir"`
	OutputDir    string `yaml:"output_dir"`
	GradesCSV    string `yaml:"grades_csv"`
}

// Validate checks that the statement, the rubric and the projects directory
// exist. The first missing path is returned as a *docstore.NotFoundError.
func (e Entrega) Validate() error {
	for _, p := range []string{e.Enunciado, e.Rubrica, e.ProyectosDir} {
		if p == "" {
			return eris.Errorf("config: entrega %d is missing a required path", e.Number)
		}
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				return &docstore.NotFoundError{Path: p}
			}
			return eris.Wrapf(err, "config: stat %s", p)
		}
	}
	return nil
}

// Entregas maps entrega numbers to their configuration.
type Entregas struct {
	Entregas map[int]Entrega `yaml:"entregas"`
}

// Get returns the configuration of entrega n.
func (e *Entregas) Get(n int) (Entrega, error) {
	cfg, ok := e.Entregas[n]
	if !ok {
		return Entrega{}, eris.Errorf("config: no configuration for entrega %d", n)
	}
	return cfg, nil
}

// Numbers lists the configured entrega numbers in ascending order.
func (e *Entregas) Numbers() []int {
	out := make([]int, 0, len(e.Entregas))
	for n := range e.Entregas {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// LoadEntregas reads the entregas file at path. Relative paths inside the
// file are resolved against the file's directory.
func LoadEntregas(path string) (*Entregas, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &docstore.NotFoundError{Path: path}
		}
		return nil, eris.Wrapf(err, "config: read entregas file %s", path)
	}

	var out Entregas
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrapf(err, "config: parse entregas file %s", path)
	}

	base := filepath.Dir(path)
	for n, e := range out.Entregas {
		e.Number = n
		e.Enunciado = resolve(base, e.Enunciado)
		e.Rubrica = resolve(base, e.Rubrica)
		e.ProyectosDir = resolve(base, e.ProyectosDir)
		e.OutputDir = resolve(base, e.OutputDir)
		e.GradesCSV = resolve(base, e.GradesCSV)
		out.Entregas[n] = e
	}
	return &out, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
