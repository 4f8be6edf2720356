// Package model holds the run-history types shared by the pipeline, the
// store and the CLI.
package model

import (
	"fmt"
	"time"
)

// RunStatus represents the current state of an analysis run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one invocation of the analysis for an entrega.
type Run struct {
	ID        string      `json:"id"`
	Entrega   int         `json:"entrega"`
	Status    RunStatus   `json:"status"`
	Summary   *RunSummary `json:"summary,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RunSummary is the execution summary written to resumen_ejecucion.json.
type RunSummary struct {
	Timestamp       string `json:"timestamp"`
	TotalProjects   int    `json:"total_proyectos"`
	Phase1Succeeded int    `json:"fase1_exitosos"`
	Phase1Rate      string `json:"fase1_tasa_exito"`
	Phase2Completed bool   `json:"fase2_completada"`
	Phase3Completed *bool  `json:"fase3_completada,omitempty"`
	OutputDir       string `json:"directorio_resultados"`
	DurationMs      int64  `json:"duracion_ms,omitempty"`
}

// NewRunSummary fills the derived fields of a summary. The success rate is
// "0%" when there were no projects.
func NewRunSummary(at time.Time, total, succeeded int, phase2 bool, outputDir string) RunSummary {
	rate := "0%"
	if total > 0 {
		rate = fmt.Sprintf("%.1f%%", float64(succeeded)*100/float64(total))
	}
	return RunSummary{
		Timestamp:       at.Format("2006-01-02T15:04:05.000000"),
		TotalProjects:   total,
		Phase1Succeeded: succeeded,
		Phase1Rate:      rate,
		Phase2Completed: phase2,
		OutputDir:       outputDir,
	}
}

// PhaseStatus represents the current state of a run phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// Phase names recorded for a run.
const (
	PhaseExtraction    = "extraction"
	PhaseConsolidation = "consolidation"
	PhaseGrades        = "grades"
)

// RunPhase represents a phase within a run.
type RunPhase struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    PhaseStatus  `json:"status"`
	Result    *PhaseResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// PhaseResult holds the outcome of a run phase.
type PhaseResult struct {
	Status     PhaseStatus    `json:"status"`
	DurationMs int64          `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}
