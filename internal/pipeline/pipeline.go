// Package pipeline runs the three-phase analysis of one entrega: per-project
// extraction, cross-project consolidation and the comparison against the
// grade export.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/entrega-cli/internal/config"
	"github.com/sells-group/entrega-cli/internal/docstore"
	"github.com/sells-group/entrega-cli/internal/llm"
	"github.com/sells-group/entrega-cli/internal/model"
	"github.com/sells-group/entrega-cli/internal/prompt"
	"github.com/sells-group/entrega-cli/internal/resilience"
	"github.com/sells-group/entrega-cli/internal/store"
)

// SummaryFile is the run summary written to the entrega output directory.
const SummaryFile = "resumen_ejecucion.json"

// ErrNoSuccessfulExtractions is returned when every project failed phase 1.
var ErrNoSuccessfulExtractions = eris.New("pipeline: no project was extracted successfully")

// RunOptions tunes a single run.
type RunOptions struct {
	SkipGrades bool
}

// Result is the outcome of a run.
type Result struct {
	RunID         string
	Summary       model.RunSummary
	Extraction    *ExtractionResult
	Consolidation *ConsolidationResult
	Grades        *GradesResult
}

// Pipeline orchestrates the phases of an analysis run.
type Pipeline struct {
	cfg       *config.Config
	docs      docstore.Store
	completer llm.Completer
	store     store.Store
	log       *zap.Logger
	now       func() time.Time
}

// New creates a Pipeline. completer is the rate-limited provider client;
// phase 1 retries its own calls and the aggregate phases get a retrying
// wrapper. st may be nil, in which case the run is not recorded.
func New(cfg *config.Config, docs docstore.Store, completer llm.Completer, st store.Store, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		cfg:       cfg,
		docs:      docs,
		completer: completer,
		store:     st,
		log:       log,
		now:       time.Now,
	}
}

func (p *Pipeline) options() llm.Options {
	opts := llm.OptionsFromConfig(p.cfg.LLM)
	opts.Model = p.cfg.Model()
	return opts
}

func (p *Pipeline) retryConfig() resilience.RetryConfig {
	r := p.cfg.Retry
	return resilience.FromRetryConfig(r.MaxAttempts, r.InitialBackoffMs, r.MaxBackoffMs, r.Multiplier, r.JitterFraction)
}

// Run executes the phases for entrega e and writes the run summary. It fails
// when there are no projects or none could be extracted; later phases only
// degrade the summary.
func (p *Pipeline) Run(ctx context.Context, e config.Entrega, opts RunOptions) (*Result, error) {
	log := p.log.With(zap.Int("entrega", e.Number))
	log.Info("pipeline: starting analysis",
		zap.String("proyectos_dir", e.ProyectosDir),
		zap.String("output_dir", e.OutputDir),
		zap.String("model", p.cfg.Model()),
	)
	start := p.now()

	res := &Result{}
	var runID string
	if p.store != nil {
		run, err := p.store.CreateRun(ctx, e.Number)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		runID = run.ID
		res.RunID = run.ID
	}

	fail := func(err error) (*Result, error) {
		p.completeRun(ctx, log, runID, model.RunStatusFailed, nil, err)
		return nil, err
	}

	enunciado, err := p.docs.ReadText(ctx, e.Enunciado)
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: read enunciado"))
	}
	rubrica, err := p.docs.ReadText(ctx, e.Rubrica)
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: read rubrica"))
	}
	system := prompt.Context(enunciado, rubrica)

	llmOpts := p.options()
	aggregate := llm.Retrying(p.completer, p.retryConfig(), log)

	// Phase 1
	err = p.trackPhase(ctx, log, runID, model.PhaseExtraction, func() (map[string]any, error) {
		x := NewExtractor(p.completer, p.docs, llmOpts, p.retryConfig(), p.cfg.Batch.MaxConcurrentProjects, log)
		er, err := x.ExtractAll(ctx, e.ProyectosDir, filepath.Join(e.OutputDir, config.ExtractionsDir), system)
		if err != nil {
			return nil, err
		}
		res.Extraction = er
		meta := map[string]any{
			"total":     er.Total,
			"succeeded": er.Succeeded(),
			"failed":    er.Failed,
		}
		if er.Succeeded() == 0 {
			return meta, ErrNoSuccessfulExtractions
		}
		return meta, nil
	})
	if err != nil {
		return fail(err)
	}

	// Phase 2
	phase2 := p.trackPhase(ctx, log, runID, model.PhaseConsolidation, func() (map[string]any, error) {
		c := NewConsolidator(aggregate, p.docs, llmOpts, log)
		cr, err := c.Consolidate(ctx, res.Extraction.Records, system, e.Number, filepath.Join(e.OutputDir, config.ConsolidationDir))
		if err != nil {
			return nil, err
		}
		res.Consolidation = cr
		return map[string]any{
			"decision_rows":    cr.DecisionRows,
			"executive_report": cr.Report != "",
		}, nil
	}) == nil

	// Phase 3
	var phase3 *bool
	switch {
	case opts.SkipGrades || e.GradesCSV == "":
		p.skipPhase(ctx, log, runID, model.PhaseGrades)
	default:
		ok := p.trackPhase(ctx, log, runID, model.PhaseGrades, func() (map[string]any, error) {
			g := NewGradesPhase(aggregate, p.docs, llmOpts, log)
			gr, err := g.Run(ctx, res.Extraction.Records, e.GradesCSV, e.Number, filepath.Join(e.OutputDir, config.GradesDir))
			if err != nil {
				return nil, err
			}
			res.Grades = gr
			return map[string]any{
				"analyzed":      gr.Analysis.Summary.AnalyzedCount,
				"discrepancies": gr.Analysis.Summary.DiscrepancyCount,
			}, nil
		}) == nil
		phase3 = &ok
	}

	summary := model.NewRunSummary(p.now(), res.Extraction.Total, res.Extraction.Succeeded(), phase2, e.OutputDir)
	summary.Phase3Completed = phase3
	summary.DurationMs = p.now().Sub(start).Milliseconds()
	res.Summary = summary

	if err := p.docs.WriteJSON(ctx, filepath.Join(e.OutputDir, SummaryFile), summary); err != nil {
		log.Warn("pipeline: failed to save run summary", zap.Error(err))
	}

	p.completeRun(ctx, log, runID, model.RunStatusComplete, &summary, nil)
	log.Info("pipeline: analysis complete",
		zap.Int("projects", summary.TotalProjects),
		zap.Int("extracted", summary.Phase1Succeeded),
		zap.String("success_rate", summary.Phase1Rate),
		zap.Bool("consolidated", summary.Phase2Completed),
		zap.Int64("duration_ms", summary.DurationMs),
	)
	return res, nil
}

// trackPhase records fn as a run phase and returns its error.
func (p *Pipeline) trackPhase(ctx context.Context, log *zap.Logger, runID, name string, fn func() (map[string]any, error)) error {
	var phase *model.RunPhase
	if p.store != nil && runID != "" {
		ph, err := p.store.CreatePhase(ctx, runID, name)
		if err != nil {
			log.Warn("pipeline: failed to create phase", zap.String("phase", name), zap.Error(err))
		}
		phase = ph
	}

	start := time.Now()
	meta, fnErr := fn()
	duration := time.Since(start).Milliseconds()

	result := &model.PhaseResult{
		Status:     model.PhaseStatusComplete,
		DurationMs: duration,
		Metadata:   meta,
	}
	if fnErr != nil {
		result.Status = model.PhaseStatusFailed
		result.Error = fnErr.Error()
		log.Error("pipeline: phase failed",
			zap.String("phase", name),
			zap.Int64("duration_ms", duration),
			zap.Error(fnErr),
		)
	} else {
		log.Info("pipeline: phase complete",
			zap.String("phase", name),
			zap.Int64("duration_ms", duration),
		)
	}

	if phase != nil {
		// The run outcome does not depend on the phase bookkeeping.
		if err := p.store.CompletePhase(context.WithoutCancel(ctx), phase.ID, result); err != nil {
			log.Warn("pipeline: failed to complete phase", zap.String("phase", name), zap.Error(err))
		}
	}
	return fnErr
}

func (p *Pipeline) skipPhase(ctx context.Context, log *zap.Logger, runID, name string) {
	log.Info("pipeline: phase skipped", zap.String("phase", name))
	if p.store == nil || runID == "" {
		return
	}
	phase, err := p.store.CreatePhase(ctx, runID, name)
	if err != nil {
		log.Warn("pipeline: failed to create phase", zap.String("phase", name), zap.Error(err))
		return
	}
	if err := p.store.CompletePhase(ctx, phase.ID, &model.PhaseResult{Status: model.PhaseStatusSkipped}); err != nil {
		log.Warn("pipeline: failed to complete phase", zap.String("phase", name), zap.Error(err))
	}
}

func (p *Pipeline) completeRun(ctx context.Context, log *zap.Logger, runID string, status model.RunStatus, summary *model.RunSummary, runErr error) {
	if p.store == nil || runID == "" {
		return
	}
	if err := p.store.CompleteRun(context.WithoutCancel(ctx), runID, status, summary, runErr); err != nil {
		log.Warn("pipeline: failed to complete run", zap.String("run_id", runID), zap.Error(err))
	}
}
