package pipeline

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/entrega-cli/internal/docstore"
	"github.com/sells-group/entrega-cli/internal/enrich"
	"github.com/sells-group/entrega-cli/internal/grades"
	"github.com/sells-group/entrega-cli/internal/llm"
	"github.com/sells-group/entrega-cli/internal/prompt"
	"github.com/sells-group/entrega-cli/internal/report"
)

// Phase 3 output files.
const (
	GradesSummaryFile   = "resumen_calificaciones.md"
	EnrichedFile        = "extracciones_enriquecidas.json"
	ComparisonFile      = "analisis_comparativo.json"
	ComparativeFile     = "reporte_comparativo.md"
	reportSamplesPerEnd = 3
)

// GradesResult is the outcome of phase 3.
type GradesResult struct {
	Table    *grades.GradeTable
	Enriched []enrich.ExtractionRecord
	Analysis enrich.Analysis
	// Report is empty when no comparative report was produced.
	Report string
}

// GradesPhase runs phase 3: it joins the extraction records with the grade
// export and compares the two.
type GradesPhase struct {
	completer llm.Completer
	docs      docstore.Store
	opts      llm.Options
	parser    *grades.Parser
	enricher  *enrich.Enricher
	log       *zap.Logger
}

// NewGradesPhase creates a GradesPhase. completer may be nil, in which case
// the comparative report is skipped.
func NewGradesPhase(completer llm.Completer, docs docstore.Store, opts llm.Options, log *zap.Logger) *GradesPhase {
	if log == nil {
		log = zap.NewNop()
	}
	return &GradesPhase{
		completer: completer,
		docs:      docs,
		opts:      opts.WithTemperature(opts.Temperature + consolidationTemperatureDelta),
		parser:    grades.NewParser(log),
		enricher:  enrich.NewEnricher(log),
		log:       log,
	}
}

// Run loads the grade export at gradesPath and writes the phase 3 outputs
// to outDir. A missing export fails the phase; a failed comparative report
// is logged.
func (g *GradesPhase) Run(ctx context.Context, records []enrich.ExtractionRecord, gradesPath string, entrega int, outDir string) (*GradesResult, error) {
	table, err := g.parser.Load(ctx, g.docs, gradesPath)
	if err != nil {
		return nil, eris.Wrap(err, "grades phase: load grades")
	}
	g.log.Info("grades phase: grades loaded",
		zap.Int("groups", len(table.Groups)),
		zap.Int("criteria", len(table.Criteria)),
	)

	if err := g.docs.WriteText(ctx, filepath.Join(outDir, GradesSummaryFile), report.GradesSummaryMarkdown(table, entrega)); err != nil {
		return nil, eris.Wrap(err, "grades phase: save summary")
	}

	res := &GradesResult{Table: table}
	res.Enriched = g.enricher.Enrich(records, table)
	if err := g.docs.WriteJSON(ctx, filepath.Join(outDir, EnrichedFile), res.Enriched); err != nil {
		return nil, eris.Wrap(err, "grades phase: save enriched extractions")
	}

	res.Analysis = g.enricher.Analyze(res.Enriched)
	if err := g.docs.WriteJSON(ctx, filepath.Join(outDir, ComparisonFile), res.Analysis); err != nil {
		return nil, eris.Wrap(err, "grades phase: save analysis")
	}

	if g.completer == nil {
		g.log.Info("grades phase: no completer configured, skipping comparative report")
		return res, nil
	}

	md, err := g.comparativeReport(ctx, table, res)
	if err != nil {
		g.log.Warn("grades phase: comparative report failed", zap.Error(err))
		return res, nil
	}
	if err := g.docs.WriteText(ctx, filepath.Join(outDir, ComparativeFile), md); err != nil {
		g.log.Warn("grades phase: failed to save comparative report", zap.Error(err))
		return res, nil
	}
	res.Report = md
	return res, nil
}

func (g *GradesPhase) comparativeReport(ctx context.Context, table *grades.GradeTable, res *GradesResult) (string, error) {
	userPrompt, err := prompt.GradesAnalysis(prompt.GradesInput{
		Stats:    grades.SummaryStatistics(table),
		Analysis: res.Analysis,
		Samples:  enrich.ReportSamples(res.Enriched, reportSamplesPerEnd),
	})
	if err != nil {
		return "", err
	}
	text, err := g.completer.Complete(ctx, userPrompt, g.opts)
	if err != nil {
		return "", err
	}
	md := report.StripMarkdownFence(text)
	if md == "" {
		return "", eris.New("grades phase: empty comparative report")
	}
	return md, nil
}
