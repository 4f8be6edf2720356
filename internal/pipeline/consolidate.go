package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/entrega-cli/internal/docstore"
	"github.com/sells-group/entrega-cli/internal/enrich"
	"github.com/sells-group/entrega-cli/internal/llm"
	"github.com/sells-group/entrega-cli/internal/prompt"
	"github.com/sells-group/entrega-cli/internal/report"
)

// Phase 2 output files.
const (
	ConsolidatedFile = "analisis_consolidado.json"
	ExecutiveFile    = "reporte_ejecutivo.md"
	DecisionsFile    = "decisiones_consolidadas.csv"
)

// consolidationTemperatureDelta raises the sampling temperature of the
// aggregate analyses over the extraction temperature.
const consolidationTemperatureDelta = 0.1

// ErrNoRecords is returned when there is nothing to consolidate.
var ErrNoRecords = eris.New("pipeline: no extraction records to consolidate")

// ConsolidationResult is the outcome of phase 2.
type ConsolidationResult struct {
	Analysis map[string]any
	// Report is empty when the executive report could not be produced.
	Report       string
	DecisionRows int
}

// Consolidator runs phase 2: the cross-project analysis, its executive
// report and the decisions table.
type Consolidator struct {
	completer llm.Completer
	docs      docstore.Store
	opts      llm.Options
	log       *zap.Logger
}

// NewConsolidator creates a Consolidator. opts carries the extraction
// sampling settings; the consolidation calls run slightly warmer.
func NewConsolidator(completer llm.Completer, docs docstore.Store, opts llm.Options, log *zap.Logger) *Consolidator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consolidator{
		completer: completer,
		docs:      docs,
		opts:      opts.WithTemperature(opts.Temperature + consolidationTemperatureDelta),
		log:       log,
	}
}

// Consolidate analyzes records as a whole and writes the phase 2 outputs to
// outDir. Only the consolidated analysis is required; a failed executive
// report or an empty decisions table is logged.
func (c *Consolidator) Consolidate(ctx context.Context, records []enrich.ExtractionRecord, system string, entrega int, outDir string) (*ConsolidationResult, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	c.log.Info("consolidate: starting", zap.Int("records", len(records)))

	userPrompt, err := prompt.Consolidation(records)
	if err != nil {
		return nil, eris.Wrap(err, "consolidate: build prompt")
	}
	text, err := c.completer.Complete(ctx, userPrompt, c.opts.WithSystem(system))
	if err != nil {
		return nil, eris.Wrap(err, "consolidate: analysis")
	}
	analysis, err := llm.ExtractJSON(text)
	if err != nil {
		return nil, eris.Wrap(err, "consolidate: parse analysis")
	}
	if err := c.docs.WriteJSON(ctx, filepath.Join(outDir, ConsolidatedFile), analysis); err != nil {
		return nil, eris.Wrap(err, "consolidate: save analysis")
	}

	res := &ConsolidationResult{Analysis: analysis}

	reportMD, err := c.executiveReport(ctx, analysis, entrega)
	if err != nil {
		c.log.Warn("consolidate: executive report failed", zap.Error(err))
	} else if err := c.docs.WriteText(ctx, filepath.Join(outDir, ExecutiveFile), reportMD); err != nil {
		c.log.Warn("consolidate: failed to save executive report", zap.Error(err))
	} else {
		res.Report = reportMD
	}

	rows := report.DecisionRows(records)
	res.DecisionRows = len(rows)
	if len(rows) == 0 {
		c.log.Warn("consolidate: no decisions to tabulate")
	} else {
		var b strings.Builder
		if err := report.WriteDecisionsCSV(&b, rows); err != nil {
			return nil, eris.Wrap(err, "consolidate: render decisions")
		}
		if err := c.docs.WriteText(ctx, filepath.Join(outDir, DecisionsFile), b.String()); err != nil {
			return nil, eris.Wrap(err, "consolidate: save decisions")
		}
	}

	c.log.Info("consolidate: complete",
		zap.Int("decision_rows", res.DecisionRows),
		zap.Bool("executive_report", res.Report != ""),
	)
	return res, nil
}

func (c *Consolidator) executiveReport(ctx context.Context, analysis map[string]any, entrega int) (string, error) {
	userPrompt, err := prompt.SummaryReport(analysis, entrega)
	if err != nil {
		return "", err
	}
	text, err := c.completer.Complete(ctx, userPrompt, c.opts)
	if err != nil {
		return "", err
	}
	md := report.StripMarkdownFence(text)
	if md == "" {
		return "", eris.New("consolidate: empty executive report")
	}
	return md, nil
}
