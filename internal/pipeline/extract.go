package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/entrega-cli/internal/config"
	"github.com/sells-group/entrega-cli/internal/docstore"
	"github.com/sells-group/entrega-cli/internal/enrich"
	"github.com/sells-group/entrega-cli/internal/llm"
	"github.com/sells-group/entrega-cli/internal/prompt"
	"github.com/sells-group/entrega-cli/internal/resilience"
)

// ErrNoProjects is returned when the projects directory holds no project
// documents.
var ErrNoProjects = eris.New("pipeline: no project files found")

// ExtractionResult is the outcome of phase 1 over one projects directory.
type ExtractionResult struct {
	Records []enrich.ExtractionRecord
	Total   int
	Failed  []string
}

// Succeeded returns the number of projects that produced a record.
func (r *ExtractionResult) Succeeded() int {
	return len(r.Records)
}

// Extractor runs phase 1: one model call per project document, each answer
// recovered into an ExtractionRecord.
type Extractor struct {
	completer   llm.Completer
	docs        docstore.Store
	opts        llm.Options
	retry       resilience.RetryConfig
	concurrency int
	log         *zap.Logger
}

// NewExtractor creates an Extractor. opts.Model is recorded in each
// record's metadata. A concurrency below one is treated as one.
func NewExtractor(completer llm.Completer, docs docstore.Store, opts llm.Options, retry resilience.RetryConfig, concurrency int, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{
		completer:   completer,
		docs:        docs,
		opts:        opts,
		retry:       retry,
		concurrency: max(concurrency, 1),
		log:         log,
	}
}

// ProjectID returns the identifier of a project document: its file name
// without extension.
func ProjectID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ExtractProject extracts one project. The model call and the JSON recovery
// are retried together; the last error is returned once attempts run out.
func (x *Extractor) ExtractProject(ctx context.Context, path, system string) (enrich.ExtractionRecord, error) {
	id := ProjectID(path)

	content, err := x.docs.ReadText(ctx, path)
	if err != nil {
		return enrich.ExtractionRecord{}, eris.Wrapf(err, "extract: read project %s", id)
	}

	retry := x.retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(x.log, "extract", zap.String("project", id))
	}

	userPrompt := prompt.Extraction(content)
	opts := x.opts.WithSystem(system)

	rec, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (enrich.ExtractionRecord, error) {
		text, err := x.completer.Complete(ctx, userPrompt, opts)
		if err != nil {
			return enrich.ExtractionRecord{}, err
		}
		var rec enrich.ExtractionRecord
		if err := llm.DecodeJSON(text, &rec); err != nil {
			return enrich.ExtractionRecord{}, eris.Wrapf(err, "extract: parse response for %s", id)
		}
		return rec, nil
	})
	if err != nil {
		return enrich.ExtractionRecord{}, eris.Wrapf(err, "extract: project %s", id)
	}

	rec.Internal = &enrich.ExtractionMetadata{
		ProyectoID:      id,
		ArchivoFuente:   path,
		ModeloUsado:     x.opts.Model,
		TokensEstimados: llm.EstimateTokens(content),
	}
	return rec, nil
}

// ExtractAll extracts every .md document in dir and writes each record to
// outDir/<id>_extraction.json. Projects are processed concurrently up to the
// configured limit. A failed project is logged and skipped; records keep the
// order of the sorted input.
func (x *Extractor) ExtractAll(ctx context.Context, dir, outDir, system string) (*ExtractionResult, error) {
	paths, err := x.docs.List(ctx, dir, ".md")
	if err != nil {
		return nil, eris.Wrap(err, "extract: list projects")
	}
	if len(paths) == 0 {
		return nil, ErrNoProjects
	}

	x.log.Info("extract: starting",
		zap.Int("projects", len(paths)),
		zap.Int("concurrency", x.concurrency),
	)

	slots := make([]*enrich.ExtractionRecord, len(paths))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.concurrency)

	for i, path := range paths {
		g.Go(func() error {
			id := ProjectID(path)
			log := x.log.With(zap.String("project", id))

			rec, err := x.ExtractProject(gctx, path, system)
			n := done.Add(1)
			if err != nil {
				log.Error("extract: project failed", zap.Error(err))
				return nil // one project never aborts the batch
			}

			out := filepath.Join(outDir, id+"_extraction.json")
			if err := x.docs.WriteJSON(gctx, out, rec); err != nil {
				log.Warn("extract: failed to save extraction", zap.String("path", out), zap.Error(err))
			}
			slots[i] = &rec

			log.Info("extract: project complete",
				zap.Int64("done", n),
				zap.Int("total", len(paths)),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "extract: batch")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "extract: cancelled")
	}

	res := &ExtractionResult{Total: len(paths)}
	for i, rec := range slots {
		if rec == nil {
			res.Failed = append(res.Failed, ProjectID(paths[i]))
			continue
		}
		res.Records = append(res.Records, *rec)
	}

	x.log.Info("extract: complete",
		zap.Int("succeeded", res.Succeeded()),
		zap.Int("failed", len(res.Failed)),
		zap.Int("total", res.Total),
	)
	return res, nil
}

// LoadExtractions reads the phase 1 records already saved under
// outputDir/fase1_extracciones, in file name order. Unreadable files are
// logged and skipped.
func LoadExtractions(ctx context.Context, docs docstore.Store, outputDir string, log *zap.Logger) ([]enrich.ExtractionRecord, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dir := filepath.Join(outputDir, config.ExtractionsDir)
	paths, err := docs.List(ctx, dir, ".json")
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: list extractions in %s", dir)
	}

	var records []enrich.ExtractionRecord
	for _, path := range paths {
		if !strings.HasSuffix(path, "_extraction.json") {
			continue
		}
		var rec enrich.ExtractionRecord
		if err := docs.ReadJSON(ctx, path, &rec); err != nil {
			log.Warn("pipeline: skipping unreadable extraction", zap.String("path", path), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	log.Info("pipeline: extractions loaded", zap.Int("records", len(records)), zap.String("dir", dir))
	return records, nil
}
