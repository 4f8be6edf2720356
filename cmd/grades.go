package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/entrega-cli/internal/config"
	"github.com/sells-group/entrega-cli/internal/docstore"
	"github.com/sells-group/entrega-cli/internal/grades"
	"github.com/sells-group/entrega-cli/internal/llm"
	"github.com/sells-group/entrega-cli/internal/pipeline"
	"github.com/sells-group/entrega-cli/internal/report"
)

var gradesCmd = &cobra.Command{
	Use:   "grades",
	Short: "Work with grade exports",
	Long:  "Commands for summarizing and comparing grade exports and for contrasting them with saved extractions.",
}

// -- grades summary --

var gradesSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the markdown summary of a grades export",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("csv")
		entrega, _ := cmd.Flags().GetInt("entrega")
		return gradesSummary(cmd.Context(), os.Stdout, docstore.NewFS("", zap.L()), path, entrega)
	},
}

// -- grades compare --

var gradesCompareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare the group results of two grades exports",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, _ := cmd.Flags().GetString("a")
		b, _ := cmd.Flags().GetString("b")
		return gradesCompare(cmd.Context(), os.Stdout, docstore.NewFS("", zap.L()), a, b)
	},
}

// -- grades enrich --

var gradesEnrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Contrast saved extractions of an entrega with its grades",
	Long:  "Runs the grades phase over the extractions already saved in the entrega's output directory. The comparative report needs --report and a configured model.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		n, _ := cmd.Flags().GetInt("entrega")
		csvPath, _ := cmd.Flags().GetString("csv")
		withReport, _ := cmd.Flags().GetBool("report")

		e, err := lookupEntrega(n)
		if err != nil {
			return err
		}
		if csvPath != "" {
			e.GradesCSV = csvPath
		}

		var completer llm.Completer
		if withReport {
			if err := cfg.Validate(); err != nil {
				return err
			}
			if completer, err = initCompleter(ctx); err != nil {
				return err
			}
		}

		opts := llm.OptionsFromConfig(cfg.LLM)
		opts.Model = cfg.Model()

		res, err := gradesEnrich(ctx, docstore.NewFS("", zap.L()), completer, opts, e)
		if err != nil {
			return err
		}
		return writeJSON(os.Stdout, res.Analysis.Summary)
	},
}

func init() {
	gradesSummaryCmd.Flags().String("csv", "", "grades export (.csv or .xlsx)")
	gradesSummaryCmd.Flags().Int("entrega", 1, "entrega number shown in the title")
	_ = gradesSummaryCmd.MarkFlagRequired("csv")

	gradesCompareCmd.Flags().String("a", "", "earlier grades export")
	gradesCompareCmd.Flags().String("b", "", "later grades export")
	_ = gradesCompareCmd.MarkFlagRequired("a")
	_ = gradesCompareCmd.MarkFlagRequired("b")

	gradesEnrichCmd.Flags().Int("entrega", 0, "entrega number (from the entregas file)")
	gradesEnrichCmd.Flags().String("csv", "", "grades export, overriding the entregas file")
	gradesEnrichCmd.Flags().Bool("report", false, "generate the comparative report with the configured model")
	_ = gradesEnrichCmd.MarkFlagRequired("entrega")

	gradesCmd.AddCommand(gradesSummaryCmd)
	gradesCmd.AddCommand(gradesCompareCmd)
	gradesCmd.AddCommand(gradesEnrichCmd)
	rootCmd.AddCommand(gradesCmd)
}

func gradesSummary(ctx context.Context, out io.Writer, docs docstore.Store, path string, entrega int) error {
	t, err := grades.NewParser(zap.L()).Load(ctx, docs, path)
	if err != nil {
		return eris.Wrap(err, "grades summary")
	}
	_, err = fmt.Fprint(out, report.GradesSummaryMarkdown(t, entrega))
	return err
}

func gradesCompare(ctx context.Context, out io.Writer, docs docstore.Store, pathA, pathB string) error {
	p := grades.NewParser(zap.L())
	a, err := p.Load(ctx, docs, pathA)
	if err != nil {
		return eris.Wrap(err, "grades compare")
	}
	b, err := p.Load(ctx, docs, pathB)
	if err != nil {
		return eris.Wrap(err, "grades compare")
	}
	return writeJSON(out, grades.Compare(a, b))
}

// gradesEnrich runs the grades phase over the extractions saved for e.
// completer may be nil.
func gradesEnrich(ctx context.Context, docs docstore.Store, completer llm.Completer, opts llm.Options, e config.Entrega) (*pipeline.GradesResult, error) {
	if e.GradesCSV == "" {
		return nil, eris.Errorf("entrega %d has no grades export configured", e.Number)
	}
	records, err := pipeline.LoadExtractions(ctx, docs, e.OutputDir, zap.L())
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, eris.Errorf("no saved extractions for entrega %d; run analyze first", e.Number)
	}

	phase := pipeline.NewGradesPhase(completer, docs, opts, zap.L())
	res, err := phase.Run(ctx, records, e.GradesCSV, e.Number, filepath.Join(e.OutputDir, config.GradesDir))
	if err != nil {
		return nil, eris.Wrapf(err, "grades enrich entrega %d", e.Number)
	}
	return res, nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
