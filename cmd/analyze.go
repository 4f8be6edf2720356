package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/entrega-cli/internal/docstore"
	"github.com/sells-group/entrega-cli/internal/pipeline"
)

var (
	analyzeEntrega    int
	analyzeSkipGrades bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the full analysis of one entrega",
	Long:  "Extracts every project, consolidates the results and, when a grades export is configured, compares them with the grades.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(); err != nil {
			return err
		}

		e, err := lookupEntrega(analyzeEntrega)
		if err != nil {
			return err
		}
		if err := e.Validate(); err != nil {
			return eris.Wrapf(err, "entrega %d", analyzeEntrega)
		}

		completer, err := initCompleter(ctx)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p := pipeline.New(cfg, docstore.NewFS("", zap.L()), completer, st, zap.L())
		res, err := p.Run(ctx, e, pipeline.RunOptions{SkipGrades: analyzeSkipGrades})
		if err != nil {
			return eris.Wrapf(err, "analyze entrega %d", analyzeEntrega)
		}

		return printRunResult(os.Stdout, res)
	},
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeEntrega, "entrega", 0, "entrega number to analyze (from the entregas file)")
	analyzeCmd.Flags().BoolVar(&analyzeSkipGrades, "skip-grades", false, "skip the comparison with the grades export")
	_ = analyzeCmd.MarkFlagRequired("entrega")
	rootCmd.AddCommand(analyzeCmd)
}

// printRunResult writes the run summary as indented JSON, followed by the
// projects that could not be extracted.
func printRunResult(out io.Writer, res *pipeline.Result) error {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res.Summary); err != nil {
		return eris.Wrap(err, "encode summary")
	}
	if res.Extraction != nil && len(res.Extraction.Failed) > 0 {
		_, _ = fmt.Fprintf(out, "\nFailed projects (%d):\n", len(res.Extraction.Failed))
		for _, id := range res.Extraction.Failed {
			_, _ = fmt.Fprintf(out, "  - %s\n", id)
		}
	}
	return nil
}
