package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/entrega-cli/internal/grades"
)

// GradesSummaryMarkdown renders the grade summary of one entrega: general
// statistics, the criteria table, the ranking, and per-criterion performance.
func GradesSummaryMarkdown(t *grades.GradeTable, entrega int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Resumen de Calificaciones - Entrega %d\n\n", entrega)

	if stats := grades.SummaryStatistics(t); !stats.IsEmpty() {
		b.WriteString("## Estadísticas Generales\n\n")
		fmt.Fprintf(&b, "- **Total de grupos**: %d\n", stats.TotalGroups)
		fmt.Fprintf(&b, "- **Grupos calificados**: %d\n", stats.GradedGroups)
		fmt.Fprintf(&b, "- **Promedio**: %.2f / %s\n", stats.Mean, formatPoints(stats.MaxTotalPoints))
		fmt.Fprintf(&b, "- **Nota máxima**: %.2f\n", stats.Max)
		fmt.Fprintf(&b, "- **Nota mínima**: %.2f\n\n", stats.Min)
	}

	rows, total := CriteriaTable(t)
	b.WriteString("## Criterios de Evaluación\n\n")
	b.WriteString("| Criterio | Puntos Máximos |\n")
	b.WriteString("|----------|----------------|\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "| %s | %s |\n", escapeCell(r.Name), formatPoints(r.MaxPoints))
	}
	fmt.Fprintf(&b, "| **%s** | **%s** |\n\n", total.Name, formatPoints(total.MaxPoints))

	b.WriteString("## Distribución de Notas\n\n")
	b.WriteString("| Grupo | Tutor | Puntos Totales |\n")
	b.WriteString("|-------|-------|----------------|\n")
	for _, g := range Ranking(t) {
		fmt.Fprintf(&b, "| %s | %s | %.2f (%.1f%%) |\n", escapeCell(g.GroupID), escapeCell(g.Tutor), g.Points, g.Percent)
	}
	b.WriteString("\n")

	b.WriteString("## Desempeño por Criterio\n\n")
	for _, a := range Achievement(t) {
		fmt.Fprintf(&b, "### %s\n\n", a.Name)
		fmt.Fprintf(&b, "- Promedio: %.2f / %s (%.1f%%)\n", a.Mean, formatPoints(a.MaxPoints), a.Percent)
		fmt.Fprintf(&b, "- Grupos evaluados: %d\n\n", a.Evaluated)
	}

	return b.String()
}

// WriteDecisionsCSV writes the decisions table with its header row.
func WriteDecisionsCSV(w io.Writer, rows []DecisionRow) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(DecisionColumns); err != nil {
		return eris.Wrap(err, "decisions csv: write header")
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Project, r.Domain, r.Category, r.Kind, r.Decision}); err != nil {
			return eris.Wrap(err, "decisions csv: write row")
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "decisions csv: flush")
	}
	return nil
}

// StripMarkdownFence removes a ```markdown (or bare ```) fence that a model
// wrapped around its answer.
func StripMarkdownFence(text string) string {
	s := strings.TrimSpace(text)
	if rest, ok := strings.CutPrefix(s, "```markdown"); ok {
		s = rest
	} else if rest, ok := strings.CutPrefix(s, "```md"); ok {
		s = rest
	} else if rest, ok := strings.CutPrefix(s, "```"); ok {
		s = rest
	}
	if rest, ok := strings.CutSuffix(s, "```"); ok {
		s = rest
	}
	return strings.TrimSpace(s)
}

// formatPoints prints whole numbers without decimals and keeps the rest as
// given ("40", "7.5").
func formatPoints(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
