package enrich

import (
	"fmt"
	"maps"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/entrega-cli/internal/grades"
)

// Grade thresholds (percent) for flagging a grade that disagrees with the
// extracted assessment.
const (
	highGradePercent = 80.0
	lowGradePercent  = 60.0
)

// DiscrepancyKind names the way a grade and an assessment disagree.
type DiscrepancyKind string

// Discrepancy kinds.
const (
	HighGradeManyWeaknesses DiscrepancyKind = "high_grade_many_weaknesses"
	LowGradeManyStrengths   DiscrepancyKind = "low_grade_many_strengths"
)

// Correlation relates one graded project's grade to the balance of its
// extracted strengths and weaknesses.
type Correlation struct {
	ProjectID     string  `json:"proyecto_id"`
	GroupID       string  `json:"grupo_id"`
	GradePercent  float64 `json:"nota_porcentaje"`
	StrengthCount int     `json:"num_fortalezas"`
	WeaknessCount int     `json:"num_debilidades"`
	Balance       int     `json:"balance"`
}

// Discrepancy is a correlation flagged by one of the discrepancy rules.
type Discrepancy struct {
	Correlation
	Kind        DiscrepancyKind `json:"tipo"`
	Description string          `json:"descripcion"`
}

// Summary aggregates the correlations of one analysis.
type Summary struct {
	AnalyzedCount    int     `json:"total_proyectos_analizados"`
	MeanGrade        float64 `json:"nota_promedio"`
	MeanBalance      float64 `json:"balance_promedio"`
	DiscrepancyCount int     `json:"proyectos_con_discrepancias"`
}

// Analysis is the grade-versus-extraction comparison of one entrega.
type Analysis struct {
	Summary       Summary       `json:"resumen"`
	Correlations  []Correlation `json:"correlaciones"`
	Discrepancies []Discrepancy `json:"discrepancias"`
	Insights      []string      `json:"insights"`
}

// Enricher attaches grades to extraction records.
type Enricher struct {
	matcher *grades.Matcher
	log     *zap.Logger
}

// NewEnricher creates an Enricher. A nil logger discards diagnostics.
func NewEnricher(log *zap.Logger) *Enricher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Enricher{matcher: grades.NewMatcher(log), log: log}
}

// Enrich returns copies of records with Calificacion resolved against t.
// Unmatched projects get a nil Calificacion. records is not modified.
func (e *Enricher) Enrich(records []ExtractionRecord, t *grades.GradeTable) []ExtractionRecord {
	out := make([]ExtractionRecord, 0, len(records))
	matched := 0

	for i := range records {
		rec := records[i].Clone()
		rec.enriched = true
		rec.Calificacion = nil

		if g, ok := e.matcher.Match(rec.ProjectID(), t); ok {
			rec.Calificacion = summarize(g, t)
			matched++
			e.log.Debug("enrich: grade attached",
				zap.String("project", rec.ProjectID()),
				zap.Float64("points", g.TotalPoints),
				zap.Float64("possible", t.MaxTotalPoints),
			)
		} else {
			e.log.Warn("enrich: no grade found for project", zap.String("project", rec.ProjectID()))
		}
		out = append(out, rec)
	}

	e.log.Info("enrich: records enriched",
		zap.Int("with_grade", matched),
		zap.Int("records", len(records)),
	)
	return out
}

func summarize(g grades.GroupGrade, t *grades.GradeTable) *GradeSummary {
	return &GradeSummary{
		GroupID:         g.GroupID,
		Tutor:           g.Tutor,
		TotalPoints:     g.TotalPoints,
		PossiblePoints:  t.MaxTotalPoints,
		Percent:         t.Percent(g.TotalPoints),
		CriterionScores: maps.Clone(g.Scores),
		Comments:        maps.Clone(g.Comments),
		GeneralFeedback: g.GeneralFeedback,
	}
}

// Analyze correlates each graded record's grade with its strength and
// weakness counts and flags the disagreements. Records without a grade are
// ignored.
func (e *Enricher) Analyze(enriched []ExtractionRecord) Analysis {
	a := Analysis{
		Correlations:  []Correlation{},
		Discrepancies: []Discrepancy{},
		Insights:      []string{},
	}

	for i := range enriched {
		rec := &enriched[i]
		if rec.Calificacion == nil {
			continue
		}

		projectID := rec.ProjectID()
		if projectID == "" {
			projectID = "unknown"
		}
		c := Correlation{
			ProjectID:     projectID,
			GroupID:       rec.Calificacion.GroupID,
			GradePercent:  round2(rec.Calificacion.Percent),
			StrengthCount: rec.StrengthCount(),
			WeaknessCount: rec.WeaknessCount(),
		}
		c.Balance = c.StrengthCount - c.WeaknessCount

		if d, ok := classify(c, rec.Calificacion.Percent); ok {
			a.Discrepancies = append(a.Discrepancies, d)
		}
		a.Correlations = append(a.Correlations, c)
	}

	if len(a.Correlations) == 0 {
		e.log.Warn("enrich: no graded projects to analyze")
		return a
	}

	var gradeSum float64
	var balanceSum int
	for _, c := range a.Correlations {
		gradeSum += c.GradePercent
		balanceSum += c.Balance
	}
	n := float64(len(a.Correlations))
	a.Summary = Summary{
		AnalyzedCount:    len(a.Correlations),
		MeanGrade:        gradeSum / n,
		MeanBalance:      float64(balanceSum) / n,
		DiscrepancyCount: len(a.Discrepancies),
	}
	return a
}

// classify applies the discrepancy rules in order; the first match wins.
func classify(c Correlation, percent float64) (Discrepancy, bool) {
	switch {
	case percent > highGradePercent && c.WeaknessCount > c.StrengthCount:
		return Discrepancy{
			Correlation: c,
			Kind:        HighGradeManyWeaknesses,
			Description: fmt.Sprintf("Nota alta (%.1f%%) pero más debilidades (%d) que fortalezas (%d)",
				percent, c.WeaknessCount, c.StrengthCount),
		}, true
	case percent < lowGradePercent && c.StrengthCount > c.WeaknessCount:
		return Discrepancy{
			Correlation: c,
			Kind:        LowGradeManyStrengths,
			Description: fmt.Sprintf("Nota baja (%.1f%%) pero más fortalezas (%d) que debilidades (%d)",
				percent, c.StrengthCount, c.WeaknessCount),
		}, true
	default:
		return Discrepancy{}, false
	}
}

// Sample is one example project handed to the comparative report.
type Sample struct {
	ProjectID     string   `json:"proyecto_id"`
	GroupID       string   `json:"grupo_id"`
	Points        float64  `json:"nota"`
	Percent       float64  `json:"porcentaje"`
	Strengths     []string `json:"fortalezas"`
	Weaknesses    []string `json:"debilidades"`
	TutorComments []string `json:"comentarios_tutor"`
}

// Sample caps.
const (
	sampleListItems = 3
	sampleComments  = 2
)

// ReportSamples returns the n best and n worst graded projects by points,
// best first. A project can appear in both halves when fewer than 2n
// projects are graded.
func ReportSamples(enriched []ExtractionRecord, n int) []Sample {
	var graded []*ExtractionRecord
	for i := range enriched {
		if enriched[i].Calificacion != nil {
			graded = append(graded, &enriched[i])
		}
	}
	if len(graded) == 0 || n <= 0 {
		return []Sample{}
	}

	sort.SliceStable(graded, func(i, j int) bool {
		return graded[i].Calificacion.TotalPoints > graded[j].Calificacion.TotalPoints
	})

	top := graded[:min(n, len(graded))]
	bottom := graded[max(len(graded)-n, 0):]

	samples := make([]Sample, 0, len(top)+len(bottom))
	for _, rec := range append(append([]*ExtractionRecord{}, top...), bottom...) {
		samples = append(samples, Sample{
			ProjectID:     rec.ProjectID(),
			GroupID:       rec.Calificacion.GroupID,
			Points:        rec.Calificacion.TotalPoints,
			Percent:       rec.Calificacion.Percent,
			Strengths:     headOf(rec.FortalezasGenerales, sampleListItems),
			Weaknesses:    headOf(rec.DebilidadesGenerales, sampleListItems),
			TutorComments: headOf(sortedValues(rec.Calificacion.Comments), sampleComments),
		})
	}
	return samples
}

func headOf(s []string, n int) []string {
	out := make([]string, 0, min(n, len(s)))
	return append(out, s[:min(n, len(s))]...)
}

// sortedValues returns the map's values ordered by key.
func sortedValues(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, 0, len(keys))
	for _, k := range keys {
		values = append(values, m[k])
	}
	return values
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
