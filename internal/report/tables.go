// Package report shapes grade and extraction data into render-ready rows and
// formats them as markdown and CSV.
package report

import (
	"sort"
	"strings"

	"github.com/sells-group/entrega-cli/internal/enrich"
	"github.com/sells-group/entrega-cli/internal/grades"
)

// CriterionRow is one line of the criteria table.
type CriterionRow struct {
	Name      string
	MaxPoints float64
}

// CriteriaTable returns one row per criterion followed by the total row.
func CriteriaTable(t *grades.GradeTable) (rows []CriterionRow, total CriterionRow) {
	total = CriterionRow{Name: "TOTAL"}
	if t == nil {
		return nil, total
	}
	rows = make([]CriterionRow, 0, len(t.Criteria))
	for _, c := range t.Criteria {
		rows = append(rows, CriterionRow{Name: c.Name, MaxPoints: c.MaxPoints})
	}
	total.MaxPoints = t.MaxTotalPoints
	return rows, total
}

// RankedGroup is one line of the grade ranking.
type RankedGroup struct {
	GroupID string
	Tutor   string
	Points  float64
	Percent float64
}

// Ranking lists graded groups (total > 0) from best to worst. Ties keep
// table order.
func Ranking(t *grades.GradeTable) []RankedGroup {
	if t == nil {
		return nil
	}
	var ranked []RankedGroup
	for _, g := range t.Groups {
		if g.TotalPoints <= 0 {
			continue
		}
		ranked = append(ranked, RankedGroup{
			GroupID: g.GroupID,
			Tutor:   g.Tutor,
			Points:  g.TotalPoints,
			Percent: t.Percent(g.TotalPoints),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Points > ranked[j].Points })
	return ranked
}

// CriterionAchievement is how the groups did on one criterion.
type CriterionAchievement struct {
	Name      string
	MaxPoints float64
	Mean      float64
	Percent   float64
	Evaluated int
}

// Achievement averages each criterion over the groups that scored above
// zero on it. Criteria nobody scored on are left out.
func Achievement(t *grades.GradeTable) []CriterionAchievement {
	if t == nil {
		return nil
	}
	var out []CriterionAchievement
	for _, c := range t.Criteria {
		var sum float64
		n := 0
		for _, g := range t.Groups {
			if score, ok := g.Scores[c.Name]; ok && score > 0 {
				sum += score
				n++
			}
		}
		if n == 0 {
			continue
		}
		a := CriterionAchievement{
			Name:      c.Name,
			MaxPoints: c.MaxPoints,
			Mean:      sum / float64(n),
			Evaluated: n,
		}
		if c.MaxPoints > 0 {
			a.Percent = a.Mean * 100 / c.MaxPoints
		}
		out = append(out, a)
	}
	return out
}

// Decision categories of the consolidated decisions table.
const (
	CategoryTechnical = "Técnica"
	CategoryBusiness  = "Negocio"
	CategoryRisk      = "Riesgo"

	notAvailable = "N/A"
)

// DecisionColumns is the header of the consolidated decisions table.
var DecisionColumns = []string{"Proyecto", "Dominio", "Categoría", "Tipo", "Decisión"}

// DecisionRow is one decision of one project.
type DecisionRow struct {
	Project  string
	Domain   string
	Category string
	Kind     string
	Decision string
}

// DecisionRows flattens the technical decisions, business decisions and
// risks of every record into table rows, in record order.
func DecisionRows(records []enrich.ExtractionRecord) []DecisionRow {
	var rows []DecisionRow
	for i := range records {
		r := &records[i]
		project := r.ProjectID()
		if project == "" {
			project = "unknown"
		}
		domain := orNA(r.Domain())

		add := func(category, kind, decision string) {
			rows = append(rows, DecisionRow{
				Project:  project,
				Domain:   domain,
				Category: category,
				Kind:     kind,
				Decision: decision,
			})
		}

		if d := r.DecisionesTecnicas; d != nil {
			add(CategoryTechnical, "arquitectura", orNA(d.Arquitectura))
			add(CategoryTechnical, "modelos_llm", joinList(d.ModelosLLM))
			add(CategoryTechnical, "tecnologias", joinList(d.Tecnologias))
			add(CategoryTechnical, "integraciones", joinList(d.Integraciones))
		}
		if d := r.DecisionesNegocio; d != nil {
			add(CategoryBusiness, "usuarios_objetivo", joinList(d.UsuariosObjetivo))
			add(CategoryBusiness, "metricas_exito", joinList(d.MetricasExito))
			add(CategoryBusiness, "alcance_mvp", orNA(d.AlcanceMVP))
			add(CategoryBusiness, "escalabilidad", orNA(d.Escalabilidad))
		}
		for _, risk := range r.RiesgosIdentificados {
			add(CategoryRisk, orNA(risk.Categoria),
				orNA(risk.Riesgo)+" | Mitigación: "+orNA(risk.Mitigacion))
		}
	}
	return rows
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

// joinList joins list values with ", ". An empty list stays empty.
func joinList(items []string) string {
	return strings.Join(items, ", ")
}
