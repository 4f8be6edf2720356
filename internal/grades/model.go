// Package grades parses rubric grade exports and computes statistics,
// comparisons, and project-to-group matches over the parsed tables.
package grades

// RubricCriterion is one named, score-bounded dimension of a rubric.
type RubricCriterion struct {
	Name        string  `json:"nombre"`
	MaxPoints   float64 `json:"puntos_maximos"`
	Description string  `json:"descripcion"`
	HasComments bool    `json:"tiene_comentarios"`
}

// GroupGrade holds the grade record of a single student group.
// TotalPoints comes from its own column and may differ from the sum of Scores.
type GroupGrade struct {
	GroupID         string             `json:"grupo_id"`
	Repository      string             `json:"repositorio"`
	Tutor           string             `json:"tutor"`
	Scores          map[string]float64 `json:"calificaciones"`
	Comments        map[string]string  `json:"comentarios"`
	TotalPoints     float64            `json:"puntos_totales"`
	GeneralFeedback string             `json:"retroalimentacion_general"`
}

// GradeTable is the normalized content of one grades export.
type GradeTable struct {
	Criteria       []RubricCriterion `json:"criterios"`
	Groups         []GroupGrade      `json:"grupos"`
	MaxTotalPoints float64           `json:"puntos_totales_posibles"`
}

// Group returns the group with the exact given id.
func (t *GradeTable) Group(groupID string) (GroupGrade, bool) {
	if t == nil {
		return GroupGrade{}, false
	}
	for _, g := range t.Groups {
		if g.GroupID == groupID {
			return g, true
		}
	}
	return GroupGrade{}, false
}

// Criterion returns the criterion with the given name.
func (t *GradeTable) Criterion(name string) (RubricCriterion, bool) {
	if t == nil {
		return RubricCriterion{}, false
	}
	for _, c := range t.Criteria {
		if c.Name == name {
			return c, true
		}
	}
	return RubricCriterion{}, false
}

// Percent normalizes points against this table's own maximum.
// Returns 0 when the table has no maximum.
func (t *GradeTable) Percent(points float64) float64 {
	if t == nil || t.MaxTotalPoints <= 0 {
		return 0
	}
	return points * 100 / t.MaxTotalPoints
}

// IsEmpty reports whether the table carries neither criteria nor groups.
func (t *GradeTable) IsEmpty() bool {
	return t == nil || (len(t.Criteria) == 0 && len(t.Groups) == 0)
}
