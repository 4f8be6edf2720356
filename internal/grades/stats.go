package grades

import (
	"math"
	"sort"
)

// significantDelta is the normalized-percentage change a group must exceed
// to count as improved or regressed between two entregas.
const significantDelta = 5.0

// Stats summarizes the graded groups of a table.
type Stats struct {
	TotalGroups    int     `json:"total_grupos"`
	GradedGroups   int     `json:"grupos_calificados"`
	Mean           float64 `json:"promedio"`
	Max            float64 `json:"nota_maxima"`
	Min            float64 `json:"nota_minima"`
	MaxTotalPoints float64 `json:"puntos_totales_posibles"`
}

// IsEmpty reports whether no group qualified for statistics.
func (s Stats) IsEmpty() bool {
	return s.GradedGroups == 0
}

// SummaryStatistics computes statistics over groups with TotalPoints > 0.
// A total of exactly zero is read as "not graded yet", so groups that really
// earned zero are left out as well. Returns the zero Stats when no group
// qualifies.
func SummaryStatistics(t *GradeTable) Stats {
	if t == nil || len(t.Groups) == 0 {
		return Stats{}
	}

	var sum float64
	lo, hi := math.Inf(1), math.Inf(-1)
	graded := 0
	for _, g := range t.Groups {
		if g.TotalPoints <= 0 {
			continue
		}
		graded++
		sum += g.TotalPoints
		lo = math.Min(lo, g.TotalPoints)
		hi = math.Max(hi, g.TotalPoints)
	}
	if graded == 0 {
		return Stats{}
	}

	return Stats{
		TotalGroups:    len(t.Groups),
		GradedGroups:   graded,
		Mean:           sum / float64(graded),
		Max:            hi,
		Min:            lo,
		MaxTotalPoints: t.MaxTotalPoints,
	}
}

// GroupDelta is the change of one group between entrega A and entrega B.
type GroupDelta struct {
	GroupID     string  `json:"grupo_id"`
	PointsA     float64 `json:"entrega1_puntos"`
	PointsB     float64 `json:"entrega2_puntos"`
	NormalizedA float64 `json:"entrega1_normalizado"`
	NormalizedB float64 `json:"entrega2_normalizado"`
	Delta       float64 `json:"diferencia"`
}

// ComparisonResult buckets the groups present in two tables by how their
// normalized grade moved.
type ComparisonResult struct {
	CommonGroups []string     `json:"grupos_comunes"`
	Improved     []GroupDelta `json:"mejoras"`
	Regressed    []GroupDelta `json:"retrocesos"`
	Stable       []GroupDelta `json:"estables"`
}

// Compare matches groups of a and b by exact id and classifies the change in
// their normalized grade. Each side is normalized by its own maximum, so
// tables built from different rubric versions compare fairly.
func Compare(a, b *GradeTable) ComparisonResult {
	res := ComparisonResult{
		CommonGroups: []string{},
		Improved:     []GroupDelta{},
		Regressed:    []GroupDelta{},
		Stable:       []GroupDelta{},
	}
	if a == nil || b == nil {
		return res
	}

	inB := make(map[string]GroupGrade, len(b.Groups))
	for _, g := range b.Groups {
		if _, dup := inB[g.GroupID]; !dup {
			inB[g.GroupID] = g
		}
	}

	seen := make(map[string]bool)
	for _, ga := range a.Groups {
		gb, ok := inB[ga.GroupID]
		if !ok || seen[ga.GroupID] {
			continue
		}
		seen[ga.GroupID] = true
		res.CommonGroups = append(res.CommonGroups, ga.GroupID)

		pctA := a.Percent(ga.TotalPoints)
		pctB := b.Percent(gb.TotalPoints)
		delta := pctB - pctA

		d := GroupDelta{
			GroupID:     ga.GroupID,
			PointsA:     ga.TotalPoints,
			PointsB:     gb.TotalPoints,
			NormalizedA: round2(pctA),
			NormalizedB: round2(pctB),
			Delta:       round2(delta),
		}

		switch {
		case delta > significantDelta:
			res.Improved = append(res.Improved, d)
		case delta < -significantDelta:
			res.Regressed = append(res.Regressed, d)
		default:
			res.Stable = append(res.Stable, d)
		}
	}

	sort.Strings(res.CommonGroups)
	sort.SliceStable(res.Improved, func(i, j int) bool { return res.Improved[i].Delta > res.Improved[j].Delta })
	sort.SliceStable(res.Regressed, func(i, j int) bool { return res.Regressed[i].Delta < res.Regressed[j].Delta })
	sort.SliceStable(res.Stable, func(i, j int) bool { return res.Stable[i].GroupID < res.Stable[j].GroupID })

	return res
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
