package grades

import (
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Row-type markers and header names of the grades export.
const (
	PointsRowKeyword      = "Puntos"
	DescriptionRowKeyword = "Descripción"
	GroupRowPrefix        = "Grupo"

	totalPointsHeader = "Puntos totales"
	feedbackHeader    = "Retroalimentación"

	// fixedColumns are group id, repository, tutor, and the row-type marker.
	fixedColumns = 4
	markerColumn = 3
)

// commentSuffixes mark a header as the comment column of the criterion
// immediately before it.
var commentSuffixes = []string{" Comments", " Comentarios"}

// KindParseDegradation tags diagnostics for cells or rows that were
// defaulted or skipped instead of failing the parse.
const KindParseDegradation = "parse_degradation"

// ParseFloatSpanish parses a decimal-comma number ("7,5" -> 7.5). Empty cells
// are 0. Unparseable cells are 0 and reported to log as a parse degradation.
func ParseFloatSpanish(value string, log *zap.Logger) float64 {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0
	}

	// The comma is the only decimal mark; thousand separators are not
	// accepted in either convention.
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
	if err != nil {
		if log != nil {
			log.Warn("grades: could not parse number, using 0",
				zap.String("kind", KindParseDegradation),
				zap.String("value", value),
			)
		}
		return 0
	}
	return f
}

// criterionColumn records where a criterion lives in the header row.
type criterionColumn struct {
	name        string
	index       int
	hasComments bool
}

// Parser turns the raw cell grid of a grades export into a GradeTable.
// It holds no state between calls.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a Parser that reports diagnostics to log.
// A nil logger discards diagnostics.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log}
}

// Parse builds a GradeTable from rows. Row 0 is the header. Malformed input
// degrades to a partial or empty table; Parse never fails.
func (p *Parser) Parse(rows [][]string) *GradeTable {
	table := &GradeTable{}

	if len(rows) < 4 {
		p.log.Error("grades: not enough rows in export",
			zap.String("kind", KindParseDegradation),
			zap.Int("rows", len(rows)),
		)
		return table
	}

	headers := rows[0]
	columns := p.identifyCriteria(headers)
	p.log.Debug("grades: criteria identified", zap.Int("criteria", len(columns)))

	var pointsRow, descriptionRow []string
	dataStart := -1
	for idx, row := range rows[1:] {
		switch {
		case cell(row, markerColumn) == PointsRowKeyword:
			pointsRow = row
		case cell(row, markerColumn) == DescriptionRowKeyword:
			descriptionRow = row
		case isGroupRow(row):
			dataStart = idx + 1
		}
		if dataStart > 0 {
			break
		}
	}

	if pointsRow != nil && descriptionRow != nil {
		for _, col := range columns {
			c := RubricCriterion{
				Name:        col.name,
				MaxPoints:   ParseFloatSpanish(rawCell(pointsRow, col.index), p.log),
				Description: cell(descriptionRow, col.index),
				HasComments: col.hasComments,
			}
			table.Criteria = append(table.Criteria, c)
			table.MaxTotalPoints += c.MaxPoints
		}
		p.log.Info("grades: rubric parsed",
			zap.Int("criteria", len(table.Criteria)),
			zap.Float64("max_total_points", table.MaxTotalPoints),
		)
	} else {
		p.log.Warn("grades: rubric metadata rows missing, criteria left empty",
			zap.String("kind", KindParseDegradation),
			zap.Bool("points_row", pointsRow != nil),
			zap.Bool("description_row", descriptionRow != nil),
		)
	}

	if dataStart < 0 {
		p.log.Warn("grades: no group rows found", zap.String("kind", KindParseDegradation))
		return table
	}

	for _, row := range rows[dataStart:] {
		if len(row) < fixedColumns || !isGroupRow(row) {
			continue
		}
		table.Groups = append(table.Groups, p.parseGroup(row, headers, columns))
	}
	p.log.Info("grades: groups parsed", zap.Int("groups", len(table.Groups)))

	return table
}

func (p *Parser) parseGroup(row, headers []string, columns []criterionColumn) GroupGrade {
	g := GroupGrade{
		GroupID:    cell(row, 0),
		Repository: cell(row, 1),
		Tutor:      cell(row, 2),
		Scores:     make(map[string]float64, len(columns)),
		Comments:   make(map[string]string),
	}

	for _, col := range columns {
		if col.index < len(row) {
			g.Scores[col.name] = ParseFloatSpanish(row[col.index], p.log)
		}
		if col.hasComments {
			if comment := cell(row, col.index+1); comment != "" {
				g.Comments[col.name] = comment
			}
		}
	}

	n := len(headers)
	if n >= 2 && len(row) >= n-1 {
		g.TotalPoints = ParseFloatSpanish(row[n-2], p.log)
	}
	if n >= 1 && len(row) >= n {
		g.GeneralFeedback = strings.TrimSpace(row[n-1])
	}

	if len(row) < n {
		p.log.Debug("grades: short group row",
			zap.String("kind", KindParseDegradation),
			zap.String("group", g.GroupID),
			zap.Int("cells", len(row)),
			zap.Int("headers", n),
		)
	}

	return g
}

// identifyCriteria scans the header after the fixed columns. A criterion
// spans two columns when the next header is "<name> Comments".
func (p *Parser) identifyCriteria(headers []string) []criterionColumn {
	var columns []criterionColumn
	seen := make(map[string]bool)

	i := fixedColumns
	for i < len(headers) {
		header := strings.TrimSpace(headers[i])
		if header == totalPointsHeader || header == feedbackHeader || header == "" {
			break
		}

		hasComments := i+1 < len(headers) && isCommentHeaderFor(strings.TrimSpace(headers[i+1]), header)

		if seen[header] {
			p.log.Warn("grades: duplicate criterion header skipped",
				zap.String("kind", KindParseDegradation),
				zap.String("criterion", header),
				zap.Int("column", i),
			)
		} else {
			seen[header] = true
			columns = append(columns, criterionColumn{name: header, index: i, hasComments: hasComments})
		}

		if hasComments {
			i += 2
		} else {
			i++
		}
	}

	return columns
}

func isCommentHeaderFor(header, criterion string) bool {
	for _, suffix := range commentSuffixes {
		if header == criterion+suffix {
			return true
		}
	}
	return false
}

func isGroupRow(row []string) bool {
	return len(row) > 0 && strings.HasPrefix(strings.TrimSpace(row[0]), GroupRowPrefix)
}

// cell returns the trimmed value at idx, or "" when the row is too short.
func cell(row []string, idx int) string {
	return strings.TrimSpace(rawCell(row, idx))
}

func rawCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
