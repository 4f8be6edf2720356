package grades

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// groupNumberRe pulls the group number out of ids like "grupo-3",
// "Grupo_03" or "grupo 3 final".
var groupNumberRe = regexp.MustCompile(`(?i)grupo[\s_-]?(\d+)`)

// Matcher resolves free-text project identifiers to group records.
// It holds no state between calls.
type Matcher struct {
	log *zap.Logger
}

// NewMatcher creates a Matcher that reports diagnostics to log.
// A nil logger discards diagnostics.
func NewMatcher(log *zap.Logger) *Matcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Matcher{log: log}
}

// Match finds the group a project belongs to. The first group (in table
// order) whose id appears inside projectID wins, case-insensitively. Failing
// that, a group number is pulled from projectID and looked up as the
// canonical "GrupoNN" id. Returns false when nothing matches.
func (m *Matcher) Match(projectID string, t *GradeTable) (GroupGrade, bool) {
	if t == nil || projectID == "" {
		return GroupGrade{}, false
	}

	lower := strings.ToLower(projectID)
	for _, g := range t.Groups {
		if g.GroupID == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(g.GroupID)) {
			m.log.Debug("grades: project matched by id",
				zap.String("project", projectID),
				zap.String("group", g.GroupID),
			)
			return g, true
		}
	}

	if canonical, ok := CanonicalGroupID(projectID); ok {
		if g, found := t.Group(canonical); found {
			m.log.Debug("grades: project matched by group number",
				zap.String("project", projectID),
				zap.String("group", g.GroupID),
			)
			return g, true
		}
	}

	m.log.Debug("grades: no group for project", zap.String("project", projectID))
	return GroupGrade{}, false
}

// CanonicalGroupID rebuilds the "GrupoNN" id from the first group number
// found in s, zero-padded to two digits.
func CanonicalGroupID(s string) (string, bool) {
	m := groupNumberRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%s%02d", GroupRowPrefix, n), true
}
