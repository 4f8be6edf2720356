package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/entrega-cli/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	summary := model.NewRunSummary(now, 6, 5, true, "resultados")
	runs := []model.Run{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Entrega:   2,
			Status:    model.RunStatusComplete,
			Summary:   &summary,
			CreatedAt: now,
			UpdatedAt: now.Add(2 * time.Minute),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Entrega:   1,
			Status:    model.RunStatusRunning,
			CreatedAt: now.Add(-1 * time.Hour),
			UpdatedAt: now.Add(-30 * time.Minute),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ENTREGA")
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "abc12345")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "5/6")
	assert.Contains(t, output, "running")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "2m0s")
}

func TestComputeRunStats(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	full := model.NewRunSummary(now, 4, 4, true, "out")
	partial := model.NewRunSummary(now, 6, 3, false, "out")

	runs := []model.Run{
		{ID: "1", Status: model.RunStatusComplete, Summary: &full, CreatedAt: now, UpdatedAt: now.Add(60 * time.Second)},
		{ID: "2", Status: model.RunStatusComplete, Summary: &partial, CreatedAt: now, UpdatedAt: now.Add(120 * time.Second)},
		{ID: "3", Status: model.RunStatusFailed, Error: "no project files found", CreatedAt: now, UpdatedAt: now},
		{ID: "4", Status: model.RunStatusRunning, CreatedAt: now, UpdatedAt: now},
	}

	s := computeRunStats(runs)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Complete)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Running)
	assert.Equal(t, 10, s.Projects)
	assert.Equal(t, 7, s.Extracted)
	assert.Equal(t, 1, s.Consolidated)
	assert.InDelta(t, 90.0, s.AvgDurSecs, 0.01)

	var buf bytes.Buffer
	formatRunStats(&buf, s)
	assert.Contains(t, buf.String(), "Projects extracted:")
	assert.Contains(t, buf.String(), "7/10")
	assert.Contains(t, buf.String(), "90.0s")
}

func TestComputeRunStats_Empty(t *testing.T) {
	s := computeRunStats(nil)
	assert.Zero(t, s.Total)
	assert.Zero(t, s.AvgDurSecs)
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
}
