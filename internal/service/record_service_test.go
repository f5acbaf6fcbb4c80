package service

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"quizwrap/internal/model"
)

func seedRecords(t *testing.T, env *testEnv, counts ...int) {
	t.Helper()
	for i, c := range counts {
		rec := &model.SessionRecord{
			ID:             string(rune('a' + i)),
			Identity:       model.Identity{Name: "Student", RollNumber: string(rune('A' + i))},
			FocusLossCount: c,
			RecordedAt:     env.now,
			OutcomeLabel:   model.OutcomeLabel(c),
		}
		require.NoError(t, env.records.Append(context.Background(), rec))
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
		want   model.Summary
	}{
		{"empty", nil, model.Summary{}},
		{"mixed", []int{0, 2, 0, 5}, model.Summary{Count: 4, CountWithFocusLoss: 2, CountWithoutFocusLoss: 2, AverageFocusLoss: 1.8, MaxFocusLoss: 5}},
		{"all clean", []int{0, 0}, model.Summary{Count: 2, CountWithoutFocusLoss: 2}},
		{"rounds to one decimal", []int{1, 1, 2}, model.Summary{Count: 3, CountWithFocusLoss: 3, AverageFocusLoss: 1.3, MaxFocusLoss: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := make([]model.SessionRecord, 0, len(tt.counts))
			for _, c := range tt.counts {
				records = append(records, model.SessionRecord{FocusLossCount: c})
			}
			assert.Equal(t, tt.want, Summarize(records))
		})
	}
}

func TestRecordService_ClearThenSummarize(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(true)
	seedRecords(t, env, 0, 2, 0, 5)

	n, err := env.records.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	sum, err := env.records.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Summary{}, *sum)

	last := env.bc.toInstructor[len(env.bc.toInstructor)-1]
	assert.Equal(t, MsgRecordsCleared, last.Type)
}

func TestRecordService_ExportWorkbook(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(true)
	env.now = time.Date(2026, 3, 1, 14, 5, 9, 0, time.UTC)
	seedRecords(t, env, 0, 2, 0, 5)

	art, err := env.records.Export(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "quiz_results_20260301_140509.xlsx", art.FileName)
	assert.Equal(t, contentTypeXLSX, art.ContentType)

	f, err := excelize.OpenReader(bytes.NewReader(art.Data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetRecords, sheetSummary}, f.GetSheetList())

	rows, err := f.GetRows(sheetRecords)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"Name", "Roll Number", "Tab Changes", "Recorded At", "Status"}, rows[0])
	assert.Equal(t, []string{"Student", "B", "2", "2026-03-01 14:05:09", "Warning: 2 tab changes"}, rows[2])

	summary, err := f.GetRows(sheetSummary)
	require.NoError(t, err)
	require.Len(t, summary, 6)
	assert.Equal(t, []string{"Total Students", "4"}, summary[1])
	assert.Equal(t, []string{"Average Tab Changes", "1.8"}, summary[4])
	assert.Equal(t, []string{"Max Tab Changes", "5"}, summary[5])
}

func TestRecordService_ExportJSON(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(true)
	seedRecords(t, env, 3)

	art, err := env.records.Export(ctx, "JSON")
	require.NoError(t, err)
	assert.Equal(t, contentTypeJSON, art.ContentType)
	assert.Contains(t, art.FileName, ".json")

	var doc struct {
		Records []model.SessionRecord `json:"records"`
		Summary []struct {
			Label string  `json:"label"`
			Value float64 `json:"value"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(art.Data, &doc))
	require.Len(t, doc.Records, 1)
	assert.Equal(t, "Warning: 3 tab changes", doc.Records[0].OutcomeLabel)
	require.Len(t, doc.Summary, 5)
	assert.Equal(t, "Students With Tab Changes", doc.Summary[1].Label)
	assert.Equal(t, float64(1), doc.Summary[1].Value)
}

func TestRecordService_ExportUnsupported(t *testing.T) {
	env := newTestEnv(true)
	_, err := env.records.Export(context.Background(), "pdf")
	assert.ErrorIs(t, err, model.ErrUnsupportedFormat)
}
