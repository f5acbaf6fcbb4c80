package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"quizwrap/internal/logger"
	"quizwrap/internal/model"
	"quizwrap/internal/repository"
)

const (
	FormatXLSX = "xlsx"
	FormatJSON = "json"

	sheetRecords = "Records"
	sheetSummary = "Summary"

	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeJSON = "application/json"
)

var recordHeaders = []interface{}{"Name", "Roll Number", "Tab Changes", "Recorded At", "Status"}

// RecordService owns the process-wide store of finished sessions
type RecordService struct {
	repo        repository.RecordRepo
	broadcaster Broadcaster
	nowFunc     func() time.Time
}

// NewRecordService creates a new record service
func NewRecordService(repo repository.RecordRepo) *RecordService {
	return &RecordService{
		repo:    repo,
		nowFunc: time.Now,
	}
}

// SetBroadcaster sets the broadcaster for WebSocket events
func (s *RecordService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Append stores a finished session. Re-appending the same record ID is a no-op.
func (s *RecordService) Append(ctx context.Context, rec *model.SessionRecord) error {
	if err := s.repo.Append(ctx, rec); err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastToInstructors(MsgRecordAdded, rec)
	}
	return nil
}

// List returns all records in insertion order
func (s *RecordService) List(ctx context.Context) ([]model.SessionRecord, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}

// ExistsByRollNumber reports whether a completed record uses rollNumber
func (s *RecordService) ExistsByRollNumber(ctx context.Context, rollNumber string) (bool, error) {
	return s.repo.ExistsByRollNumber(ctx, rollNumber)
}

// Summarize aggregates the current records
func (s *RecordService) Summarize(ctx context.Context) (*model.Summary, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	sum := Summarize(records)
	return &sum, nil
}

// Summarize computes the summary metrics. An empty slice yields all zeros.
func Summarize(records []model.SessionRecord) model.Summary {
	var sum model.Summary
	if len(records) == 0 {
		return sum
	}
	total := 0
	for _, r := range records {
		sum.Count++
		total += r.FocusLossCount
		if r.FocusLossCount > 0 {
			sum.CountWithFocusLoss++
		}
		if r.FocusLossCount > sum.MaxFocusLoss {
			sum.MaxFocusLoss = r.FocusLossCount
		}
	}
	sum.CountWithoutFocusLoss = sum.Count - sum.CountWithFocusLoss
	sum.AverageFocusLoss = math.Round(float64(total)/float64(sum.Count)*10) / 10
	return sum
}

// Export renders the records and summary tables. An empty format means xlsx.
func (s *RecordService) Export(ctx context.Context, format string) (*model.ExportArtifact, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatXLSX
	}
	if format != FormatXLSX && format != FormatJSON {
		return nil, model.ErrUnsupportedFormat
	}

	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	sum := Summarize(records)
	fileName := fmt.Sprintf("quiz_results_%s.%s", s.nowFunc().Format("20060102_150405"), format)

	var data []byte
	contentType := contentTypeXLSX
	switch format {
	case FormatJSON:
		data, err = exportJSON(records, sum)
		contentType = contentTypeJSON
	default:
		data, err = exportWorkbook(records, sum)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to export records: %w", err)
	}

	return &model.ExportArtifact{
		FileName:    fileName,
		ContentType: contentType,
		Data:        data,
	}, nil
}

// Clear empties the store and returns how many records were removed
func (s *RecordService) Clear(ctx context.Context) (int64, error) {
	n, err := s.repo.Clear(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clear records: %w", err)
	}
	logger.Log.Info("records cleared", zap.Int64("removed", n))
	if s.broadcaster != nil {
		s.broadcaster.BroadcastToInstructors(MsgRecordsCleared, map[string]int64{"removed": n})
	}
	return n, nil
}

type summaryRow struct {
	Label string      `json:"label"`
	Value interface{} `json:"value"`
}

func summaryRows(sum model.Summary) []summaryRow {
	return []summaryRow{
		{"Total Students", sum.Count},
		{"Students With Tab Changes", sum.CountWithFocusLoss},
		{"Students Without Tab Changes", sum.CountWithoutFocusLoss},
		{"Average Tab Changes", sum.AverageFocusLoss},
		{"Max Tab Changes", sum.MaxFocusLoss},
	}
}

func recordRow(r model.SessionRecord) []interface{} {
	return []interface{}{
		r.Identity.Name,
		r.Identity.RollNumber,
		r.FocusLossCount,
		r.RecordedAt.Format("2006-01-02 15:04:05"),
		r.OutcomeLabel,
	}
}

func exportWorkbook(records []model.SessionRecord, sum model.Summary) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetRecords); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(sheetRecords, "A1", &recordHeaders); err != nil {
		return nil, err
	}
	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := recordRow(r)
		if err := f.SetSheetRow(sheetRecords, cell, &row); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(sheetSummary); err != nil {
		return nil, err
	}
	header := []interface{}{"Metric", "Value"}
	if err := f.SetSheetRow(sheetSummary, "A1", &header); err != nil {
		return nil, err
	}
	for i, row := range summaryRows(sum) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := []interface{}{row.Label, row.Value}
		if err := f.SetSheetRow(sheetSummary, cell, &values); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type exportDocument struct {
	Records []model.SessionRecord `json:"records"`
	Summary []summaryRow          `json:"summary"`
}

func exportJSON(records []model.SessionRecord, sum model.Summary) ([]byte, error) {
	if records == nil {
		records = []model.SessionRecord{}
	}
	return json.MarshalIndent(exportDocument{Records: records, Summary: summaryRows(sum)}, "", "  ")
}
