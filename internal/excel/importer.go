// Package excel imports learning history from spreadsheets.
package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/example/learnengine/pkg/models"
	"github.com/xuri/excelize/v2"
)

// HistoryWriter receives imported records. *engine.Engine implements it.
type HistoryWriter interface {
	RecordHistory(ctx context.Context, records []models.HistoryRecord) error
}

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath          string // Path to the Excel or CSV file
	UserColumn        string // Column with the user ID
	ModuleColumn      string // Column with the module ID
	TopicColumn       string // Column with the topic ID
	ContentTypeColumn string // Column with the content type
	ProgressColumn    string // Column with the progress percent
	CompletedColumn   string // Column with the completion flag
	OccurredAtColumn  string // Column with the event time
	SheetName         string // Name of the sheet to import
	StartRow          int    // The row to start importing from (1-based index)
	BatchSize         int    // Records written per call
	// DefaultUserID is used for rows with an empty user cell.
	DefaultUserID string
	// Now stamps rows without a time. Defaults to time.Now.
	Now func() time.Time
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		UserColumn:        "A",
		ModuleColumn:      "B",
		TopicColumn:       "C",
		ContentTypeColumn: "D",
		ProgressColumn:    "E",
		CompletedColumn:   "F",
		OccurredAtColumn:  "G",
		SheetName:         "Sheet1",
		StartRow:          2, // skip header
		BatchSize:         500,
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Imported       int
	Skipped        int
	Users          []string // distinct users with imported records, sorted
	Errors         []string
}

// ImportHistory reads history rows from an Excel or CSV file and writes them to w.
// Rows that fail to parse are reported in ImportResult.Errors; a write failure aborts the import.
func ImportHistory(ctx context.Context, w HistoryWriter, config ImportConfig) (*ImportResult, error) {
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultImportConfig().BatchSize
	}

	var rows [][]string
	var err error
	if strings.EqualFold(filepath.Ext(config.FilePath), ".csv") {
		rows, err = readCSV(config.FilePath)
	} else {
		rows, err = readExcel(config.FilePath, config.SheetName)
	}
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	users := make(map[string]bool)
	batch := make([]models.HistoryRecord, 0, config.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := w.RecordHistory(ctx, batch); err != nil {
			return fmt.Errorf("failed to write history: %w", err)
		}
		for _, rec := range batch {
			users[rec.UserID] = true
		}
		result.Imported += len(batch)
		batch = batch[:0]
		return nil
	}

	for i, row := range rows {
		rowNum := i + 1
		if rowNum < config.StartRow {
			continue
		}
		if isBlank(row) {
			result.Skipped++
			continue
		}
		result.TotalProcessed++

		rec, err := parseRow(row, config)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}
		batch = append(batch, rec)
		if len(batch) == config.BatchSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}
	if err := flush(); err != nil {
		return result, err
	}

	for u := range users {
		result.Users = append(result.Users, u)
	}
	sort.Strings(result.Users)
	return result, nil
}

func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parseRow maps one row to a history record.
func parseRow(row []string, config ImportConfig) (models.HistoryRecord, error) {
	cell := func(column string) string {
		if column == "" {
			return ""
		}
		if idx := columnToIndex(column); idx >= 0 && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	rec := models.HistoryRecord{
		UserID:      cell(config.UserColumn),
		ModuleID:    cell(config.ModuleColumn),
		TopicID:     cell(config.TopicColumn),
		ContentType: strings.ToLower(cell(config.ContentTypeColumn)),
	}
	if rec.UserID == "" {
		rec.UserID = config.DefaultUserID
	}
	if rec.UserID == "" {
		return rec, fmt.Errorf("user cannot be empty")
	}

	progress, err := parseProgress(cell(config.ProgressColumn))
	if err != nil {
		return rec, err
	}
	rec.ProgressPercent = progress

	completed, err := parseCompleted(cell(config.CompletedColumn), progress)
	if err != nil {
		return rec, err
	}
	rec.Completed = completed

	occurredAt, err := parseTime(cell(config.OccurredAtColumn), config.Now)
	if err != nil {
		return rec, err
	}
	rec.OccurredAt = occurredAt
	return rec, nil
}

// parseProgress accepts "40", "40%" and "40.5", clamped to 0-100. Empty means 0.
func parseProgress(s string) (float64, error) {
	s = strings.TrimSuffix(s, "%")
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid progress %q", s)
	}
	if v < 0 {
		return 0, nil
	}
	if v > 100 {
		return 100, nil
	}
	return v, nil
}

// parseCompleted reads a completion flag. An empty cell means complete at 100% progress.
func parseCompleted(s string, progress float64) (bool, error) {
	switch strings.ToLower(s) {
	case "":
		return progress >= 100, nil
	case "yes", "y", "x", "done", "completed":
		return true, nil
	case "no", "n", "-":
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid completed flag %q", s)
	}
	return v, nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTime reads a timestamp or an Excel date serial. Empty means now.
func parseTime(s string, now func() time.Time) (time.Time, error) {
	if s == "" {
		return now().UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date serial %q: %w", s, err)
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// columnToIndex converts an Excel column letter to a zero-based index.
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
