package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/forestguardian/guardian/internal/core/domain"
)

const sheetName = "Report"

// XLSX renders one submission as a spreadsheet: a header block with the report
// aggregates, then one row per image.
func (e *Exporter) XLSX(report domain.Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	summary := [][]any{
		{"Submission", report.SubmissionID},
		{"Date", report.Date + " " + report.Time},
		{"Status", string(report.Status)},
		{"Images", report.ImageCount},
		{"Detected areas", report.TotalDetectedAreas},
		{"Average confidence", report.AverageConfidence},
	}
	row := 1
	for _, line := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheetName, cell, &line); err != nil {
			return nil, fmt.Errorf("write summary row: %w", err)
		}
		row++
	}

	row++
	header := []any{"Filename", "Status", "Confidence", "Detected areas", "Processing time (s)", "Species", "Error"}
	cell, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetSheetRow(sheetName, cell, &header); err != nil {
		return nil, fmt.Errorf("write header row: %w", err)
	}
	row++

	for _, img := range report.Images {
		line := []any{
			img.Filename,
			string(img.Status),
			img.Confidence,
			img.DetectedAreas,
			img.ProcessingTime,
			strings.Join(img.Species, ", "),
			img.Error,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheetName, cell, &line); err != nil {
			return nil, fmt.Errorf("write image row: %w", err)
		}
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize spreadsheet: %w", err)
	}
	return buf.Bytes(), nil
}
