// Package report renders admin-facing spreadsheets.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
)

const CompletenessSheet = "Completeness"

var completenessHeader = []any{
	"Applicant ID", "Name", "Email", "Uploaded", "Missing documents", "TOR uploaded",
}

// WriteCompleteness writes one row per applicant as an XLSX workbook.
func WriteCompleteness(w io.Writer, rows []domain.CompletenessRow) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", CompletenessSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(CompletenessSheet, "A1", &completenessHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetCellStyle(CompletenessSheet, "A1", "F1", bold); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{
			row.ApplicantID,
			row.Name,
			row.Email,
			row.Uploaded,
			missingLabels(row.Missing),
			yesNo(row.MandatoryPresent),
		}
		if err := f.SetSheetRow(CompletenessSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(CompletenessSheet, "A", "D", 14); err != nil {
		return err
	}
	if err := f.SetColWidth(CompletenessSheet, "E", "E", 60); err != nil {
		return err
	}
	if err := f.SetPanes(CompletenessSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func missingLabels(missing []domain.DocumentTypeInfo) string {
	labels := make([]string, 0, len(missing))
	for _, entry := range missing {
		labels = append(labels, entry.Label)
	}
	return strings.Join(labels, "; ")
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
