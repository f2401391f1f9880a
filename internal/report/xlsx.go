package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Report"

var header = []interface{}{
	"Child", "Week start", "Week end",
	"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun",
	"Subtotal", "Extras", "Penalty", "Total", "Max", "Money %",
}

// WriteXLSX writes one row per week to w as an Excel workbook.
func WriteXLSX(w io.Writer, weeks []*Week) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	lastCol, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheetName, "A1", lastCol, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, week := range weeks {
		res := week.Result
		row := []interface{}{week.ChildName, week.Start, week.End}
		for _, day := range res.Days {
			row = append(row, res.DailyPoints[day])
		}
		for len(row) < 10 {
			row = append(row, nil)
		}
		row = append(row,
			res.Subtotal,
			res.ExtraPoints,
			res.Penalty,
			res.Total,
			res.MaxWeeklyPoints,
			res.MoneyPercentage,
		)

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(sheetName, "A", "C", 14); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
