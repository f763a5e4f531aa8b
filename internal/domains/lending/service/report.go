package service

import (
	"time"

	"library-backend/internal/domains/lending/model"

	"github.com/xuri/excelize/v2"
)

const finesSheetName = "Fines"

// BuildFinesWorkbook lays out one row per fine with a totals row at the end
func BuildFinesWorkbook(fines []*model.Fine, generatedAt time.Time) (*excelize.File, error) {
	f := excelize.NewFile()

	// Rename default sheet
	if err := f.SetSheetName("Sheet1", finesSheetName); err != nil {
		f.Close()
		return nil, err
	}

	headers := []string{
		"Fine ID",
		"Loan ID",
		"Reader ID",
		"Book ID",
		"Overdue Days",
		"Amount",
		"Status",
		"Assessed At",
		"Paid At",
	}
	for colIdx, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(colIdx+1, 1)
		f.SetCellValue(finesSheetName, cell, header)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		f.SetCellStyle(finesSheetName, "A1", "I1", headerStyle)
	}

	total := 0.0
	for i, fine := range fines {
		rowNum := i + 2
		cell := func(col int) string {
			name, _ := excelize.CoordinatesToCellName(col, rowNum)
			return name
		}

		amount := fine.Amount.Round(2).InexactFloat64()
		total += amount

		f.SetCellValue(finesSheetName, cell(1), fine.ID.String())
		f.SetCellValue(finesSheetName, cell(2), fine.LoanID.String())
		f.SetCellValue(finesSheetName, cell(3), fine.ReaderID.String())
		f.SetCellValue(finesSheetName, cell(4), fine.BookID.String())
		f.SetCellValue(finesSheetName, cell(5), fine.OverdueDays)
		f.SetCellValue(finesSheetName, cell(6), amount)
		f.SetCellValue(finesSheetName, cell(7), string(fine.Status))
		f.SetCellValue(finesSheetName, cell(8), fine.AssessedAt.UTC().Format(time.RFC3339))
		if fine.PaidAt != nil {
			f.SetCellValue(finesSheetName, cell(9), fine.PaidAt.UTC().Format(time.RFC3339))
		}
	}

	// Totals
	totalRow := len(fines) + 3
	labelCell, _ := excelize.CoordinatesToCellName(5, totalRow)
	amountCell, _ := excelize.CoordinatesToCellName(6, totalRow)
	f.SetCellValue(finesSheetName, labelCell, "Total")
	f.SetCellValue(finesSheetName, amountCell, total)

	generatedCell, _ := excelize.CoordinatesToCellName(1, totalRow+1)
	f.SetCellValue(finesSheetName, generatedCell, "Generated "+generatedAt.UTC().Format(time.RFC3339))

	_ = f.SetColWidth(finesSheetName, "A", "D", 38)
	_ = f.SetColWidth(finesSheetName, "E", "I", 18)

	return f, nil
}
