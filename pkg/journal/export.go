package journal

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Runs"

var exportHeader = []interface{}{"ID", "Program", "State", "Output", "Steps", "Words", "Fault", "Duration (ms)", "Created At"}

// WriteXLSX renders entries as a single-sheet workbook.
func WriteXLSX(w io.Writer, entries []Entry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, _ := excelize.ColumnNumberToName(len(exportHeader))
	if err := f.SetCellStyle(exportSheet, "A1", last+"1", bold); err != nil {
		return err
	}

	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			e.ID,
			e.Program,
			e.State,
			formatOutput(e.Output),
			e.Steps,
			e.Words,
			e.Fault,
			float64(e.Duration.Microseconds()) / 1000,
			e.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(exportSheet, "B", "B", 24); err != nil {
		return err
	}
	if err := f.SetColWidth(exportSheet, "G", "G", 48); err != nil {
		return err
	}
	return f.Write(w)
}

func formatOutput(out []int32) string {
	parts := make([]string, len(out))
	for i, v := range out {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, " ")
}
