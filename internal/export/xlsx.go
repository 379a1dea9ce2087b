package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/areascope/internal/records"
	"github.com/sells-group/areascope/pkg/dataaxle"
)

// WriteRecordsXLSX writes flattened records as a single-sheet workbook.
func WriteRecordsXLSX(w io.Writer, recs []dataaxle.Record) error {
	header, rows := RecordTable(recs)
	return writeXLSX(w, "Records", header, rows)
}

// WriteSummariesXLSX writes insight summaries as a single-sheet
// workbook.
func WriteSummariesXLSX(w io.Writer, summaries []*records.InsightSummary) error {
	header, rows := SummaryTable(summaries)
	return writeXLSX(w, "Insights", header, rows)
}

func writeXLSX(w io.Writer, sheetName string, header []string, rows [][]string) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "export: add xlsx sheet")
	}

	hr := sheet.AddRow()
	for _, col := range header {
		hr.AddCell().SetString(col)
	}
	for _, row := range rows {
		xr := sheet.AddRow()
		for _, val := range row {
			xr.AddCell().SetString(val)
		}
	}

	return eris.Wrap(file.Write(w), "export: write xlsx")
}
