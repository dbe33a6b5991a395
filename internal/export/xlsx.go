package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"bedlog-backend/internal/bed"
)

const (
	bedSheet     = "Beds"
	summarySheet = "Summary"
)

// column ties a header to a record attribute.
type column struct {
	header string
	field  bed.Field
	width  float64
}

var bedColumns = []column{
	{"Status", bed.FieldStatus, 22},
	{"Patient Last Name", bed.FieldPatientLastName, 20},
	{"Bed Type", bed.FieldBedType, 18},
	{"Other Bed Type", bed.FieldOtherBedTypeName, 18},
	{"Bed Area", bed.FieldBedArea, 14},
	{"Location", bed.FieldLocation, 16},
	{"Rental", bed.FieldIsRental, 8},
	{"Vendor Confirmation #", bed.FieldVendorConfirmation, 22},
	{"Asset #", bed.FieldAssetNumber, 14},
	{"Serial #", bed.FieldSerialNumber, 14},
	{"Purchase Order", bed.FieldPurchaseOrder, 16},
	{"Notes", bed.FieldNotes, 40},
	{"Last Edited By", bed.FieldLastEditedBy, 26},
	{"Last Edited", bed.FieldLastEditedDate, 26},
}

// BedColumnHeaders returns the header row of the bed sheet.
func BedColumnHeaders() []string {
	out := make([]string, len(bedColumns))
	for i, c := range bedColumns {
		out[i] = c.header
	}
	return out
}

// Workbook renders the bed view and its summary into an XLSX file.
func Workbook(records []bed.Record, summary bed.Summary) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(bedSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeBeds(f, records, headerStyle); err != nil {
		return nil, err
	}
	if err := writeSummary(f, summary, headerStyle); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeBeds(f *excelize.File, records []bed.Record, headerStyle int) error {
	headers := BedColumnHeaders()
	if err := writeHeader(f, bedSheet, headers, headerStyle); err != nil {
		return err
	}
	for i, c := range bedColumns {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(bedSheet, col, col, c.width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for r, rec := range records {
		row := make([]any, len(bedColumns))
		for i, c := range bedColumns {
			switch c.field {
			case bed.FieldIsRental:
				if rec.IsRental {
					row[i] = "Yes"
				} else {
					row[i] = "No"
				}
			default:
				v, _ := rec.Value(c.field)
				row[i] = v
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(bedSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r+2, err)
		}
	}

	return f.SetPanes(bedSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeSummary(f *excelize.File, summary bed.Summary, headerStyle int) error {
	headers := []string{"Bed Type", "Assigned", "Available", "Out of Service", "Total"}
	if err := writeHeader(f, summarySheet, headers, headerStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 32); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	entries := summary.Entries()
	rows := make([]SummaryRow, 0, len(entries)+1)
	for _, e := range entries {
		rows = append(rows, SummaryRow{Label: e.Label, Counts: e.Counts})
	}
	rows = append(rows, SummaryRow{Label: "Total", Counts: summary.Totals()})

	for i, sr := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		values := []any{sr.Label, sr.Assigned, sr.Available, sr.OutOfService, sr.Total}
		if err := f.SetSheetRow(summarySheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}
	return nil
}

// SummaryRow is one line of the summary sheet.
type SummaryRow struct {
	Label string
	bed.Counts
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}
	return nil
}
