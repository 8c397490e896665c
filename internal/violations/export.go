package violations

import (
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Violations"

var exportHeaders = []any{
	"ID", "Branch", "Author", "Filed", "Occurred", "DVR", "Camera", "Location",
	"Category", "Category comment", "Fact ID", "Progress",
	"Responsibility", "Full name", "Fine", "Comment", "Photos",
}

// WriteXLSX renders violations as an xlsx workbook. Already-redacted rows
// leave their hidden columns blank.
func WriteXLSX(w io.Writer, items []Violation) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeaders); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetCellStyle(exportSheet, "A1", "Q1", style)
	}

	for i, v := range items {
		row := []any{
			v.ID, v.BranchName, v.AuthorName,
			v.ProcessingDate.Format("2006-01-02 15:04"), formatTime(v),
			v.DVR, v.Camera, v.IncidentLocation, v.Category, v.CategoryComment,
			v.FactIdentifier, string(v.Progress),
			deref(v.Responsibility), deref(v.Fullname), formatAmount(v.FineAmount),
			deref(v.Comment), strings.Join(photoURLs(v), "\n"),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(exportSheet, "B", "C", 22)
	_ = f.SetColWidth(exportSheet, "D", "E", 18)
	_ = f.SetColWidth(exportSheet, "H", "K", 25)
	_ = f.SetColWidth(exportSheet, "P", "Q", 40)

	return f.Write(w)
}

func formatTime(v Violation) string {
	if v.ProcessedDate == nil {
		return ""
	}
	return v.ProcessedDate.Format("2006-01-02 15:04")
}

func formatAmount(a *float64) string {
	if a == nil {
		return ""
	}
	return strconv.FormatFloat(*a, 'f', 2, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func photoURLs(v Violation) []string {
	out := make([]string, len(v.Photos))
	for i, p := range v.Photos {
		out[i] = p.URL
	}
	return out
}
