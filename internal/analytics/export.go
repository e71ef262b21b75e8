package analytics

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// BuildXLSX renders a summary as a workbook with summary, moods, hourly and
// transitions sheets.
func BuildXLSX(s Summary) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	moodsSheet := "moods"
	hourlySheet := "hourly"
	transitionsSheet := "transitions"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{moodsSheet, hourlySheet, transitionsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("new sheet %s: %w", name, err)
		}
	}

	_ = f.SetCellValue(summarySheet, "A1", "Mood Analytics")
	_ = f.SetCellValue(summarySheet, "A3", "Since")
	_ = f.SetCellValue(summarySheet, "B3", s.Since.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A4", "Generated")
	_ = f.SetCellValue(summarySheet, "B4", s.GeneratedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "Current Mood")
	_ = f.SetCellValue(summarySheet, "B5", s.CurrentMood)
	_ = f.SetCellValue(summarySheet, "A6", "Readings")
	_ = f.SetCellValue(summarySheet, "B6", s.Readings)
	_ = f.SetCellValue(summarySheet, "A7", "Average Occupancy")
	_ = f.SetCellValue(summarySheet, "B7", s.AvgOccupancy)
	_ = f.SetCellValue(summarySheet, "A8", "Peak Occupancy")
	_ = f.SetCellValue(summarySheet, "B8", s.PeakOccupancy)
	_ = f.SetCellValue(summarySheet, "A9", "Transitions")
	_ = f.SetCellValue(summarySheet, "B9", s.Transitions)
	row := 11
	for _, cause := range sortedCauses(s.ByCause) {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "Cause: "+cause)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), s.ByCause[cause])
		row++
	}

	_ = f.SetCellValue(moodsSheet, "A1", "Mood")
	_ = f.SetCellValue(moodsSheet, "B1", "Seconds")
	_ = f.SetCellValue(moodsSheet, "C1", "Share")
	for i, m := range s.Moods {
		row := i + 2
		_ = f.SetCellValue(moodsSheet, fmt.Sprintf("A%d", row), m.Mood)
		_ = f.SetCellValue(moodsSheet, fmt.Sprintf("B%d", row), m.Seconds)
		_ = f.SetCellValue(moodsSheet, fmt.Sprintf("C%d", row), m.Share)
	}

	_ = f.SetCellValue(hourlySheet, "A1", "Hour")
	_ = f.SetCellValue(hourlySheet, "B1", "Readings")
	_ = f.SetCellValue(hourlySheet, "C1", "Transitions")
	_ = f.SetCellValue(hourlySheet, "D1", "Average Occupancy")
	_ = f.SetCellValue(hourlySheet, "E1", "Peak Occupancy")
	_ = f.SetCellValue(hourlySheet, "F1", "Dominant Mood")
	for i, h := range s.Hourly {
		row := i + 2
		_ = f.SetCellValue(hourlySheet, fmt.Sprintf("A%d", row), fmt.Sprintf("%02d:00", h.Hour))
		_ = f.SetCellValue(hourlySheet, fmt.Sprintf("B%d", row), h.Readings)
		_ = f.SetCellValue(hourlySheet, fmt.Sprintf("C%d", row), h.Transitions)
		_ = f.SetCellValue(hourlySheet, fmt.Sprintf("D%d", row), h.AvgOccupancy)
		_ = f.SetCellValue(hourlySheet, fmt.Sprintf("E%d", row), h.PeakOccupancy)
		_ = f.SetCellValue(hourlySheet, fmt.Sprintf("F%d", row), h.DominantMood)
	}

	_ = f.SetCellValue(transitionsSheet, "A1", "At")
	_ = f.SetCellValue(transitionsSheet, "B1", "From")
	_ = f.SetCellValue(transitionsSheet, "C1", "To")
	_ = f.SetCellValue(transitionsSheet, "D1", "Cause")
	_ = f.SetCellValue(transitionsSheet, "E1", "Rule")
	for i, tr := range s.Recent {
		row := i + 2
		_ = f.SetCellValue(transitionsSheet, fmt.Sprintf("A%d", row), tr.At.Format(time.RFC3339))
		_ = f.SetCellValue(transitionsSheet, fmt.Sprintf("B%d", row), tr.From)
		_ = f.SetCellValue(transitionsSheet, fmt.Sprintf("C%d", row), tr.To)
		_ = f.SetCellValue(transitionsSheet, fmt.Sprintf("D%d", row), string(tr.Cause))
		_ = f.SetCellValue(transitionsSheet, fmt.Sprintf("E%d", row), tr.Rule)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPDF renders a one-page summary report.
func BuildPDF(s Summary) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Mood Analytics")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Since: %s", s.Since.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", s.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Current mood: %s", s.CurrentMood))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Readings: %d", s.Readings))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Occupancy: avg %.1f, peak %d", s.AvgOccupancy, s.PeakOccupancy))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Transitions: %d", s.Transitions))
	pdf.Ln(5)
	for _, cause := range sortedCauses(s.ByCause) {
		pdf.Cell(0, 6, fmt.Sprintf("  %s: %d", cause, s.ByCause[cause]))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Mood", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Minutes", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Share", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, m := range s.Moods {
		pdf.CellFormat(50, 6, m.Mood, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%.1f", m.Seconds/60), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.0f%%", m.Share*100), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	if len(s.Hourly) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(30, 6, "Hour", "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, "Readings", "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, "Changes", "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, "Avg Occupancy", "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, "Peak Occupancy", "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, "Dominant Mood", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, h := range s.Hourly {
			pdf.CellFormat(30, 6, fmt.Sprintf("%02d:00", h.Hour), "1", 0, "C", false, 0, "")
			pdf.CellFormat(25, 6, fmt.Sprintf("%d", h.Readings), "1", 0, "R", false, 0, "")
			pdf.CellFormat(25, 6, fmt.Sprintf("%d", h.Transitions), "1", 0, "R", false, 0, "")
			pdf.CellFormat(35, 6, fmt.Sprintf("%.1f", h.AvgOccupancy), "1", 0, "R", false, 0, "")
			pdf.CellFormat(35, 6, fmt.Sprintf("%d", h.PeakOccupancy), "1", 0, "R", false, 0, "")
			pdf.CellFormat(40, 6, h.DominantMood, "1", 0, "L", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sortedCauses(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
