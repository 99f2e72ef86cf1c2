package triage

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/carepoint/clinic/pkg/cdss/vitals"
)

const (
	SheetContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	resultSheet      = "Assessment"
)

// Input columns, matched case-insensitively. Missing columns and blank cells
// are "not measured".
const (
	colPatient     = "Patient"
	colTemperature = "Temperature"
	colSystolic    = "Systolic"
	colDiastolic   = "Diastolic"
	colHeartRate   = "Heart Rate"
	colWeight      = "Weight"
	colHeight      = "Height"
)

var inputHeader = []string{colPatient, colTemperature, colSystolic, colDiastolic, colHeartRate, colWeight, colHeight}

var resultHeader = []string{
	"Temperature Status", "BP Status", "Heart Rate Status",
	"BMI", "BMI Category", "Alerts", "Worst", "Notes",
}

// SheetRow is one assessed spreadsheet line.
type SheetRow struct {
	Row        int
	Patient    string
	Reading    vitals.Reading
	Assessment vitals.Assessment
	Problems   []string
}

// ParseWorkbook reads readings from the first sheet. The first row is the
// header; fully blank rows are skipped.
func ParseWorkbook(r io.Reader) ([]SheetRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	index := make(map[string]int)
	for i, name := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	known := 0
	for _, name := range inputHeader {
		if _, ok := index[strings.ToLower(name)]; ok {
			known++
		}
	}
	if known == 0 {
		return nil, fmt.Errorf("sheet %q has none of the expected columns %s", sheet, strings.Join(inputHeader, ", "))
	}

	var out []SheetRow
	for i, cells := range rows[1:] {
		if blank(cells) {
			continue
		}
		row := SheetRow{Row: i + 2}
		cell := func(name string) string {
			j, ok := index[strings.ToLower(name)]
			if !ok || j >= len(cells) {
				return ""
			}
			return strings.TrimSpace(cells[j])
		}
		row.Patient = cell(colPatient)
		row.Reading = vitals.Reading{
			TemperatureC: row.parseFloat(colTemperature, cell(colTemperature)),
			Systolic:     row.parseInt(colSystolic, cell(colSystolic)),
			Diastolic:    row.parseInt(colDiastolic, cell(colDiastolic)),
			HeartRate:    row.parseInt(colHeartRate, cell(colHeartRate)),
			WeightKg:     row.parseFloat(colWeight, cell(colWeight)),
			HeightCm:     row.parseFloat(colHeight, cell(colHeight)),
		}
		row.Assessment = vitals.Assess(row.Reading)
		out = append(out, row)
	}
	return out, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func (r *SheetRow) parseFloat(col, raw string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		r.Problems = append(r.Problems, fmt.Sprintf("%s %q is not a number", col, raw))
		return nil
	}
	return &v
}

func (r *SheetRow) parseInt(col, raw string) *int {
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		// accept "120.0" from numeric cells
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || f != float64(int(f)) {
			r.Problems = append(r.Problems, fmt.Sprintf("%s %q is not a whole number", col, raw))
			return nil
		}
		v = int(f)
	}
	return &v
}

// WriteWorkbook renders assessed rows into a new workbook.
func WriteWorkbook(rows []SheetRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(resultSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	levelStyles := make(map[vitals.Level]int)
	for lvl, color := range map[vitals.Level]string{vitals.Warning: "#FFF4CE", vitals.Critical: "#FDE7E9"} {
		id, err := f.NewStyle(&excelize.Style{Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1}})
		if err != nil {
			return nil, fmt.Errorf("level style: %w", err)
		}
		levelStyles[lvl] = id
	}

	header := append(append([]string{}, inputHeader...), resultHeader...)
	if err := f.SetSheetRow(resultSheet, "A1", &header); err != nil {
		return nil, err
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(resultSheet, "A1", last, headerStyle); err != nil {
		return nil, err
	}

	for i, row := range rows {
		n := i + 2
		a := row.Assessment
		values := []interface{}{
			row.Patient,
			deref(row.Reading.TemperatureC), deref(row.Reading.Systolic), deref(row.Reading.Diastolic),
			deref(row.Reading.HeartRate), deref(row.Reading.WeightKg), deref(row.Reading.HeightCm),
			label(a.Temperature), label(a.BloodPressure), label(a.HeartRate),
			nil, nil, a.AlertCount, a.Worst.String(), strings.Join(row.Problems, "; "),
		}
		if a.BMI != nil {
			values[10], values[11] = a.BMI.Value, a.BMI.Category
		}
		start, _ := excelize.CoordinatesToCellName(1, n)
		if err := f.SetSheetRow(resultSheet, start, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", n, err)
		}
		if style, ok := levelStyles[a.Worst]; ok {
			end, _ := excelize.CoordinatesToCellName(len(header), n)
			if err := f.SetCellStyle(resultSheet, start, end, style); err != nil {
				return nil, err
			}
		}
	}

	if err := f.SetPanes(resultSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// AssessWorkbook parses, classifies and re-renders a triage workbook.
func AssessWorkbook(r io.Reader) ([]byte, error) {
	rows, err := ParseWorkbook(r)
	if err != nil {
		return nil, err
	}
	return WriteWorkbook(rows)
}

func deref[T int | float64](p *T) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func label(s *vitals.Status) string {
	if s == nil {
		return ""
	}
	return s.Label
}
