package Reports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"Workdesk/AbstractFunctions"
	"Workdesk/Views"
)

const AttendanceSheet = "Attendance"

var attendanceHeaders = []string{
	"Date", "Name", "Status", "Clock In", "Clock Out", "Duration", "Note", "Tardiness Reason",
}

var statusLabels = map[Views.AttendanceStatus]string{
	Views.StatusNormal:          "Normal",
	Views.StatusTardy:           "Tardy",
	Views.StatusPendingApproval: "Pending approval",
	Views.StatusRejected:        "Rejected",
	Views.StatusLeave:           "Leave",
}

func clock(t *time.Time) string {
	if t == nil {
		return ""
	}
	return AbstractFunctions.InReference(*t).Format("15:04")
}

// AttendanceWorkbook renders attendance rows, in the order given, as an xlsx file.
func AttendanceWorkbook(rows []Views.AttendanceRow) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(AttendanceSheet)
	if err != nil {
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if f.GetSheetName(0) != AttendanceSheet {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return nil, fmt.Errorf("error removing default sheet: %w", err)
		}
	}

	for i, header := range attendanceHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(AttendanceSheet, cell, header); err != nil {
			return nil, err
		}
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6E6FA"}, Pattern: 1},
	})
	if err == nil {
		_ = f.SetRowStyle(AttendanceSheet, 1, 1, headerStyle)
	}

	for r, row := range rows {
		reason := ""
		if row.TardinessReason != nil {
			reason = *row.TardinessReason
		}
		duration := ""
		if row.Kind == Views.RowWorkLog && row.ClockOutAt != nil {
			duration = AbstractFunctions.FormatDuration(row.Duration)
		}
		values := []interface{}{
			row.Date,
			row.UserDisplayName,
			statusLabels[row.Status],
			clock(row.ClockInAt),
			clock(row.ClockOutAt),
			duration,
			row.Note,
			reason,
		}
		for c, value := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(AttendanceSheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	_ = f.SetColWidth(AttendanceSheet, "A", "F", 14)
	_ = f.SetColWidth(AttendanceSheet, "G", "H", 30)
	if err := f.SetPanes(AttendanceSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("error writing workbook: %w", err)
	}
	return &buf, nil
}

// AttendanceFileName names an export covering from..to (date keys).
func AttendanceFileName(from, to string) string {
	switch {
	case from == "" && to == "":
		return "attendance.xlsx"
	case from == to:
		return fmt.Sprintf("attendance_%s.xlsx", from)
	}
	return fmt.Sprintf("attendance_%s_%s.xlsx", from, to)
}
