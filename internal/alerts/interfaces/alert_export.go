package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	alerts "sitewatch-cloud/internal/alerts/domain"
)

// BuildAlertXLSX renders a minimal XLSX for a tenant's alerts.
func BuildAlertXLSX(tenantID string, list []alerts.Alert) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	alertsSheet := "alerts"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(alertsSheet)

	var open, acked, resolved int
	for _, alert := range list {
		switch alert.Status {
		case alerts.StatusOpen:
			open++
		case alerts.StatusAcknowledged:
			acked++
		case alerts.StatusResolved:
			resolved++
		}
	}

	_ = f.SetCellValue(summarySheet, "A1", "Alert Export")
	_ = f.SetCellValue(summarySheet, "A3", "Tenant")
	_ = f.SetCellValue(summarySheet, "B3", tenantID)
	_ = f.SetCellValue(summarySheet, "A4", "Exported")
	_ = f.SetCellValue(summarySheet, "B4", time.Now().UTC().Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "Total")
	_ = f.SetCellValue(summarySheet, "B5", len(list))
	_ = f.SetCellValue(summarySheet, "A6", "Open")
	_ = f.SetCellValue(summarySheet, "B6", open)
	_ = f.SetCellValue(summarySheet, "A7", "Acknowledged")
	_ = f.SetCellValue(summarySheet, "B7", acked)
	_ = f.SetCellValue(summarySheet, "A8", "Resolved")
	_ = f.SetCellValue(summarySheet, "B8", resolved)

	headers := []string{"ID", "Type", "Severity", "Status", "Sensor", "Zone", "Title", "Assignee", "Opened", "Last Detected", "Resolved"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(alertsSheet, cell, header)
	}
	for i, alert := range list {
		row := i + 2
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("A%d", row), alert.ID)
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("B%d", row), alert.Type)
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("C%d", row), alert.Severity)
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("D%d", row), alert.Status)
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("E%d", row), alert.SensorID)
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("F%d", row), alert.ZoneID)
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("G%d", row), alert.Title)
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("H%d", row), alert.Assignee)
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("I%d", row), alert.OpenedAt.Format(time.RFC3339))
		_ = f.SetCellValue(alertsSheet, fmt.Sprintf("J%d", row), alert.LastDetectedAt.Format(time.RFC3339))
		if !alert.ResolvedAt.IsZero() {
			_ = f.SetCellValue(alertsSheet, fmt.Sprintf("K%d", row), alert.ResolvedAt.Format(time.RFC3339))
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
