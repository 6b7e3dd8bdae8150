package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"audio-notes-pipeline/internal/domain/model"
)

const sheet = "Jobs"

var header = []any{"ID", "Name", "URL", "Status", "Checkpoint", "Chunks", "Transcribed", "Notes chars", "Last error", "Added", "Updated", "Completed"}

// WriteJobs writes an audit workbook with one row per job, in store order.
func WriteJobs(path string, jobs []*model.Job) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, j := range jobs {
		completed := ""
		if j.CompletedAt != nil {
			completed = j.CompletedAt.Format(time.RFC3339)
		}
		row := []any{
			j.ID, j.Name, j.URL, string(j.Status), string(j.Checkpoint),
			len(j.Chunks), len(j.Transcriptions), len(j.Notes), j.LastError,
			j.AddedAt.Format(time.RFC3339), j.UpdatedAt.Format(time.RFC3339), completed,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetRowStyle(sheet, 1, 1, style)
	}
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	_ = f.SetColWidth(sheet, "B", "C", 40)

	return f.SaveAs(path)
}
