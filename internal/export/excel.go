package export

import (
	"fmt"
	"io"

	"github.com/Domenick1991/pickupslots/internal/domain"
	"github.com/xuri/excelize/v2"
)

const (
	occupancySheet = "Occupancy"
	summarySheet   = "Summary"
)

var occupancyColumns = []string{"Date", "Time", "Category", "Capacity", "Taken", "Remaining", "Open"}

// sheetWriter appends rows to one sheet at a time.
type sheetWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

func newSheetWriter() *sheetWriter {
	return &sheetWriter{file: excelize.NewFile()}
}

func (w *sheetWriter) addSheet(name string) error {
	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

func (w *sheetWriter) writeHeader(columns []string) error {
	if err := w.writeRow(toRow(columns)); err != nil {
		return err
	}

	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	start, _ := excelize.CoordinatesToCellName(1, w.currentRow-1)
	end, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow-1)
	return w.file.SetCellStyle(w.currentSheet, start, end, style)
}

func (w *sheetWriter) writeRow(row []any) error {
	cell, err := excelize.CoordinatesToCellName(1, w.currentRow)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.currentSheet, cell, &row); err != nil {
		return err
	}
	w.currentRow++
	return nil
}

// WriteOccupancy renders one row per slot plus a per-day summary sheet.
func WriteOccupancy(out io.Writer, slots []domain.SlotAvailability) error {
	w := newSheetWriter()
	defer w.file.Close()

	if err := w.addSheet(occupancySheet); err != nil {
		return err
	}
	if err := w.writeHeader(occupancyColumns); err != nil {
		return err
	}

	type daySummary struct {
		capacity, taken int
	}
	days := make([]string, 0)
	summary := make(map[string]*daySummary)

	for _, s := range slots {
		taken := s.MaxCapacity - s.RemainingCapacity
		open := "no"
		if s.IsAvailable {
			open = "yes"
		}
		if err := w.writeRow([]any{s.Date, s.Time, s.Category, s.MaxCapacity, taken, s.RemainingCapacity, open}); err != nil {
			return err
		}

		d, ok := summary[s.Date]
		if !ok {
			d = &daySummary{}
			summary[s.Date] = d
			days = append(days, s.Date)
		}
		d.capacity += s.MaxCapacity
		d.taken += taken
	}

	if err := w.addSheet(summarySheet); err != nil {
		return err
	}
	if err := w.writeHeader([]string{"Date", "Capacity", "Taken", "Utilisation %"}); err != nil {
		return err
	}
	for _, day := range days {
		d := summary[day]
		utilisation := 0.0
		if d.capacity > 0 {
			utilisation = float64(d.taken) * 100 / float64(d.capacity)
		}
		if err := w.writeRow([]any{day, d.capacity, d.taken, utilisation}); err != nil {
			return err
		}
	}

	return w.file.Write(out)
}

func toRow(values []string) []any {
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}
