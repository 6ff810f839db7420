// Package export renders a venue's day schedule as an xlsx workbook.
package export

import (
	"context"
	"fmt"
	"time"

	"courtbook/internal/domain"
	"courtbook/internal/models"
	"courtbook/internal/service"
	"courtbook/internal/slots"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	scheduleSheet     = "Schedule"
	reservationsSheet = "Reservations"
)

// Cell fills
const (
	fillHeader    = "#DDEBF7"
	fillCourt     = "#E2EFDA"
	fillFree      = "#FFFFFF"
	fillPending   = "#FFEB9C"
	fillConfirmed = "#C6EFCE"
	fillBlackout  = "#FFC7CE"
	fillClosed    = "#D9D9D9"
)

// Source is the read side of the booking engine the export needs.
type Source interface {
	ListAvailability(ctx context.Context, q service.AvailabilityQuery) ([]service.CourtAvailability, error)
	ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]*models.Reservation, error)
}

type ScheduleExporter struct {
	source Source
	logger *zerolog.Logger
}

func NewScheduleExporter(source Source, logger *zerolog.Logger) *ScheduleExporter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ScheduleExporter{source: source, logger: logger}
}

// VenueSchedule builds a workbook with one row per court and one column per
// increment slot, plus a flat list of the day's reservations. The caller
// closes the returned file.
func (e *ScheduleExporter) VenueSchedule(ctx context.Context, venueID int64, date time.Time, privileged bool) (*excelize.File, error) {
	date = models.DateOf(date)
	reports, err := e.source.ListAvailability(ctx, service.AvailabilityQuery{VenueID: venueID, Date: date, Privileged: privileged})
	if err != nil {
		return nil, err
	}
	reservations, err := e.source.ListReservations(ctx, domain.ReservationFilter{VenueID: venueID, From: date, To: date})
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	ok := false
	defer func() {
		if !ok {
			_ = f.Close()
		}
	}()

	if err := f.SetSheetName("Sheet1", scheduleSheet); err != nil {
		return nil, fmt.Errorf("error renaming sheet: %w", err)
	}
	if _, err := f.NewSheet(reservationsSheet); err != nil {
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}

	s := &sheetWriter{f: f, styles: make(map[string]int)}
	s.writeGrid(venueID, date, reports, reservations)
	s.writeReservations(reports, reservations)

	e.logger.Info().Int64("venue_id", venueID).Str("date", models.FormatDate(date)).
		Int("courts", len(reports)).Int("reservations", len(reservations)).Msg("schedule exported")
	ok = true
	return f, nil
}

type sheetWriter struct {
	f      *excelize.File
	styles map[string]int
}

func (s *sheetWriter) style(fill string, bold bool) int {
	key := fmt.Sprintf("%s/%t", fill, bold)
	if id, ok := s.styles[key]; ok {
		return id
	}
	id, err := s.f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{fill}, Pattern: 1},
		Font:      &excelize.Font{Bold: bold},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "top", WrapText: true},
	})
	if err != nil {
		return 0
	}
	s.styles[key] = id
	return id
}

func (s *sheetWriter) set(sheet string, col, row int, value any, fill string, bold bool) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return
	}
	_ = s.f.SetCellValue(sheet, cell, value)
	if fill != "" {
		_ = s.f.SetCellStyle(sheet, cell, cell, s.style(fill, bold))
	}
}

// span returns the union of the courts' operating hours and the grid step.
func span(reports []service.CourtAvailability) (models.Window, time.Duration, bool) {
	var hours models.Window
	var step time.Duration
	found := false
	for _, r := range reports {
		if r.Hours == nil {
			continue
		}
		if !found || r.Hours.Start < hours.Start {
			hours.Start = r.Hours.Start
		}
		if !found || r.Hours.End > hours.End {
			hours.End = r.Hours.End
		}
		if inc := r.Policy.Increment(); step == 0 || (inc > 0 && inc < step) {
			step = inc
		}
		found = true
	}
	return hours, step, found && step > 0
}

func (s *sheetWriter) writeGrid(venueID int64, date time.Time, reports []service.CourtAvailability, reservations []*models.Reservation) {
	s.set(scheduleSheet, 1, 1, fmt.Sprintf("Venue %d: %s", venueID, models.FormatDate(date)), "", false)

	hours, step, ok := span(reports)
	var columns []models.Window
	if ok {
		for w := range slots.Windows(hours.Start, hours.End, step) {
			columns = append(columns, w)
		}
	}
	for i, w := range columns {
		s.set(scheduleSheet, i+2, 2, w.String(), fillHeader, true)
	}

	byCourt := make(map[int64][]*models.Reservation)
	for _, r := range reservations {
		if r.IsActive() || r.Status == models.StatusCompleted {
			byCourt[r.CourtID] = append(byCourt[r.CourtID], r)
		}
	}

	for i, report := range reports {
		row := i + 3
		s.set(scheduleSheet, 1, row, fmt.Sprintf("Court %d (%s)", report.Court.Number, report.Court.Type), fillCourt, true)
		free := make(map[models.Window]bool, len(report.Windows))
		for _, w := range report.Windows {
			free[w] = true
		}
		for j, w := range columns {
			value, fill := classify(report, byCourt[report.Court.ID], free, w)
			s.set(scheduleSheet, j+2, row, value, fill, false)
		}
	}

	_ = s.f.SetColWidth(scheduleSheet, "A", "A", 22)
	if len(columns) > 0 {
		last, _ := excelize.ColumnNumberToName(len(columns) + 1)
		_ = s.f.SetColWidth(scheduleSheet, "B", last, 14)
		_ = s.f.MergeCell(scheduleSheet, "A1", last+"1")
	}
}

func classify(report service.CourtAvailability, reservations []*models.Reservation, free map[models.Window]bool, w models.Window) (string, string) {
	if report.Closed {
		return "closed", fillClosed
	}
	if report.Hours == nil || !report.Hours.Contains(w) {
		return "", fillClosed
	}
	for _, r := range reservations {
		if r.Window().Overlaps(w) {
			fill := fillPending
			if r.Status != models.StatusPending {
				fill = fillConfirmed
			}
			return fmt.Sprintf("%s\n%s", r.RequesterID, r.Status), fill
		}
	}
	for _, b := range report.Blackouts {
		if b.Window.Overlaps(w) {
			if b.Reason != "" {
				return b.Reason, fillBlackout
			}
			return "blackout", fillBlackout
		}
	}
	if free[w] {
		return "free", fillFree
	}
	return "unavailable", fillClosed
}

func (s *sheetWriter) writeReservations(reports []service.CourtAvailability, reservations []*models.Reservation) {
	numbers := make(map[int64]int, len(reports))
	for _, r := range reports {
		numbers[r.Court.ID] = r.Court.Number
	}

	headers := []string{"ID", "Court", "Start", "End", "Requester", "Status", "Notes", "Created"}
	for i, h := range headers {
		s.set(reservationsSheet, i+1, 1, h, fillHeader, true)
	}
	for i, r := range reservations {
		row := i + 2
		s.set(reservationsSheet, 1, row, r.ID, "", false)
		s.set(reservationsSheet, 2, row, numbers[r.CourtID], "", false)
		s.set(reservationsSheet, 3, row, r.StartTime.Short(), "", false)
		s.set(reservationsSheet, 4, row, r.EndTime.Short(), "", false)
		s.set(reservationsSheet, 5, row, r.RequesterID, "", false)
		s.set(reservationsSheet, 6, row, r.Status, "", false)
		s.set(reservationsSheet, 7, row, r.Notes, "", false)
		s.set(reservationsSheet, 8, row, r.CreatedAt.Format("2006-01-02 15:04"), "", false)
	}
	_ = s.f.SetColWidth(reservationsSheet, "A", "H", 16)
}
