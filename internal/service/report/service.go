package report

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/carepoint/portal-api/internal/docstore"
	"github.com/carepoint/portal-api/internal/model"
	"github.com/carepoint/portal-api/internal/query"
	apperrors "github.com/carepoint/portal-api/pkg/errors"
)

const dateLayout = "2006-01-02"

// appointmentHeader is the column order of the appointment export sheet.
var appointmentHeader = []string{
	"Date",
	"Time",
	"Patient",
	"Doctor",
	"Status",
	"Notes",
}

var appointmentColumnWidths = []float64{
	14, // Date
	10, // Time
	24, // Patient
	24, // Doctor
	14, // Status
	40, // Notes
}

// Service builds admin exports from stored records.
type Service struct {
	composer *query.Composer
}

func NewService(composer *query.Composer) *Service {
	return &Service{composer: composer}
}

// AppointmentsWorkbook exports every appointment with a date between
// from and to (inclusive, YYYY-MM-DD) as an XLSX workbook and returns
// the serialized bytes.
func (s *Service) AppointmentsWorkbook(ctx context.Context, from, to string) ([]byte, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}

	docs, err := s.composer.Run(ctx, query.Query{
		Collection: docstore.CollectionAppointments,
		Refine: []query.Filter{
			{Field: "date", Op: query.OpGte, Value: from},
			{Field: "date", Op: query.OpLte, Value: to},
		},
		OrderBy: "date",
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	appts := make([]model.Appointment, 0, len(docs))
	for _, doc := range docs {
		var appt model.Appointment
		if err := docstore.Decode(doc, &appt); err != nil {
			return nil, apperrors.Internal(err)
		}
		appts = append(appts, appt)
	}
	sort.SliceStable(appts, func(i, j int) bool {
		if appts[i].Date != appts[j].Date {
			return appts[i].Date < appts[j].Date
		}
		return appts[i].Time < appts[j].Time
	})

	return buildAppointmentWorkbook(appts)
}

// Filename returns the attachment name for an appointment export.
func Filename(from, to string) string {
	return fmt.Sprintf("appointments_%s_%s.xlsx", from, to)
}

func validateRange(from, to string) error {
	start, err := time.Parse(dateLayout, from)
	if err != nil {
		return apperrors.BadRequest("from must be a YYYY-MM-DD date", err)
	}
	end, err := time.Parse(dateLayout, to)
	if err != nil {
		return apperrors.BadRequest("to must be a YYYY-MM-DD date", err)
	}
	if end.Before(start) {
		return apperrors.BadRequest("to must not be before from", nil)
	}
	return nil
}

func buildAppointmentWorkbook(appts []model.Appointment) ([]byte, error) {
	f := excelize.NewFile()

	const sheet = "Appointments"
	index, err := f.NewSheet(sheet)
	if err != nil {
		f.Close()
		return nil, apperrors.Internal(fmt.Errorf("create sheet: %w", err))
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, apperrors.Internal(fmt.Errorf("create header style: %w", err))
	}

	for col, header := range appointmentHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, apperrors.Internal(err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			f.Close()
			return nil, apperrors.Internal(err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, apperrors.Internal(err)
		}
	}

	for i, width := range appointmentColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, apperrors.Internal(err)
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			f.Close()
			return nil, apperrors.Internal(err)
		}
	}

	for i, appt := range appts {
		row := i + 2 // data starts under the header
		values := []interface{}{
			appt.Date,
			appt.Time,
			displayOr(appt.PatientName, appt.PatientID),
			displayOr(appt.DoctorName, appt.DoctorID),
			appt.Status,
			appt.Notes,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				f.Close()
				return nil, apperrors.Internal(err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				f.Close()
				return nil, apperrors.Internal(err)
			}
		}
	}

	// Keep the header visible while scrolling.
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, apperrors.Internal(err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, apperrors.Internal(fmt.Errorf("serialize workbook: %w", err))
	}
	if err := f.Close(); err != nil {
		return nil, apperrors.Internal(err)
	}
	return buf.Bytes(), nil
}

func displayOr(name, id string) string {
	if name != "" {
		return name
	}
	return id
}
