package report

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/UnknownOlympus/hotelgate/internal/models"
	"github.com/xuri/excelize/v2"
)

var ErrNoBookings = errors.New("failed to generate report, 0 bookings were provided")

// Translate resolves a localization key such as "report.header.room".
type Translate func(key string) string

// Generator holds the state for the Excel report generation process.
type Generator struct {
	file      *excelize.File
	translate Translate
}

// NewGenerator creates a new report generator.
func NewGenerator(translate Translate) *Generator {
	if translate == nil {
		translate = func(key string) string { return key }
	}
	return &Generator{
		file:      excelize.NewFile(),
		translate: translate,
	}
}

type sheet struct {
	name string
	rows []models.Booking
}

// GenerateBookingReport builds a workbook with every booking on the first sheet and one
// sheet per booking status, ordered by status code.
func GenerateBookingReport(bookings []models.Booking, translate Translate) (*bytes.Buffer, error) {
	var err error

	if len(bookings) == 0 {
		return nil, ErrNoBookings
	}

	gen := NewGenerator(translate)
	defer gen.file.Close()

	byStatus := make(map[models.BookingStatus][]models.Booking)
	for _, booking := range bookings {
		byStatus[booking.Status] = append(byStatus[booking.Status], booking)
	}
	codes := make([]models.BookingStatus, 0, len(byStatus))
	for code := range byStatus {
		codes = append(codes, code)
	}
	slices.Sort(codes)

	sheets := []sheet{{name: gen.translate("report.sheet.all"), rows: bookings}}
	for _, code := range codes {
		sheets = append(sheets, sheet{name: gen.statusText(code), rows: byStatus[code]})
	}

	if err = gen.addSheets(sheets); err != nil {
		return nil, fmt.Errorf("failed to add sheets: %w", err)
	}

	gen.file.SetActiveSheet(0)

	if sheetIndex, _ := gen.file.GetSheetIndex("Sheet1"); sheetIndex != -1 {
		if err = gen.file.DeleteSheet("Sheet1"); err != nil {
			return nil, fmt.Errorf("failed to delete default sheet 'Sheet1': %w", err)
		}
	}

	buffer, err := gen.file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write data from saved file: %w", err)
	}

	return buffer, nil
}

func (g *Generator) statusText(code models.BookingStatus) string {
	return g.translate("status." + code.Label())
}

func (g *Generator) addSheets(sheets []sheet) error {
	var err error
	headerIndex := 2

	for tableIndex, current := range sheets {
		sheetName := truncateSheetName(current.name)

		if _, err = g.file.NewSheet(sheetName); err != nil {
			return fmt.Errorf("failed to generate new sheet '%s': %w", sheetName, err)
		}

		if err = g.setupSheet(sheetName, tableIndex, len(current.rows)); err != nil {
			return fmt.Errorf("failed to setup sheet '%s': %w", sheetName, err)
		}

		for i, booking := range current.rows {
			if err = g.addRow(sheetName, i+headerIndex, booking); err != nil {
				return fmt.Errorf("failed to add row '%d': %w", i+headerIndex, err)
			}
		}
	}
	return nil
}

// setupSheet writes the styled header row, column widths and the table range.
func (g *Generator) setupSheet(sheetName string, tableIndex, rowCount int) error {
	var err error

	headerStyle, err := g.file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Vertical: "center", Horizontal: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create new style: %w", err)
	}

	rowHeight := 20
	headers := []string{
		g.translate("report.header.id"),
		g.translate("report.header.customer"),
		g.translate("report.header.phone"),
		g.translate("report.header.room"),
		g.translate("report.header.check_in"),
		g.translate("report.header.check_out"),
		g.translate("report.header.status"),
		g.translate("report.header.amount"),
		g.translate("report.header.note"),
	}
	if err = g.file.SetRowHeight(sheetName, 1, float64(rowHeight)); err != nil {
		return fmt.Errorf("failed to set row height for headers: %w", err)
	}
	if err = g.file.SetSheetRow(sheetName, "A1", &headers); err != nil {
		return fmt.Errorf("failed to set sheet row for headers: %w", err)
	}
	if err = g.file.SetCellStyle(sheetName, "A1", "I1", headerStyle); err != nil {
		return fmt.Errorf("failed to set cell style for headers: %w", err)
	}

	widths := map[string]float64{
		"A": 10, "B": 30, "C": 16, "D": 10, "E": 14, "F": 14, "G": 16, "H": 14, "I": 40, //nolint:mnd // column widths
	}
	for col, width := range widths {
		if err = g.file.SetColWidth(sheetName, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	// table names must be unique within the workbook and may not contain spaces
	if err = g.file.AddTable(sheetName, &excelize.Table{
		Range:     fmt.Sprintf("A1:I%d", rowCount+1),
		Name:      fmt.Sprintf("bookings_%d", tableIndex),
		StyleName: "TableStyleMedium9",
	}); err != nil {
		return fmt.Errorf("failed to add table: %w", err)
	}

	return nil
}

func (g *Generator) addRow(sheetName string, rowNum int, booking models.Booking) error {
	rowData := []any{
		booking.ID,
		booking.CustomerName,
		booking.Phone,
		booking.RoomNumber,
		formatDate(booking.CheckInDate.IsZero(), booking.CheckInDate.Format("02.01.2006")),
		formatDate(booking.CheckOutDate.IsZero(), booking.CheckOutDate.Format("02.01.2006")),
		g.statusText(booking.Status),
		booking.TotalAmount,
		strings.TrimSpace(booking.Note),
	}
	cell, _ := excelize.CoordinatesToCellName(1, rowNum)

	if err := g.file.SetSheetRow(sheetName, cell, &rowData); err != nil {
		return fmt.Errorf("failed to set sheet row: %w", err)
	}

	return nil
}

func formatDate(zero bool, formatted string) string {
	if zero {
		return ""
	}
	return formatted
}

// truncateSheetName cuts the name to the 31 rune limit of sheet names.
func truncateSheetName(name string) string {
	if utf8.RuneCountInString(name) > 31 {
		runes := []rune(name)
		return string(runes[:31])
	}
	return name
}
