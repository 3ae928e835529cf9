package sheet

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"queue-ticket-backend/internal/model"
)

// SheetName is the worksheet written by Encode.
const SheetName = "票券資料"

var (
	// ErrNoNumberColumn is returned when the header row lacks a ticket number column.
	ErrNoNumberColumn = errors.New("spreadsheet must contain a 號碼 column")
	// ErrNoRows is returned when there is no data row below the header.
	ErrNoRows = errors.New("spreadsheet needs a header row and at least one data row")
)

// Column maps a ticket field to its exported header and accepted import spellings.
type Column struct {
	Field   string
	Header  string
	Aliases []string
	Width   float64
}

// Columns is the fixed export layout, in order.
var Columns = []Column{
	{Field: model.FieldTicketNumber, Header: "號碼", Aliases: []string{"票號"}, Width: 10},
	{Field: model.FieldApplicant, Header: "申請人", Width: 15},
	{Field: model.FieldCustomerName, Header: "客戶名稱", Aliases: []string{"客戶姓名"}, Width: 20},
	{Field: model.FieldCustomerRequirement, Header: "客戶需求", Aliases: []string{"需求"}, Width: 30},
	{Field: model.FieldMachineType, Header: "預計使用機種", Aliases: []string{"機種"}, Width: 20},
	{Field: model.FieldStartDate, Header: "起始日期", Width: 15},
	{Field: model.FieldExpectedCompletionDate, Header: "期望完成日期", Aliases: []string{"完成日期"}, Width: 15},
	{Field: model.FieldFCST, Header: "FCST", Width: 12},
	{Field: model.FieldMassProductionDate, Header: "量產日期", Width: 15},
	{Field: model.FieldStatus, Header: "處理進度", Aliases: []string{"狀態"}, Width: 12},
	{Field: model.FieldReplyDate, Header: "回覆日期", Width: 15},
	{Field: model.FieldNote, Header: "備註", Aliases: []string{"備註說明"}, Width: 30},
	{Field: model.FieldAssignee, Header: "處理者", Width: 15},
}

// matches reports whether a header cell names this column. The field's own
// key is accepted case-insensitively, the display headers exactly.
func (c Column) matches(cell string) bool {
	cell = strings.TrimSpace(cell)
	if cell == c.Header || strings.EqualFold(cell, c.Field) {
		return true
	}
	for _, alias := range c.Aliases {
		if cell == alias {
			return true
		}
	}
	return false
}

func fieldValue(t model.Ticket, field string) interface{} {
	switch field {
	case model.FieldTicketNumber:
		return t.TicketNumber
	case model.FieldApplicant:
		return t.Applicant
	case model.FieldCustomerName:
		return t.CustomerName
	case model.FieldCustomerRequirement:
		return t.CustomerRequirement
	case model.FieldMachineType:
		return t.MachineType
	case model.FieldStartDate:
		return t.StartDate
	case model.FieldExpectedCompletionDate:
		return t.ExpectedCompletionDate
	case model.FieldFCST:
		return t.FCST
	case model.FieldMassProductionDate:
		return t.MassProductionDate
	case model.FieldStatus:
		return string(t.Status)
	case model.FieldReplyDate:
		return t.ReplyDate
	case model.FieldNote:
		return t.Note
	case model.FieldAssignee:
		return t.Assignee
	}
	return ""
}

// Encode writes tickets as an xlsx workbook, one row per ticket.
func Encode(tickets []model.Ticket) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("failed to name worksheet: %w", err)
	}

	header := make([]interface{}, len(Columns))
	for i, col := range Columns {
		header[i] = col.Header
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(SheetName, name, name, col.Width); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for r, t := range tickets {
		row := make([]interface{}, len(Columns))
		for i, col := range Columns {
			row[i] = fieldValue(t, col.Field)
		}
		if err := f.SetSheetRow(SheetName, "A"+strconv.Itoa(r+2), &row); err != nil {
			return nil, fmt.Errorf("failed to write ticket %d: %w", t.TicketNumber, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Row is one data row of an imported sheet.
type Row struct {
	// Line is the 1-based worksheet row.
	Line   int
	Number string
	// Values holds the cells of every recognized column other than the ticket number.
	Values map[string]string
}

// Decode reads the first worksheet of an xlsx workbook and maps recognized
// header columns to ticket fields. Blank rows are dropped.
func Decode(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoRows
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %q: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, ErrNoRows
	}

	positions := make(map[string]int)
	for i, cell := range rows[0] {
		for _, col := range Columns {
			if _, seen := positions[col.Field]; seen {
				continue
			}
			if col.matches(cell) {
				positions[col.Field] = i
				break
			}
		}
	}
	numberAt, ok := positions[model.FieldTicketNumber]
	if !ok {
		return nil, ErrNoNumberColumn
	}

	out := make([]Row, 0, len(rows)-1)
	for i, cells := range rows[1:] {
		if blank(cells) {
			continue
		}
		row := Row{
			Line:   i + 2,
			Number: cellAt(cells, numberAt),
			Values: make(map[string]string, len(positions)-1),
		}
		for field, at := range positions {
			if field == model.FieldTicketNumber {
				continue
			}
			row.Values[field] = cellAt(cells, at)
		}
		out = append(out, row)
	}
	return out, nil
}

func cellAt(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
