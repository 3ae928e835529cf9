package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"queue-ticket-backend/internal/auth"
	"queue-ticket-backend/internal/model"
	"queue-ticket-backend/internal/parse"
	"queue-ticket-backend/internal/sheet"
)

// maxImportErrors bounds the per-row error list of an import.
const maxImportErrors = 100

// ExportFile is a spreadsheet snapshot of every ticket.
type ExportFile struct {
	Filename string
	Data     []byte
}

// ContentType is the MIME type of ExportFile.Data.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Export renders every ticket into an xlsx workbook named after the current
// minute. It fails with ErrNotFound when there are no tickets.
func (s *Service) Export(ctx context.Context) (ExportFile, error) {
	tickets, err := s.ListTickets(ctx, 0)
	if err != nil {
		return ExportFile{}, err
	}
	if len(tickets) == 0 {
		return ExportFile{}, fmt.Errorf("%w: no tickets to export", ErrNotFound)
	}

	data, err := sheet.Encode(tickets)
	if err != nil {
		return ExportFile{}, fmt.Errorf("failed to encode export: %w", err)
	}
	return ExportFile{
		Filename: fmt.Sprintf("票券資料_%s.xlsx", s.clock().Format("200601021504")),
		Data:     data,
	}, nil
}

// ImportResult summarizes an import. Errors lists skipped rows.
type ImportResult struct {
	Imported int      `json:"imported"`
	Updated  int      `json:"updated"`
	Errors   []string `json:"errors,omitempty"`
}

type importErrors struct {
	list    []string
	dropped int
}

func (e *importErrors) add(format string, args ...interface{}) {
	if len(e.list) >= maxImportErrors {
		e.dropped++
		return
	}
	e.list = append(e.list, fmt.Sprintf(format, args...))
}

func (e *importErrors) result() []string {
	if e.dropped > 0 {
		return append(e.list, fmt.Sprintf("... and %d more", e.dropped))
	}
	return e.list
}

var dateFields = map[string]bool{
	model.FieldStartDate:              true,
	model.FieldExpectedCompletionDate: true,
	model.FieldMassProductionDate:     true,
	model.FieldReplyDate:              true,
}

// importValues cleans the cells of one row. Unknown statuses become pending.
func importValues(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for field, raw := range values {
		switch {
		case field == model.FieldStatus:
			out[field] = string(model.NormalizeStatus(strings.ToLower(strings.TrimSpace(raw))))
		case field == model.FieldNote:
			out[field] = strings.TrimSpace(raw)
		case dateFields[field]:
			out[field] = parse.Date(raw)
		default:
			out[field] = parse.Text(raw)
		}
	}
	return out
}

// Import upserts every row of an xlsx workbook after checking credential
// against the destructive role. The credential is checked before r, which may
// be nil when no file was sent. Rows with an invalid ticket number or a
// failed write are skipped and reported; the rest of the file still applies.
func (s *Service) Import(ctx context.Context, credential string, r io.Reader) (ImportResult, error) {
	if err := s.auth.Authorize(ctx, auth.RoleDestructive, credential); err != nil {
		return ImportResult{}, fmt.Errorf("%w: import", ErrAuth)
	}
	if r == nil {
		return ImportResult{}, invalid("file", "is required")
	}

	rows, err := sheet.Decode(r)
	if err != nil {
		switch {
		case errors.Is(err, sheet.ErrNoNumberColumn):
			return ImportResult{}, invalid("file", "must contain a 號碼 column")
		case errors.Is(err, sheet.ErrNoRows):
			return ImportResult{}, invalid("file", "needs a header row and at least one data row")
		default:
			return ImportResult{}, invalid("file", "is not a readable xlsx workbook")
		}
	}

	defaults := map[string]string{
		model.FieldStatus:        string(model.StatusPending),
		model.FieldNote:          "",
		model.FieldAssignee:      "",
		model.FieldCreatedAt:     s.clock().Format(time.RFC3339),
		model.FieldSchemaVersion: strconv.Itoa(model.SchemaVersion),
	}

	var (
		result ImportResult
		errs   importErrors
	)
	for _, row := range rows {
		number, err := parse.TicketNumber(row.Number)
		if err != nil {
			errs.add("row %d: invalid ticket number", row.Line)
			continue
		}

		created, err := s.store.UpsertTicket(ctx, number, importValues(row.Values), defaults)
		if err != nil {
			log.Printf("Import row %d (ticket %d) failed: %v", row.Line, number, err)
			errs.add("row %d: failed to save ticket %d", row.Line, number)
			continue
		}
		if created {
			result.Imported++
		} else {
			result.Updated++
		}
	}
	result.Errors = errs.result()

	log.Printf("Import finished: %d imported, %d updated, %d errors", result.Imported, result.Updated, len(result.Errors))
	return result, nil
}
