package queue

import (
	"context"
	"log"
	"strings"
	"time"

	"queue-ticket-backend/internal/model"
	"queue-ticket-backend/internal/parse"
)

// ListTickets returns tickets in issue order. limit > 0 keeps only the most
// recent limit tickets. Missing records and unknown statuses read as pending.
func (s *Service) ListTickets(ctx context.Context, limit int) ([]model.Ticket, error) {
	numbers, err := s.store.TicketNumbers(ctx, limit)
	if err != nil {
		return nil, storeError("list tickets", err)
	}
	records, err := s.store.TicketFields(ctx, numbers...)
	if err != nil {
		return nil, storeError("list tickets", err)
	}

	now := s.clock()
	tickets := make([]model.Ticket, len(numbers))
	for i, n := range numbers {
		tickets[i] = model.TicketFromFields(n, records[i]).WithRepliedDays(now)
	}
	return tickets, nil
}

// GetTicket returns one ticket. Numbers without a record yield the blank
// pending ticket rather than an error.
func (s *Service) GetTicket(ctx context.Context, number int64) (model.Ticket, error) {
	if number <= 0 {
		return model.Ticket{}, invalid(model.FieldTicketNumber, "must be a positive integer")
	}
	records, err := s.store.TicketFields(ctx, number)
	if err != nil {
		return model.Ticket{}, storeError("get ticket", err)
	}
	return model.TicketFromFields(number, records[0]).WithRepliedDays(s.clock()), nil
}

// UpdateRequest is a partial ticket update; nil fields are left untouched.
type UpdateRequest struct {
	Status             *string `json:"status"`
	Note               *string `json:"note"`
	Assignee           *string `json:"assignee"`
	FCST               *string `json:"fcst"`
	MassProductionDate *string `json:"massProductionDate"`
	ReplyDate          *string `json:"replyDate"`
}

func (r UpdateRequest) fields() (map[string]string, error) {
	fields := make(map[string]string)
	if r.Status != nil {
		status := model.TicketStatus(strings.TrimSpace(*r.Status))
		if !status.Valid() {
			return nil, invalid(model.FieldStatus, "must be one of pending, processing, replied, completed, cancelled")
		}
		fields[model.FieldStatus] = string(status)
	}
	if r.Note != nil {
		fields[model.FieldNote] = *r.Note
	}
	if r.Assignee != nil {
		fields[model.FieldAssignee] = strings.TrimSpace(*r.Assignee)
	}
	if r.FCST != nil {
		fields[model.FieldFCST] = strings.TrimSpace(*r.FCST)
	}
	if r.MassProductionDate != nil {
		fields[model.FieldMassProductionDate] = parse.Date(*r.MassProductionDate)
	}
	if r.ReplyDate != nil {
		date := parse.Date(*r.ReplyDate)
		if date != "" {
			if _, err := time.Parse(model.DateLayout, date); err != nil {
				return nil, invalid(model.FieldReplyDate, "must be a YYYY-MM-DD date")
			}
		}
		fields[model.FieldReplyDate] = date
	}
	return fields, nil
}

// UpdateTicket applies req to an existing ticket and returns the merged
// record. Moving a ticket to replied stamps today's reply date unless one is
// given or already recorded.
func (s *Service) UpdateTicket(ctx context.Context, number int64, req UpdateRequest) (model.Ticket, error) {
	if number <= 0 {
		return model.Ticket{}, invalid(model.FieldTicketNumber, "must be a positive integer")
	}
	fields, err := req.fields()
	if err != nil {
		return model.Ticket{}, err
	}

	if fields[model.FieldStatus] == string(model.StatusReplied) && req.ReplyDate == nil {
		records, err := s.store.TicketFields(ctx, number)
		if err != nil {
			return model.Ticket{}, storeError("update ticket", err)
		}
		current := model.TicketFromFields(number, records[0])
		if current.Status != model.StatusReplied || current.ReplyDate == "" {
			fields[model.FieldReplyDate] = s.clock().Format(model.DateLayout)
		}
	}

	merged, err := s.store.UpdateTicket(ctx, number, fields)
	if err != nil {
		if isNoRecord(err) {
			return model.Ticket{}, notFound(number)
		}
		return model.Ticket{}, storeError("update ticket", err)
	}
	if len(fields) > 0 {
		log.Printf("Ticket %d updated (%d fields)", number, len(fields))
	}
	return model.TicketFromFields(number, merged).WithRepliedDays(s.clock()), nil
}

// DeleteTicket removes a ticket from the record store and the index.
// Deleting an unknown number succeeds.
func (s *Service) DeleteTicket(ctx context.Context, number int64) error {
	if number <= 0 {
		return invalid(model.FieldTicketNumber, "must be a positive integer")
	}
	if err := s.store.DeleteTicket(ctx, number); err != nil {
		return storeError("delete ticket", err)
	}
	log.Printf("Ticket %d deleted", number)
	return nil
}
