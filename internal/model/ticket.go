package model

import "time"

// SchemaVersion identifies the ticket record layout written by this service.
// Records without a version were written by earlier revisions and are read
// with the same field names.
const SchemaVersion = 3

// TicketStatus is the processing state of a ticket.
type TicketStatus string

const (
	StatusPending    TicketStatus = "pending"
	StatusProcessing TicketStatus = "processing"
	StatusReplied    TicketStatus = "replied"
	StatusCompleted  TicketStatus = "completed"
	StatusCancelled  TicketStatus = "cancelled"
)

// Statuses lists every recognized status in display order.
var Statuses = []TicketStatus{
	StatusPending,
	StatusProcessing,
	StatusReplied,
	StatusCompleted,
	StatusCancelled,
}

// Valid reports whether s is one of the recognized statuses.
func (s TicketStatus) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// NormalizeStatus maps unknown or empty values to pending.
func NormalizeStatus(raw string) TicketStatus {
	s := TicketStatus(raw)
	if !s.Valid() {
		return StatusPending
	}
	return s
}

// DateLayout is the calendar date format used by every date field.
const DateLayout = "2006-01-02"

// Ticket is one queue entry and its customer/processing metadata.
type Ticket struct {
	TicketNumber           int64        `json:"ticketNumber"`
	Applicant              string       `json:"applicant"`
	CustomerName           string       `json:"customerName"`
	CustomerRequirement    string       `json:"customerRequirement"`
	MachineType            string       `json:"machineType"`
	StartDate              string       `json:"startDate"`
	ExpectedCompletionDate string       `json:"expectedCompletionDate"`
	FCST                   string       `json:"fcst"`
	MassProductionDate     string       `json:"massProductionDate"`
	Status                 TicketStatus `json:"status"`
	ReplyDate              string       `json:"replyDate"`
	Note                   string       `json:"note"`
	Assignee               string       `json:"assignee"`
	CreatedAt              string       `json:"createdAt"`

	// RepliedDays is derived on read for replied tickets.
	RepliedDays *int `json:"repliedDays,omitempty"`
}

// Hash field names of a stored ticket record.
const (
	FieldApplicant              = "applicant"
	FieldCustomerName           = "customerName"
	FieldCustomerRequirement    = "customerRequirement"
	FieldMachineType            = "machineType"
	FieldStartDate              = "startDate"
	FieldExpectedCompletionDate = "expectedCompletionDate"
	FieldFCST                   = "fcst"
	FieldMassProductionDate     = "massProductionDate"
	FieldStatus                 = "status"
	FieldReplyDate              = "replyDate"
	FieldNote                   = "note"
	FieldAssignee               = "assignee"
	FieldCreatedAt              = "createdAt"
	FieldSchemaVersion          = "schemaVersion"

	// fieldLegacyReply held free-text replies before note existed.
	fieldLegacyReply = "reply"
)

// TicketFromFields builds a normalized ticket from a stored hash. A nil or
// empty map yields the blank pending record.
func TicketFromFields(number int64, fields map[string]string) Ticket {
	note := fields[FieldNote]
	if note == "" {
		note = fields[fieldLegacyReply]
	}
	return Ticket{
		TicketNumber:           number,
		Applicant:              fields[FieldApplicant],
		CustomerName:           fields[FieldCustomerName],
		CustomerRequirement:    fields[FieldCustomerRequirement],
		MachineType:            fields[FieldMachineType],
		StartDate:              fields[FieldStartDate],
		ExpectedCompletionDate: fields[FieldExpectedCompletionDate],
		FCST:                   fields[FieldFCST],
		MassProductionDate:     fields[FieldMassProductionDate],
		Status:                 NormalizeStatus(fields[FieldStatus]),
		ReplyDate:              fields[FieldReplyDate],
		Note:                   note,
		Assignee:               fields[FieldAssignee],
		CreatedAt:              fields[FieldCreatedAt],
	}
}

// WithRepliedDays fills RepliedDays for replied tickets whose reply date parses.
func (t Ticket) WithRepliedDays(now time.Time) Ticket {
	t.RepliedDays = nil
	if t.Status != StatusReplied || t.ReplyDate == "" {
		return t
	}
	// Both sides are calendar dates; UTC keeps DST shifts out of the difference.
	replied, err := time.Parse(DateLayout, t.ReplyDate)
	if err != nil {
		return t
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := int(today.Sub(replied).Hours() / 24)
	if days < 0 {
		days = 0
	}
	t.RepliedDays = &days
	return t
}

// QueueState is the global counter aggregate.
type QueueState struct {
	CurrentNumber int64 `json:"currentNumber"`
	LastTicket    int64 `json:"lastTicket"`
	NextNumber    int64 `json:"nextNumber"`
}

// Counter names used in validation messages and JSON bodies.
const (
	FieldCurrentNumber = "currentNumber"
	FieldNextNumber    = "nextNumber"
)

// FieldTicketNumber names the ticket number in validation messages.
const FieldTicketNumber = "ticketNumber"
