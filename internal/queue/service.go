package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"queue-ticket-backend/internal/auth"
	"queue-ticket-backend/internal/model"
	"queue-ticket-backend/internal/parse"
	"queue-ticket-backend/internal/store"
)

const (
	// DefaultListLimit is used when a list request names no limit.
	DefaultListLimit = 50
	// MaxListLimit caps list requests.
	MaxListLimit = 200
)

// Service implements the queue operations on top of a Store.
type Service struct {
	store     store.Store
	auth      auth.Authenticator
	listeners []Listener
	now       func() time.Time
	loc       *time.Location
}

// NewService creates a queue service.
func NewService(s store.Store, a auth.Authenticator, opts ...Option) *Service {
	svc := &Service{
		store: s,
		auth:  a,
		now:   time.Now,
		loc:   time.Local,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *Service) clock() time.Time {
	return s.now().In(s.loc)
}

// IssueRequest carries the visitor-supplied fields of a new ticket.
type IssueRequest struct {
	Applicant              string `json:"applicant"`
	CustomerName           string `json:"customerName"`
	CustomerRequirement    string `json:"customerRequirement"`
	MachineType            string `json:"machineType"`
	StartDate              string `json:"startDate"`
	ExpectedCompletionDate string `json:"expectedCompletionDate"`
	FCST                   string `json:"fcst"`
	MassProductionDate     string `json:"massProductionDate"`
}

func (r IssueRequest) validate() error {
	required := []struct {
		field string
		value string
	}{
		{model.FieldApplicant, r.Applicant},
		{model.FieldCustomerName, r.CustomerName},
		{model.FieldCustomerRequirement, r.CustomerRequirement},
		{model.FieldMachineType, r.MachineType},
		{model.FieldStartDate, r.StartDate},
		{model.FieldExpectedCompletionDate, r.ExpectedCompletionDate},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return invalid(f.field, "is required")
		}
	}
	return nil
}

// IssueTicket validates req, assigns the next ticket number and stores the
// new pending ticket.
func (s *Service) IssueTicket(ctx context.Context, req IssueRequest) (int64, error) {
	if err := req.validate(); err != nil {
		return 0, err
	}

	fields := map[string]string{
		model.FieldApplicant:              strings.TrimSpace(req.Applicant),
		model.FieldCustomerName:           strings.TrimSpace(req.CustomerName),
		model.FieldCustomerRequirement:    strings.TrimSpace(req.CustomerRequirement),
		model.FieldMachineType:            strings.TrimSpace(req.MachineType),
		model.FieldStartDate:              parse.Date(req.StartDate),
		model.FieldExpectedCompletionDate: parse.Date(req.ExpectedCompletionDate),
		model.FieldFCST:                   strings.TrimSpace(req.FCST),
		model.FieldMassProductionDate:     parse.Date(req.MassProductionDate),
		model.FieldStatus:                 string(model.StatusPending),
		model.FieldReplyDate:              "",
		model.FieldNote:                   "",
		model.FieldAssignee:               "",
		model.FieldCreatedAt:              s.clock().Format(time.RFC3339),
		model.FieldSchemaVersion:          strconv.Itoa(model.SchemaVersion),
	}

	number, err := s.store.CreateTicket(ctx, fields)
	if err != nil {
		return 0, storeError("issue ticket", err)
	}
	log.Printf("Issued ticket %d", number)
	return number, nil
}

// State returns the queue counters.
func (s *Service) State(ctx context.Context) (model.QueueState, error) {
	state, err := s.store.State(ctx)
	if err != nil {
		return model.QueueState{}, storeError("read state", err)
	}
	return state, nil
}

// AdvanceResult is the outcome of a call-next request. Advanced is false when
// every issued ticket has already been called.
type AdvanceResult struct {
	State    model.QueueState
	Advanced bool
}

// Advance calls the next number.
func (s *Service) Advance(ctx context.Context) (AdvanceResult, error) {
	state, advanced, err := s.store.Advance(ctx)
	if err != nil {
		return AdvanceResult{}, storeError("advance", err)
	}
	if advanced {
		log.Printf("Now serving ticket %d", state.CurrentNumber)
		s.notifyCalled(ctx, model.CallRecord{
			TicketNumber: state.CurrentNumber,
			Source:       model.CallSourceAdvance,
			CalledAt:     s.clock(),
		})
	}
	return AdvanceResult{State: state, Advanced: advanced}, nil
}

// OverrideRequest sets counters directly. Values are raw text so that
// non-numeric input can be reported as a validation error.
type OverrideRequest struct {
	CurrentNumber *string
	NextNumber    *string
}

// Override writes the provided counters without any ordering check. The
// current number may be 0; the next number must be at least 1.
func (s *Service) Override(ctx context.Context, req OverrideRequest) (model.QueueState, error) {
	if req.CurrentNumber == nil && req.NextNumber == nil {
		return model.QueueState{}, invalid("currentNumber", "or nextNumber is required")
	}

	var current, next *int64
	if req.CurrentNumber != nil {
		v, err := parse.Counter(*req.CurrentNumber)
		if err != nil {
			return model.QueueState{}, invalid(model.FieldCurrentNumber, "must be a non-negative integer")
		}
		current = &v
	}
	if req.NextNumber != nil {
		v, err := parse.Counter(*req.NextNumber)
		if err != nil || v < 1 {
			return model.QueueState{}, invalid(model.FieldNextNumber, "must be a positive integer")
		}
		next = &v
	}

	before, err := s.store.State(ctx)
	if err != nil {
		return model.QueueState{}, storeError("read state", err)
	}
	after, err := s.store.SetCounters(ctx, current, next)
	if err != nil {
		return model.QueueState{}, storeError("override state", err)
	}

	log.Printf("Counters overridden: current %d -> %d, next %d -> %d",
		before.CurrentNumber, after.CurrentNumber, before.NextNumber, after.NextNumber)
	if current != nil && after.CurrentNumber != before.CurrentNumber && after.CurrentNumber > 0 {
		s.notifyCalled(ctx, model.CallRecord{
			TicketNumber: after.CurrentNumber,
			Source:       model.CallSourceOverride,
			CalledAt:     s.clock(),
		})
	}
	return after, nil
}

// Reset deletes every ticket and zeroes the counters.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.store.Reset(ctx); err != nil {
		return storeError("reset", err)
	}
	log.Println("Queue reset")
	s.notifyReset(ctx)
	return nil
}

// ClampLimit turns a raw limit parameter into a list bound: empty or
// unparsable values give DefaultListLimit, others are clamped to [1, MaxListLimit].
func ClampLimit(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultListLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return DefaultListLimit
	}
	if n < 1 {
		return 1
	}
	if n > MaxListLimit {
		return MaxListLimit
	}
	return n
}

// isNoRecord reports whether err means the ticket record is absent.
func isNoRecord(err error) bool {
	return errors.Is(err, store.ErrNoRecord)
}

func notFound(number int64) error {
	return fmt.Errorf("%w: ticket %d", ErrNotFound, number)
}
