package queue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"queue-ticket-backend/internal/auth"
	"queue-ticket-backend/internal/model"
	"queue-ticket-backend/internal/store"
)

var fixedNow = time.Date(2026, 3, 10, 14, 5, 0, 0, time.UTC)

type recordingListener struct {
	mu     sync.Mutex
	calls  []model.CallRecord
	resets int
}

func (l *recordingListener) TicketCalled(_ context.Context, call model.CallRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *recordingListener) QueueReset(context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resets++
}

type fixture struct {
	svc      *Service
	mr       *miniredis.Miniredis
	listener *recordingListener
}

func newFixture(t *testing.T) fixture {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	listener := &recordingListener{}
	svc := NewService(
		store.NewRedisStore(rdb, "queue"),
		auth.NewSharedSecret(map[auth.Role]string{auth.RoleDestructive: "import-secret"}),
		WithListener(listener),
		WithClock(func() time.Time { return fixedNow }),
		WithLocation(time.UTC),
	)
	return fixture{svc: svc, mr: mr, listener: listener}
}

func validIssue(name string) IssueRequest {
	return IssueRequest{
		Applicant:              "Lin",
		CustomerName:           name,
		CustomerRequirement:    "sample run",
		MachineType:            "X200",
		StartDate:              "2026/3/1",
		ExpectedCompletionDate: "2026-04-01",
	}
}

func TestIssueTicket_Sequential(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i := int64(1); i <= 4; i++ {
		n, err := f.svc.IssueTicket(ctx, validIssue(fmt.Sprintf("c%d", i)))
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	state, err := f.svc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), state.LastTicket)

	ticket, err := f.svc.GetTicket(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "c2", ticket.CustomerName)
	assert.Equal(t, model.StatusPending, ticket.Status)
	assert.Equal(t, "2026-03-01", ticket.StartDate)
	assert.Equal(t, fixedNow.Format(time.RFC3339), ticket.CreatedAt)
	assert.Empty(t, ticket.Note)
	assert.Empty(t, ticket.Assignee)
}

func TestIssueTicket_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req := validIssue("Acme")
	req.MachineType = "   "
	_, err := f.svc.IssueTicket(ctx, req)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, model.FieldMachineType, verr.Field)
	assert.ErrorIs(t, err, ErrValidation)

	state, err := f.svc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), state.LastTicket, "no number is consumed by a rejected request")
}

func TestAdvance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.Advance(ctx)
	require.NoError(t, err)
	assert.False(t, res.Advanced)
	assert.Empty(t, f.listener.calls)

	_, err = f.svc.IssueTicket(ctx, validIssue("a"))
	require.NoError(t, err)

	res, err = f.svc.Advance(ctx)
	require.NoError(t, err)
	assert.True(t, res.Advanced)
	assert.Equal(t, model.QueueState{CurrentNumber: 1, LastTicket: 1, NextNumber: 2}, res.State)

	res, err = f.svc.Advance(ctx)
	require.NoError(t, err)
	assert.False(t, res.Advanced)
	assert.Equal(t, model.QueueState{CurrentNumber: 1, LastTicket: 1, NextNumber: 2}, res.State)

	require.Len(t, f.listener.calls, 1)
	assert.Equal(t, int64(1), f.listener.calls[0].TicketNumber)
	assert.Equal(t, model.CallSourceAdvance, f.listener.calls[0].Source)
}

func TestOverride(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		_, err := f.svc.IssueTicket(ctx, validIssue("c"))
		require.NoError(t, err)
	}

	next := "4"
	state, err := f.svc.Override(ctx, OverrideRequest{NextNumber: &next})
	require.NoError(t, err)
	assert.Equal(t, model.QueueState{CurrentNumber: 0, LastTicket: 5, NextNumber: 4}, state)

	res, err := f.svc.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.State.CurrentNumber)
	assert.Equal(t, int64(5), res.State.NextNumber)

	// Out of order values are allowed.
	current, next := "9", "2"
	state, err = f.svc.Override(ctx, OverrideRequest{CurrentNumber: &current, NextNumber: &next})
	require.NoError(t, err)
	assert.Equal(t, model.QueueState{CurrentNumber: 9, LastTicket: 5, NextNumber: 2}, state)

	require.Len(t, f.listener.calls, 2)
	assert.Equal(t, model.CallSourceOverride, f.listener.calls[1].Source)
	assert.Equal(t, int64(9), f.listener.calls[1].TicketNumber)
}

func TestOverride_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	bad := "five"
	_, err := f.svc.Override(ctx, OverrideRequest{CurrentNumber: &bad})
	assert.ErrorIs(t, err, ErrValidation)

	negative := "-1"
	_, err = f.svc.Override(ctx, OverrideRequest{NextNumber: &negative})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Override(ctx, OverrideRequest{})
	assert.ErrorIs(t, err, ErrValidation)

	zero := "0"
	_, err = f.svc.Override(ctx, OverrideRequest{NextNumber: &zero})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, model.FieldNextNumber, verr.Field)

	state, err := f.svc.Override(ctx, OverrideRequest{CurrentNumber: &zero})
	require.NoError(t, err)
	assert.Equal(t, int64(0), state.CurrentNumber)
	assert.Equal(t, int64(1), state.NextNumber)
	assert.Empty(t, f.listener.calls)
}

func TestListTickets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 1; i <= 3; i++ {
		_, err := f.svc.IssueTicket(ctx, validIssue(fmt.Sprintf("c%d", i)))
		require.NoError(t, err)
	}
	// A corrupted status and a dangling index entry both read as pending.
	f.mr.HSet("queue:ticket:2", model.FieldStatus, "archived")
	_, err := f.mr.RPush("queue:tickets", "4")
	require.NoError(t, err)

	tickets, err := f.svc.ListTickets(ctx, 0)
	require.NoError(t, err)
	require.Len(t, tickets, 4)
	assert.Equal(t, []int64{1, 2, 3, 4}, []int64{tickets[0].TicketNumber, tickets[1].TicketNumber, tickets[2].TicketNumber, tickets[3].TicketNumber})
	assert.Equal(t, model.StatusPending, tickets[1].Status)
	assert.Equal(t, model.StatusPending, tickets[3].Status)
	assert.Empty(t, tickets[3].CustomerName)

	recent, err := f.svc.ListTickets(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(3), recent[0].TicketNumber)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 50, ClampLimit(""))
	assert.Equal(t, 50, ClampLimit("many"))
	assert.Equal(t, 1, ClampLimit("0"))
	assert.Equal(t, 1, ClampLimit("-7"))
	assert.Equal(t, 20, ClampLimit("20"))
	assert.Equal(t, 200, ClampLimit("500"))
}

func TestUpdateTicket_Partial(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	n, err := f.svc.IssueTicket(ctx, validIssue("Acme"))
	require.NoError(t, err)

	note := "waiting for samples"
	ticket, err := f.svc.UpdateTicket(ctx, n, UpdateRequest{Note: &note})
	require.NoError(t, err)
	assert.Equal(t, note, ticket.Note)
	assert.Equal(t, model.StatusPending, ticket.Status)

	status, assignee := "processing", "Wu"
	ticket, err = f.svc.UpdateTicket(ctx, n, UpdateRequest{Status: &status, Assignee: &assignee})
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, ticket.Status)
	assert.Equal(t, "Wu", ticket.Assignee)
	assert.Equal(t, note, ticket.Note, "omitted fields keep their values")
	assert.Equal(t, "Acme", ticket.CustomerName)
}

func TestUpdateTicket_InvalidStatusLeavesRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	n, err := f.svc.IssueTicket(ctx, validIssue("Acme"))
	require.NoError(t, err)

	status, note := "shipped", "should not be written"
	_, err = f.svc.UpdateTicket(ctx, n, UpdateRequest{Status: &status, Note: &note})
	assert.ErrorIs(t, err, ErrValidation)

	ticket, err := f.svc.GetTicket(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, ticket.Status)
	assert.Empty(t, ticket.Note)
}

func TestUpdateTicket_ReplyDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	n, err := f.svc.IssueTicket(ctx, validIssue("Acme"))
	require.NoError(t, err)

	replied := "replied"
	ticket, err := f.svc.UpdateTicket(ctx, n, UpdateRequest{Status: &replied})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-10", ticket.ReplyDate)
	require.NotNil(t, ticket.RepliedDays)
	assert.Equal(t, 0, *ticket.RepliedDays)

	date := "2026/3/3"
	ticket, err = f.svc.UpdateTicket(ctx, n, UpdateRequest{ReplyDate: &date})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-03", ticket.ReplyDate)
	assert.Equal(t, 7, *ticket.RepliedDays)

	// Re-saving the same status keeps the recorded date.
	ticket, err = f.svc.UpdateTicket(ctx, n, UpdateRequest{Status: &replied})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-03", ticket.ReplyDate)

	bad := "soon"
	_, err = f.svc.UpdateTicket(ctx, n, UpdateRequest{ReplyDate: &bad})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateTicket_Unknown(t *testing.T) {
	f := newFixture(t)
	note := "x"
	_, err := f.svc.UpdateTicket(context.Background(), 42, UpdateRequest{Note: &note})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, f.mr.Exists("queue:ticket:42"))
}

func TestDeleteTicket(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		_, err := f.svc.IssueTicket(ctx, validIssue("Acme"))
		require.NoError(t, err)
	}

	require.NoError(t, f.svc.DeleteTicket(ctx, 2))

	tickets, err := f.svc.ListTickets(ctx, 0)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, int64(1), tickets[0].TicketNumber)
	assert.Equal(t, int64(3), tickets[1].TicketNumber)

	ticket, err := f.svc.GetTicket(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, model.TicketFromFields(2, nil), ticket)

	assert.ErrorIs(t, f.svc.DeleteTicket(ctx, 0), ErrValidation)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		_, err := f.svc.IssueTicket(ctx, validIssue("Acme"))
		require.NoError(t, err)
	}
	_, err := f.svc.Advance(ctx)
	require.NoError(t, err)

	require.NoError(t, f.svc.Reset(ctx))
	assert.Equal(t, 1, f.listener.resets)

	state, err := f.svc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), state.CurrentNumber)
	assert.Equal(t, int64(0), state.LastTicket)
	assert.Equal(t, int64(1), state.NextNumber)

	tickets, err := f.svc.ListTickets(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, tickets)

	n, err := f.svc.IssueTicket(ctx, validIssue("fresh"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStoreFailureIsStoreError(t *testing.T) {
	f := newFixture(t)
	f.mr.SetError("LOADING dataset in memory")

	_, err := f.svc.State(context.Background())
	assert.ErrorIs(t, err, ErrStore)

	_, err = f.svc.IssueTicket(context.Background(), validIssue("x"))
	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "issue ticket", serr.Op)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Export(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.IssueTicket(ctx, validIssue("Acme"))
	require.NoError(t, err)

	file, err := f.svc.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "票券資料_202603101405.xlsx", file.Filename)

	wb, err := excelize.OpenReader(bytes.NewReader(file.Data))
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows("票券資料")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "Acme", rows[1][2])
}

// workbook builds an xlsx file from rows.
func workbook(t *testing.T, rows ...[]interface{}) *bytes.Buffer {
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.IssueTicket(ctx, validIssue("Existing"))
	require.NoError(t, err)

	file := workbook(t,
		[]interface{}{"號碼", "客戶名稱", "處理進度", "備註", "起始日期"},
		[]interface{}{1, "Existing Renamed", "completed", "done", "2026/2/1"},
		[]interface{}{"abc", "Broken", "pending", "", ""},
		[]interface{}{12, "Imported", "lost", "", ""},
		[]interface{}{0, "Zero", "", "", ""},
	)

	res, err := f.svc.Import(ctx, "import-secret", file)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, []string{"row 3: invalid ticket number", "row 5: invalid ticket number"}, res.Errors)

	existing, err := f.svc.GetTicket(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Existing Renamed", existing.CustomerName)
	assert.Equal(t, model.StatusCompleted, existing.Status)
	assert.Equal(t, "2026-02-01", existing.StartDate)
	assert.Equal(t, "Lin", existing.Applicant, "columns absent from the file are kept")

	imported, err := f.svc.GetTicket(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, "Imported", imported.CustomerName)
	assert.Equal(t, model.StatusPending, imported.Status)

	state, err := f.svc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12), state.LastTicket)

	// Importing the same number again updates instead of duplicating.
	res, err = f.svc.Import(ctx, "import-secret", workbook(t,
		[]interface{}{"號碼", "備註"},
		[]interface{}{12, "second pass"},
	))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Imported)
	assert.Equal(t, 1, res.Updated)

	tickets, err := f.svc.ListTickets(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, tickets, 2)
}

func TestImport_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Import(ctx, "wrong", workbook(t, []interface{}{"號碼"}, []interface{}{1}))
	assert.ErrorIs(t, err, ErrAuth)

	_, err = f.svc.Import(ctx, "import-secret", workbook(t, []interface{}{"客戶名稱"}, []interface{}{"Acme"}))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Import(ctx, "import-secret", workbook(t, []interface{}{"號碼"}))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Import(ctx, "import-secret", bytes.NewBufferString("not xlsx"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Import(ctx, "wrong", nil)
	assert.ErrorIs(t, err, ErrAuth)

	_, err = f.svc.Import(ctx, "import-secret", nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "file", verr.Field)
}

func TestImport_ErrorListIsBounded(t *testing.T) {
	f := newFixture(t)
	rows := [][]interface{}{{"號碼"}}
	for i := 0; i < maxImportErrors+5; i++ {
		rows = append(rows, []interface{}{"bad"})
	}

	res, err := f.svc.Import(context.Background(), "import-secret", workbook(t, rows...))
	require.NoError(t, err)
	assert.Len(t, res.Errors, maxImportErrors+1)
	assert.Equal(t, "... and 5 more", res.Errors[maxImportErrors])
}

func TestExampleFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	n, err := f.svc.IssueTicket(ctx, validIssue("Acme"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	res, err := f.svc.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.State.CurrentNumber)

	file, err := f.svc.Export(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, file.Data)

	require.NoError(t, f.svc.Reset(ctx))
	state, err := f.svc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), state.CurrentNumber)
	assert.Equal(t, int64(0), state.LastTicket)

	_, err = f.svc.Export(ctx)
	assert.True(t, errors.Is(err, ErrNotFound))
}
