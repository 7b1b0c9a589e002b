package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yakov55994/manage-sub003/internal/model"
)

func testBatch(reservation string, date time.Time) *model.Batch {
	return &model.Batch{
		Reservation:   reservation,
		ExecutionDate: date,
		GeneratedAt:   date.Add(-time.Hour),
		GeneratedBy:   "tester",
		Company:       model.CompanyInfo{InstituteID: "12345678", SenderID: "001", Name: "Acme"},
		Payments: []model.PaymentLine{
			{Seq: 1, Payee: "P1", BankCode: "10", BranchCode: "800", AccountNumber: "123", Amount: 15000, InvoiceIDs: []string{"A", "B"}},
			{Seq: 2, Payee: "P2", BankCode: "12", BranchCode: "500", AccountNumber: "456", Amount: 7500, InvoiceIDs: []string{"C"}},
		},
		InvoiceIDs:    []string{"A", "B", "C"},
		TotalAmount:   22500,
		TotalPayments: 2,
		FileName:      "12345678-001-" + date.Format("20060102") + ".txt",
		File:          []byte("K...\r\n1...\r\n5...\r\n"),
		ReportName:    "report.xlsx",
		Report:        []byte("xlsx"),
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), DefaultRoot))
	clock := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return s
}

func TestCreateGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := testBatch("tok-1", date(2025, 1, 15))
	id, err := s.Create(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, id, b.ID)
	assert.Equal(t, Digest(b.File), b.Digest)
	assert.False(t, b.CreatedAt.IsZero())

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, b.File, got.File)
	assert.Equal(t, b.Report, got.Report)
	assert.Equal(t, b.Payments, got.Payments)
	assert.Equal(t, "tok-1", got.Reservation)
	assert.True(t, b.ExecutionDate.Equal(got.ExecutionDate))

	assert.FileExists(t, filepath.Join(s.Root(), id, "batch.json"))
	assert.FileExists(t, filepath.Join(s.Root(), id, b.FileName))
	assert.FileExists(t, filepath.Join(s.Root(), indexFile))
}

func TestCreate_DuplicateReservation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, testBatch("tok-1", date(2025, 1, 15)))
	require.NoError(t, err)

	_, err = s.Create(ctx, testBatch("tok-1", date(2025, 1, 15)))
	assert.ErrorIs(t, err, ErrDuplicateReservation)

	entries, err := s.ListByDate(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCreate_ConcurrentSameReservation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 6)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Create(ctx, testBatch("tok-1", date(2025, 1, 15)))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrDuplicateReservation)
		}
	}
	assert.Equal(t, 1, ok)
}

func TestCreate_RejectsInvalidBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := testBatch("tok-1", date(2025, 1, 15))
	b.TotalAmount = 1
	_, err := s.Create(ctx, b)
	assert.ErrorIs(t, err, model.ErrValidation)

	b = testBatch("tok-2", date(2025, 1, 15))
	b.File = nil
	_, err = s.Create(ctx, b)
	assert.Error(t, err)

	b = testBatch("tok-3", date(2025, 1, 15))
	b.FileName = "../escape.txt"
	_, err = s.Create(ctx, b)
	assert.Error(t, err)

	_, err = os.Stat(s.Root())
	assert.True(t, os.IsNotExist(err), "nothing written")
}

func TestCreate_WithoutReport(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := testBatch("tok-1", date(2025, 1, 15))
	b.Report = nil
	id, err := s.Create(ctx, b)
	require.NoError(t, err)
	assert.Empty(t, b.ReportName)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got.Report)
}

func TestGet_DetectsTampering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := testBatch("tok-1", date(2025, 1, 15))
	id, err := s.Create(ctx, b)
	require.NoError(t, err)

	path := filepath.Join(s.Root(), id, b.FileName)
	require.NoError(t, os.WriteFile(path, []byte("altered"), 0o644))

	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "3f1c1f44-9c39-4a53-9d0e-1f2f0c7e2d11")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Get(ctx, "../../etc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListByDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	create := func(tok string, d time.Time) string {
		id, err := s.Create(ctx, testBatch(tok, d))
		require.NoError(t, err)
		return id
	}
	jan15a := create("t1", date(2025, 1, 15))
	feb01 := create("t2", date(2025, 2, 1))
	jan10 := create("t3", date(2025, 1, 10))
	jan15b := create("t4", date(2025, 1, 15))

	all, err := s.ListByDate(ctx, ListOptions{})
	require.NoError(t, err)
	ids := make([]string, len(all))
	for i, e := range all {
		ids[i] = e.ID
	}
	assert.Equal(t, []string{feb01, jan15b, jan15a, jan10}, ids)

	jan, err := s.ListByDate(ctx, ListOptions{From: date(2025, 1, 11), To: date(2025, 1, 31)})
	require.NoError(t, err)
	require.Len(t, jan, 2)
	assert.Equal(t, jan15b, jan[0].ID)
	assert.Equal(t, int64(22500), jan[0].TotalAmount)
	assert.Equal(t, 2, jan[0].TotalPayments)
}

func TestFindByReservation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, testBatch("tok-9", date(2025, 1, 15)))
	require.NoError(t, err)

	e, err := s.FindByReservation(ctx, "tok-9")
	require.NoError(t, err)
	assert.Equal(t, id, e.ID)

	_, err = s.FindByReservation(ctx, "tok-0")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestReopen(t *testing.T) {
	root := filepath.Join(t.TempDir(), DefaultRoot)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := NewStore(root).Create(ctx, testBatch(fmt.Sprintf("tok-%d", i), date(2025, 1, 15+i)))
		require.NoError(t, err)
	}
	entries, err := NewStore(root).ListByDate(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestCreate_Cancelled(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Create(ctx, testBatch("tok-1", date(2025, 1, 15)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCreate_HeaderOnlyIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, os.MkdirAll(s.Root(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), indexFile), []byte(Header+"\n"), 0o644))

	_, err := s.Create(ctx, testBatch("tok-1", date(2025, 1, 15)))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(s.Root(), indexFile))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), Header), "header written once")

	entries, err := s.ListByDate(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
