package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/yakov55994/manage-sub003/internal/auditlog"
	"github.com/yakov55994/manage-sub003/internal/fixedwidth"
	"github.com/yakov55994/manage-sub003/internal/history"
	"github.com/yakov55994/manage-sub003/internal/invoices"
	"github.com/yakov55994/manage-sub003/internal/model"
	"github.com/yakov55994/manage-sub003/internal/payment"
	"github.com/yakov55994/manage-sub003/internal/report"
)

// ErrBatchPersisted is returned by Release when a batch already exists for
// the reservation; the run must be resumed, not released.
var ErrBatchPersisted = errors.New("batch already persisted for reservation")

// Invoices is the invoice store used by the pipeline.
type Invoices interface {
	payment.InvoiceSource
	MarkPaid(ctx context.Context, token string, ids []string) error
	Stuck(ctx context.Context, olderThan time.Duration) ([]invoices.Reservation, error)
}

// History is the batch store used by the pipeline.
type History interface {
	Create(ctx context.Context, b *model.Batch) (string, error)
	Get(ctx context.Context, batchID string) (*model.Batch, error)
	FindByReservation(ctx context.Context, token string) (history.Entry, error)
}

// Committer records the project state after a batch is persisted.
type Committer interface {
	Commit(message string) (string, error)
}

// Request asks for one batch.
type Request struct {
	InvoiceIDs    []string
	ExecutionDate time.Time
	Company       model.CompanyInfo
	Actor         string
}

// Result is a persisted, paid batch.
type Result struct {
	Batch       *model.Batch
	Truncations []fixedwidth.Truncation
	Commit      string
	Resumed     bool
}

// StuckReservation is a reservation that has not completed in time.
// BatchID is set when the batch was persisted and only marking paid is
// outstanding.
type StuckReservation struct {
	invoices.Reservation
	BatchID string
}

// Service runs the payment pipeline.
type Service struct {
	invoices  Invoices
	agg       *payment.Aggregator
	history   History
	layout    fixedwidth.Layout
	renderer  report.Renderer
	calendar  Calendar
	committer Committer
	auditRoot string
	log       zerolog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRenderer replaces the default XLSX renderer.
func WithRenderer(r report.Renderer) Option {
	return func(s *Service) { s.renderer = r }
}

// WithCalendar sets the business-day calendar.
func WithCalendar(c Calendar) Option {
	return func(s *Service) { s.calendar = c }
}

// WithCommitter commits the project after each persisted batch.
func WithCommitter(c Committer) Option {
	return func(s *Service) { s.committer = c }
}

// WithAuditLog appends audit entries under root/logs.
func WithAuditLog(root string) Option {
	return func(s *Service) { s.auditRoot = root }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the pipeline.
func NewService(inv Invoices, cat payment.Catalog, hist History, layout fixedwidth.Layout, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		invoices: inv,
		agg:      payment.NewAggregator(inv, cat, log),
		history:  hist,
		layout:   layout,
		renderer: report.XLSXRenderer{},
		log:      log,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.calendar == nil {
		s.calendar, _ = NewWeekendCalendar(nil, nil)
	}
	return s
}

// Generate validates, reserves, encodes and persists a batch for the
// requested invoices and marks them paid.
//
// Nothing is reserved when the request or the invoices fail validation.
// Once reserved, a failure that retrying cannot fix releases the
// reservation; any other failure returns a model.PersistenceError carrying
// the token, and Resume completes the run.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if verrs := s.validateRequest(req); len(verrs) > 0 {
		return nil, verrs
	}

	res, err := s.agg.Aggregate(ctx, req.InvoiceIDs)
	if err != nil {
		return nil, err
	}
	s.audit(auditlog.Entry{
		Actor:       req.Actor,
		Action:      auditlog.ActionReserve,
		Reservation: res.Reservation,
		Details: fmt.Sprintf("%d invoices, total %s, execution date %s",
			len(res.InvoiceIDs), model.FormatAmount(res.TotalAmount), Day(req.ExecutionDate).Format(time.DateOnly)),
	})

	return s.complete(ctx, res, req, false)
}

// Resume finishes a run interrupted after its reservation. If the batch was
// already persisted only the mark-paid step is repeated; otherwise the
// reserved invoices are regrouped and the batch is rebuilt from the same
// request, which yields the same file bytes.
func (s *Service) Resume(ctx context.Context, token string, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry, err := s.history.FindByReservation(ctx, token)
	switch {
	case err == nil:
		return s.finishPersisted(ctx, entry.ID, token, req.Actor)
	case !errors.Is(err, history.ErrNotFound):
		return nil, &model.PersistenceError{Op: "lookup", Reservation: token, Err: err}
	}

	if verrs := s.validateRequest(req); len(verrs) > 0 {
		return nil, verrs
	}
	res, err := s.agg.Resume(ctx, token)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("reservation", token).Msg("resuming payment run")
	return s.complete(ctx, res, req, true)
}

// Release returns the invoices of an unfinished run to payable. It is
// refused once a batch has been persisted for the reservation.
func (s *Service) Release(ctx context.Context, token, actor string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if entry, err := s.history.FindByReservation(ctx, token); err == nil {
		return nil, fmt.Errorf("%w: %s (batch %s)", ErrBatchPersisted, token, entry.ID)
	} else if !errors.Is(err, history.ErrNotFound) {
		return nil, err
	}

	ids, err := s.invoices.Release(ctx, token)
	if err != nil {
		return nil, err
	}
	s.log.Warn().Str("reservation", token).Int("invoices", len(ids)).Msg("reservation released")
	s.audit(auditlog.Entry{
		Actor:       actor,
		Action:      auditlog.ActionRelease,
		Reservation: token,
		Details:     fmt.Sprintf("%d invoices returned to payable", len(ids)),
	})
	return ids, nil
}

// Stuck lists reservations older than olderThan.
func (s *Service) Stuck(ctx context.Context, olderThan time.Duration) ([]StuckReservation, error) {
	rs, err := s.invoices.Stuck(ctx, olderThan)
	if err != nil {
		return nil, err
	}
	out := make([]StuckReservation, 0, len(rs))
	for _, r := range rs {
		sr := StuckReservation{Reservation: r}
		if e, err := s.history.FindByReservation(ctx, r.Token); err == nil {
			sr.BatchID = e.ID
		} else if !errors.Is(err, history.ErrNotFound) {
			return nil, err
		}
		out = append(out, sr)
	}
	return out, nil
}

func (s *Service) validateRequest(req Request) model.ValidationErrors {
	verrs := ValidateCompany(req.Company)
	switch {
	case req.ExecutionDate.IsZero():
		verrs = append(verrs, model.ValidationError{
			Kind: model.KindInvalidDate, Field: "execution_date", Description: "execution date is required",
		})
	case Day(req.ExecutionDate).Before(Day(s.now())):
		verrs = append(verrs, model.ValidationError{
			Kind:        model.KindInvalidDate,
			Field:       "execution_date",
			Description: fmt.Sprintf("execution date %s is in the past", Day(req.ExecutionDate).Format(time.DateOnly)),
		})
	case !s.calendar.IsBusinessDay(req.ExecutionDate):
		verrs = append(verrs, model.ValidationError{
			Kind:        model.KindInvalidDate,
			Field:       "execution_date",
			Description: fmt.Sprintf("execution date %s is not a business day, next is %s",
				Day(req.ExecutionDate).Format(time.DateOnly),
				NextBusinessDay(s.calendar, req.ExecutionDate).Format(time.DateOnly)),
		})
	}
	return verrs
}

// complete runs build, encode, render, persist and mark-paid for invoices
// already reserved under res.Reservation.
func (s *Service) complete(ctx context.Context, res *payment.Result, req Request, resumed bool) (*Result, error) {
	token := res.Reservation
	log := s.log.With().Str("reservation", token).Logger()

	if err := ctx.Err(); err != nil {
		return nil, s.held("build", token, "", err)
	}

	b, err := Build(BuildParams{
		Reservation:   token,
		Lines:         res.Lines,
		Company:       req.Company,
		ExecutionDate: req.ExecutionDate,
		Actor:         req.Actor,
		Now:           s.now(),
	})
	if err != nil {
		return nil, s.abandon(ctx, token, req.Actor, "build", err)
	}

	enc, err := fixedwidth.Encode(s.layout, b)
	if err != nil {
		return nil, s.abandon(ctx, token, req.Actor, "encode", err)
	}
	b.File = enc.Data
	for _, t := range enc.Truncations {
		log.Warn().
			Str("record", t.Record).
			Int("line", t.Line).
			Str("field", t.Field).
			Str("written", t.Written).
			Msg("text truncated to fit field")
	}

	if err := ctx.Err(); err != nil {
		return nil, s.held("render", token, "", err)
	}
	b.ReportName, b.Report, err = s.renderer.Render(ctx, b)
	if err != nil {
		return nil, s.held("render", token, "", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, s.held("persist", token, "", err)
	}
	batchID, err := s.history.Create(ctx, b)
	if errors.Is(err, history.ErrDuplicateReservation) {
		// A concurrent resume won the race; finish from the stored copy.
		entry, ferr := s.history.FindByReservation(ctx, token)
		if ferr != nil {
			return nil, s.held("persist", token, "", ferr)
		}
		return s.finishPersisted(ctx, entry.ID, token, req.Actor)
	}
	if err != nil {
		return nil, s.held("persist", token, "", err)
	}
	log.Info().
		Str("batch", batchID).
		Str("file", b.FileName).
		Int("payments", b.TotalPayments).
		Int64("total", b.TotalAmount).
		Msg("batch persisted")
	s.audit(auditlog.Entry{
		Actor:       req.Actor,
		Action:      auditlog.ActionGenerate,
		Reservation: token,
		BatchID:     batchID,
		Details: fmt.Sprintf("%d payments, total %s, file %s, digest %s",
			b.TotalPayments, model.FormatAmount(b.TotalAmount), b.FileName, b.Digest),
	})

	if err := s.invoices.MarkPaid(ctx, token, b.InvoiceIDs); err != nil {
		return nil, s.held("mark_paid", token, batchID, err)
	}
	s.audit(auditlog.Entry{
		Actor:       req.Actor,
		Action:      auditlog.ActionMarkPaid,
		Reservation: token,
		BatchID:     batchID,
		Details:     fmt.Sprintf("%d invoices", len(b.InvoiceIDs)),
	})

	out := &Result{Batch: b, Truncations: enc.Truncations, Resumed: resumed}
	out.Commit = s.commit(fmt.Sprintf("Batch %s: %d payments, total %s", b.FileName, b.TotalPayments, model.FormatAmount(b.TotalAmount)))
	return out, nil
}

// finishPersisted marks paid the invoices of a stored batch, if that has
// not happened yet.
func (s *Service) finishPersisted(ctx context.Context, batchID, token, actor string) (*Result, error) {
	b, err := s.history.Get(ctx, batchID)
	if err != nil {
		return nil, s.held("load", token, batchID, err)
	}

	_, err = s.invoices.Reserved(ctx, token)
	switch {
	case errors.Is(err, invoices.ErrUnknownReservation):
		// Already marked paid.
		return &Result{Batch: b, Resumed: true}, nil
	case err != nil:
		return nil, s.held("mark_paid", token, batchID, err)
	}

	if err := s.invoices.MarkPaid(ctx, token, b.InvoiceIDs); err != nil {
		return nil, s.held("mark_paid", token, batchID, err)
	}
	s.log.Info().Str("reservation", token).Str("batch", batchID).Msg("resumed run marked paid")
	s.audit(auditlog.Entry{
		Actor:       actor,
		Action:      auditlog.ActionResume,
		Reservation: token,
		BatchID:     batchID,
		Details:     fmt.Sprintf("%d invoices marked paid", len(b.InvoiceIDs)),
	})

	out := &Result{Batch: b, Resumed: true}
	out.Commit = s.commit(fmt.Sprintf("Resume batch %s", b.FileName))
	return out, nil
}

// abandon releases a reservation after a failure that a retry would repeat.
func (s *Service) abandon(ctx context.Context, token, actor, op string, cause error) error {
	log := s.log.With().Str("reservation", token).Str("op", op).Logger()
	if _, err := s.invoices.Release(context.WithoutCancel(ctx), token); err != nil {
		log.Error().Err(err).Msg("releasing reservation after failure")
		return &model.PersistenceError{Op: op, Reservation: token, Err: errors.Join(cause, err)}
	}
	log.Warn().Err(cause).Msg("run abandoned, reservation released")
	s.audit(auditlog.Entry{
		Actor:       actor,
		Action:      auditlog.ActionFailed,
		Reservation: token,
		Details:     fmt.Sprintf("%s failed, reservation released: %v", op, cause),
	})
	return cause
}

// held reports a failure that leaves the invoices reserved for Resume.
func (s *Service) held(op, token, batchID string, err error) error {
	s.log.Error().Err(err).Str("reservation", token).Str("batch", batchID).Str("op", op).Msg("payment run interrupted")
	return &model.PersistenceError{Op: op, Reservation: token, BatchID: batchID, Err: err}
}

func (s *Service) audit(e auditlog.Entry) {
	if s.auditRoot == "" {
		return
	}
	e.Timestamp = s.now()
	if err := auditlog.Append(s.auditRoot, []auditlog.Entry{e}); err != nil {
		s.log.Error().Err(err).Str("action", e.Action).Msg("writing audit log")
	}
}

func (s *Service) commit(message string) string {
	if s.committer == nil {
		return ""
	}
	hash, err := s.committer.Commit(message)
	if err != nil {
		s.log.Warn().Err(err).Msg("git commit failed")
		return ""
	}
	return hash
}
