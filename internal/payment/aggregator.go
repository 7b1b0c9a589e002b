// Package payment turns a set of approved invoices into numbered payment
// lines, one per payee account.
package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yakov55994/manage-sub003/internal/catalog"
	"github.com/yakov55994/manage-sub003/internal/id"
	"github.com/yakov55994/manage-sub003/internal/model"
)

// InvoiceSource is the invoice store as seen by the aggregator.
type InvoiceSource interface {
	Get(ctx context.Context, ids []string) (map[string]model.Invoice, error)
	Reserve(ctx context.Context, ids []string) (string, []model.Invoice, error)
	Reserved(ctx context.Context, token string) ([]model.Invoice, error)
	Release(ctx context.Context, token string) ([]string, error)
}

// Catalog resolves bank and branch codes.
type Catalog interface {
	LookupBank(code string) (model.Bank, error)
	LookupBranch(bankCode, branchCode string) (model.Branch, error)
}

// Result is the output of one aggregation.
type Result struct {
	Reservation string
	Lines       []model.PaymentLine
	InvoiceIDs  []string // canonical order
	TotalAmount int64
}

// Aggregator validates, reserves and groups invoices.
type Aggregator struct {
	invoices InvoiceSource
	catalog  Catalog
	log      zerolog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(invoices InvoiceSource, cat Catalog, log zerolog.Logger) *Aggregator {
	return &Aggregator{invoices: invoices, catalog: cat, log: log}
}

// Aggregate validates the requested invoices, reserves all of them under a
// new token and groups them into payment lines. Validation runs before the
// reservation, so a failing set never changes any invoice state.
func (a *Aggregator) Aggregate(ctx context.Context, ids []string) (*Result, error) {
	ids = unique(ids)
	if len(ids) == 0 {
		return nil, model.ValidationErrors{{Kind: model.KindEmptyBatch, Description: "no invoices selected"}}
	}

	found, err := a.invoices.Get(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading invoices: %w", err)
	}
	var verrs model.ValidationErrors
	invs := make([]model.Invoice, 0, len(ids))
	for _, invID := range ids {
		inv, ok := found[invID]
		if !ok {
			verrs = append(verrs, model.ValidationError{
				Kind:        model.KindInvoiceNotFound,
				InvoiceID:   invID,
				Description: "invoice does not exist",
			})
			continue
		}
		invs = append(invs, inv)
	}
	if len(invs) > 0 {
		if _, err := Group(invs, a.catalog); err != nil {
			var more model.ValidationErrors
			if !errors.As(err, &more) {
				return nil, err
			}
			verrs = append(verrs, more...)
		}
	}
	if len(verrs) > 0 {
		a.log.Warn().Int("invoices", len(ids)).Int("problems", len(verrs)).Msg("invoice selection rejected")
		return nil, verrs
	}

	token, reserved, err := a.invoices.Reserve(ctx, ids)
	if err != nil {
		return nil, err
	}

	// Group again from the reserved snapshot: it is authoritative, and the
	// invoices may have been edited between Get and Reserve.
	res, err := a.result(token, reserved)
	if err != nil {
		if _, rerr := a.invoices.Release(context.WithoutCancel(ctx), token); rerr != nil {
			a.log.Error().Err(rerr).Str("reservation", token).Msg("releasing reservation")
		}
		return nil, err
	}
	a.log.Info().
		Str("reservation", token).
		Int("invoices", len(res.InvoiceIDs)).
		Int("lines", len(res.Lines)).
		Int64("total", res.TotalAmount).
		Msg("invoices reserved")
	return res, nil
}

// Resume rebuilds the result for invoices already reserved under token.
// The grouping is identical to the one produced when they were reserved.
func (a *Aggregator) Resume(ctx context.Context, token string) (*Result, error) {
	reserved, err := a.invoices.Reserved(ctx, token)
	if err != nil {
		return nil, err
	}
	return a.result(token, reserved)
}

func (a *Aggregator) result(token string, invs []model.Invoice) (*Result, error) {
	lines, err := Group(invs, a.catalog)
	if err != nil {
		return nil, err
	}
	res := &Result{Reservation: token, Lines: lines}
	for _, l := range lines {
		res.TotalAmount += l.Amount
		res.InvoiceIDs = append(res.InvoiceIDs, l.InvoiceIDs...)
	}
	sortIDs(res.InvoiceIDs)
	return res, nil
}

type groupKey struct {
	payee, bank, branch, account string
}

// Group validates invs and rolls them into payment lines keyed by payee and
// destination account. Invoices are taken in canonical id order and lines
// are numbered 1..N in the order their first invoice appears, so the input
// order never changes the result. Every problem is reported in one
// model.ValidationErrors.
func Group(invs []model.Invoice, cat Catalog) ([]model.PaymentLine, error) {
	if len(invs) == 0 {
		return nil, model.ValidationErrors{{Kind: model.KindEmptyBatch, Description: "no invoices selected"}}
	}

	sorted := make([]model.Invoice, len(invs))
	copy(sorted, invs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return id.Compare(sorted[i].ID, sorted[j].ID) < 0
	})

	var verrs model.ValidationErrors
	var lines []model.PaymentLine
	index := make(map[groupKey]int)
	projects := make(map[groupKey]map[string]bool)

	for _, inv := range sorted {
		bankName, problems := validate(inv, cat)
		if len(problems) > 0 {
			verrs = append(verrs, problems...)
			continue
		}

		key := groupKey{
			payee:   strings.TrimSpace(inv.Payee),
			bank:    id.NormalizeCode(inv.BankCode),
			branch:  id.NormalizeCode(inv.BranchCode),
			account: id.NormalizeCode(inv.AccountNumber),
		}
		i, ok := index[key]
		if !ok {
			i = len(lines)
			index[key] = i
			projects[key] = make(map[string]bool)
			lines = append(lines, model.PaymentLine{
				Seq:           i + 1,
				Payee:         key.payee,
				BankCode:      key.bank,
				BranchCode:    key.branch,
				AccountNumber: key.account,
				BankName:      bankName,
			})
		}
		line := &lines[i]
		if line.Amount > math.MaxInt64-inv.Amount {
			verrs = append(verrs, model.ValidationError{
				Kind:        model.KindInvalidAmount,
				InvoiceID:   inv.ID,
				Line:        line.Seq,
				Description: "payment line total overflows",
			})
			continue
		}
		line.Amount += inv.Amount
		line.InvoiceIDs = append(line.InvoiceIDs, inv.ID)
		if ref := strings.TrimSpace(inv.ProjectRef); ref != "" && !projects[key][ref] {
			projects[key][ref] = true
			line.ProjectRefs = append(line.ProjectRefs, ref)
		}
	}

	var total int64
	for _, l := range lines {
		if total > math.MaxInt64-l.Amount {
			verrs = append(verrs, model.ValidationError{
				Kind:        model.KindInvalidAmount,
				Field:       "total_amount",
				Description: "batch total overflows",
			})
			break
		}
		total += l.Amount
	}

	if len(verrs) > 0 {
		return nil, verrs
	}
	return lines, nil
}

// validate checks one invoice and returns the bank name on success.
func validate(inv model.Invoice, cat Catalog) (string, model.ValidationErrors) {
	var errs model.ValidationErrors
	fail := func(kind model.ErrorKind, field, desc string) {
		errs = append(errs, model.ValidationError{Kind: kind, InvoiceID: inv.ID, Field: field, Description: desc})
	}

	if inv.Amount <= 0 {
		fail(model.KindInvalidAmount, "amount", fmt.Sprintf("amount %s must be positive", model.FormatAmount(inv.Amount)))
	}
	if strings.TrimSpace(inv.Payee) == "" {
		fail(model.KindMissingPayee, "payee", "payee is empty")
	}
	if acct := strings.TrimSpace(inv.AccountNumber); !id.IsDigits(acct) {
		fail(model.KindInvalidAccount, "account_number", fmt.Sprintf("account %q is not numeric", acct))
	}

	var bankName string
	bank, err := cat.LookupBank(inv.BankCode)
	switch {
	case errors.Is(err, catalog.ErrBankNotFound):
		fail(model.KindBankNotFound, "bank_code", fmt.Sprintf("bank %q is not in the catalog", inv.BankCode))
	case err != nil:
		fail(model.KindBankNotFound, "bank_code", err.Error())
	default:
		bankName = bank.Name
		if _, err := cat.LookupBranch(inv.BankCode, inv.BranchCode); err != nil {
			fail(model.KindBranchNotFound, "branch_code",
				fmt.Sprintf("branch %q not found for bank %s", inv.BranchCode, bank.Code))
		}
	}
	return bankName, errs
}

func unique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, s := range ids {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func sortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return id.Compare(ids[i], ids[j]) < 0 })
}
