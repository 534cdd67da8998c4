package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/the-ledger-must-balance/internal/csvsource"
	"github.com/Veraticus/the-ledger-must-balance/internal/model"
)

// Default UHC accounts.
const (
	UHCReimbursementAccount = "Income:Health-Insurance:Reimbursements"
	UHCDiscountAccount      = "Income:Health-Insurance:Discounts"
)

var uhcLayout = csvsource.NewLayout(
	csvsource.Column{Header: "Claim Number", Field: "claim_number"},
	csvsource.Column{Header: "Patient Name", Field: "patient"},
	csvsource.Column{Header: "Date Visited", Field: "visit_date"},
	csvsource.Column{Header: "Visited Provider", Field: "provider"},
	csvsource.Column{Header: "Claim Type", Field: "claim_type"},
	csvsource.Column{Header: "Claim Status", Field: "claim_status"},
	csvsource.Column{Header: "Payment Status", Field: "payment_status"},
	csvsource.Column{Header: "Date Processed", Field: "date"},
	csvsource.Column{Header: "Amount Billed", Field: "amount_billed"},
	csvsource.Column{Header: "Deductible", Field: "amount_deductible"},
	csvsource.Column{Header: "Your Plan", Field: "amount_plan_paid"},
	csvsource.Column{Header: "Plan Discount", Field: "amount_plan_discount"},
	csvsource.Column{Header: "Your Responsibility", Field: "amount_responsible"},
	csvsource.Column{Header: "Paid at Visit/Pharmacy", Field: "amount_paid_at_visit"},
	csvsource.Column{Header: "You Owe", Field: "amount_owed"},
	csvsource.Column{Header: "Flagged To Watch", Field: "flagged_to_watch"},
	csvsource.Column{Header: "Marked as Paid", Field: "marked_as_paid"},
)

// UHCConfig configures the UnitedHealthcare claims importer.
type UHCConfig struct {
	ReimbursementAccount string
	DiscountAccount      string
	// Currency defaults to USD.
	Currency string
	Options
}

// UHC imports UnitedHealthcare claims exports. Every claim is flagged for
// review since the patient side of the transaction is not in the file.
type UHC struct {
	reimbursement string
	discount      string
	currency      string
	base
}

// NewUHC creates a claims importer.
func NewUHC(cfg UHCConfig) (*UHC, error) {
	reimbursement := cfg.ReimbursementAccount
	if reimbursement == "" {
		reimbursement = UHCReimbursementAccount
	}
	discount := cfg.DiscountAccount
	if discount == "" {
		discount = UHCDiscountAccount
	}
	if err := model.ValidateAccount(reimbursement); err != nil {
		return nil, fmt.Errorf("reimbursement account: %w", err)
	}
	if err := model.ValidateAccount(discount); err != nil {
		return nil, fmt.Errorf("discount account: %w", err)
	}

	currency := cfg.Currency
	if currency == "" {
		currency = "USD"
	}

	b, err := newBase(cfg.Options, "uhc", "UHC", reimbursement,
		mustMatcher(MatchMime, `text/csv`),
		mustMatcher(MatchContent, uhcLayout.ContentPattern()),
	)
	if err != nil {
		return nil, err
	}

	return &UHC{
		base:          b,
		reimbursement: reimbursement,
		discount:      discount,
		currency:      currency,
	}, nil
}

// Extract returns one transaction per claim with a plan payment or
// discount, sorted by processing date.
func (u *UHC) Extract(ctx context.Context, f *File) ([]model.Transaction, error) {
	rows, err := csvsource.ReadFile(f.Path(), uhcLayout)
	if err != nil {
		return nil, err
	}

	var txns []model.Transaction
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		u.logRow(row.Number, row.Record)

		txn, ok, err := u.transaction(f.Path(), row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", f.Base(), row.Number, err)
		}
		if ok {
			txns = append(txns, txn)
		}
	}

	model.SortByDate(txns)
	return txns, nil
}

func (u *UHC) transaction(path string, row csvsource.Row) (model.Transaction, bool, error) {
	rec := row.Record

	paid, err := model.ParseNumber(rec.Value("amount_plan_paid"), "$")
	if err != nil {
		return model.Transaction{}, false, fmt.Errorf("plan paid: %w", err)
	}
	discount, err := model.ParseNumber(rec.Value("amount_plan_discount"), "$")
	if err != nil {
		return model.Transaction{}, false, fmt.Errorf("plan discount: %w", err)
	}

	var postings []model.Posting
	if !paid.IsZero() {
		postings = append(postings, model.NewPosting(u.reimbursement, model.NewAmount(paid, u.currency)))
	}
	if !discount.IsZero() {
		postings = append(postings, model.NewPosting(u.discount, model.NewAmount(discount, u.currency)))
	}
	if len(postings) == 0 {
		return model.Transaction{}, false, nil
	}

	visited, err := ParseDate(rec.Value("visit_date"))
	if err != nil {
		return model.Transaction{}, false, fmt.Errorf("visit date: %w", err)
	}
	processed, err := ParseDate(rec.Value("date"))
	if err != nil {
		return model.Transaction{}, false, fmt.Errorf("processed date: %w", err)
	}

	claim := rec.Value("claim_number")
	return model.Transaction{
		Meta: model.NewMeta(path, row.Number, map[string]any{
			"claim-number": claim,
			"claim-type":   rec.Value("claim_type"),
			"patient":      rec.Value("patient"),
			"provider":     rec.Value("provider"),
			"visit-date":   visited,
		}),
		Date:  processed,
		Flag:  model.FlagWarning,
		Payee: "United Healthcare",
		Narration: fmt.Sprintf("UHC claim for %s services to %s on %s",
			rec.Value("provider"), rec.Value("patient"), visited.Format("Jan 02, 2006")),
		Tags:     u.tags,
		Links:    []string{"uhc-claim-" + claim},
		Postings: postings,
	}, true, nil
}

// FileDate is the latest processing date in the export.
func (u *UHC) FileDate(f *File) (time.Time, error) {
	return latestRowDate(f, uhcLayout, "date")
}
