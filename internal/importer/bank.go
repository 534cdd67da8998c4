package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/the-ledger-must-balance/internal/categorize"
	"github.com/Veraticus/the-ledger-must-balance/internal/csvsource"
	"github.com/Veraticus/the-ledger-must-balance/internal/model"
)

// Fields every bank layout must provide.
var bankRequiredFields = []string{"amount", "description", "date"}

// BankLayout describes a bank's CSV export.
type BankLayout struct {
	// Extra returns layout-specific metadata for a row.
	Extra  func(model.Record) (map[string]any, error)
	Name   string
	Prefix string
	CSV    csvsource.Layout
}

// AllyLayout is the Ally Bank account export.
var AllyLayout = BankLayout{
	Name:   "ally",
	Prefix: "Ally",
	CSV: csvsource.NewLayout(
		csvsource.Column{Header: "Date", Field: "date"},
		csvsource.Column{Header: "Time", Field: "time"},
		csvsource.Column{Header: "Amount", Field: "amount"},
		csvsource.Column{Header: "Type", Field: "type"},
		csvsource.Column{Header: "Description", Field: "description"},
	),
	Extra: func(rec model.Record) (map[string]any, error) {
		return map[string]any{"time": rec.Value("time")}, nil
	},
}

// ChaseLayout is the Chase account export.
var ChaseLayout = BankLayout{
	Name:   "chase",
	Prefix: "Chase",
	CSV: csvsource.NewLayout(
		csvsource.Column{Header: "Transaction Date", Field: "transaction_date"},
		csvsource.Column{Header: "Post Date", Field: "date"},
		csvsource.Column{Header: "Description", Field: "description"},
		csvsource.Column{Header: "Category", Field: "category"},
		csvsource.Column{Header: "Type", Field: "type"},
		csvsource.Column{Header: "Amount", Field: "amount"},
	),
	Extra: func(rec model.Record) (map[string]any, error) {
		purchased, err := ParseDate(rec.Value("transaction_date"))
		if err != nil {
			return nil, fmt.Errorf("purchase date: %w", err)
		}
		return map[string]any{"purchase_date": purchased}, nil
	},
}

// BankConfig configures a BankAccount importer.
type BankConfig struct {
	Resolver *categorize.Resolver
	Account  string
	// Currency defaults to USD.
	Currency string
	Layout   BankLayout
	Options
	// InvertAmounts flips the sign read from the file.
	InvertAmounts bool
}

// BankAccount imports a bank account export, offsetting each row against
// the account chosen by the categorizers.
type BankAccount struct {
	resolver *categorize.Resolver
	// Hooks let derived importers change how a row is read.
	accountOf func(model.Record) (string, error)
	amountOf  func(model.Record) (model.Amount, error)
	priceOf   func(model.Record) (*model.Amount, error)
	layout    BankLayout
	account   string
	currency  string
	base
	invert bool
}

// NewBankAccount creates a bank account importer.
func NewBankAccount(cfg BankConfig) (*BankAccount, error) {
	if err := model.ValidateAccount(cfg.Account); err != nil {
		return nil, err
	}

	layout := cfg.Layout
	layout.CSV = layout.CSV.WithRequired(bankRequiredFields...)
	if err := layout.CSV.Validate(); err != nil {
		return nil, fmt.Errorf("%s layout: %w", layout.Name, err)
	}

	currency := cfg.Currency
	if currency == "" {
		currency = "USD"
	}

	b, err := newBase(cfg.Options, layout.Name, layout.Prefix, cfg.Account,
		mustMatcher(MatchMime, `text/csv`),
		mustMatcher(MatchContent, layout.CSV.ContentPattern()),
	)
	if err != nil {
		return nil, err
	}

	imp := &BankAccount{
		base:     b,
		layout:   layout,
		account:  cfg.Account,
		currency: currency,
		invert:   cfg.InvertAmounts,
		resolver: cfg.Resolver,
	}
	imp.accountOf = func(model.Record) (string, error) { return imp.account, nil }
	imp.amountOf = imp.amount
	return imp, nil
}

func (b *BankAccount) amount(rec model.Record) (model.Amount, error) {
	raw, err := rec.Require("amount")
	if err != nil {
		return model.Amount{}, err
	}
	number, err := model.ParseNumber(raw, "")
	if err != nil {
		return model.Amount{}, err
	}
	if b.invert {
		number = number.Neg()
	}
	return model.NewAmount(number, b.currency), nil
}

// Extract reads every row and returns the transactions sorted by date.
func (b *BankAccount) Extract(ctx context.Context, f *File) ([]model.Transaction, error) {
	rows, err := csvsource.ReadFile(f.Path(), b.layout.CSV)
	if err != nil {
		return nil, err
	}

	txns := make([]model.Transaction, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b.logRow(row.Number, row.Record)

		txn, err := b.transaction(f.Path(), row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", f.Base(), row.Number, err)
		}
		txns = append(txns, txn)
	}

	model.SortByDate(txns)
	return txns, nil
}

func (b *BankAccount) transaction(path string, row csvsource.Row) (model.Transaction, error) {
	rec := row.Record

	primary, err := b.accountOf(rec)
	if err != nil {
		return model.Transaction{}, err
	}
	amount, err := b.amountOf(rec)
	if err != nil {
		return model.Transaction{}, err
	}

	res, err := b.resolver.Resolve(rec, primary, amount)
	if err != nil {
		return model.Transaction{}, err
	}
	b.warnAmbiguous(res, row.Number)

	if b.priceOf != nil {
		price, err := b.priceOf(rec)
		if err != nil {
			return model.Transaction{}, err
		}
		res.Postings[0].Price = price
	}

	result, flag, err := settle(res, b.tags)
	if err != nil {
		return model.Transaction{}, err
	}

	rawDate, err := rec.Require("date")
	if err != nil {
		return model.Transaction{}, err
	}
	date, err := ParseDate(rawDate)
	if err != nil {
		return model.Transaction{}, err
	}

	var extra map[string]any
	if b.layout.Extra != nil {
		if extra, err = b.layout.Extra(rec); err != nil {
			return model.Transaction{}, err
		}
	}

	narration := result.Narration
	if narration == "" {
		narration = rec.Value("description")
	}

	return model.Transaction{
		Meta:      model.NewMeta(path, row.Number, extra),
		Date:      date,
		Flag:      flag,
		Payee:     result.Payee,
		Narration: narration,
		Tags:      result.Tags,
		Postings:  res.Postings,
	}, nil
}

// FileDate is the latest row date in the file.
func (b *BankAccount) FileDate(f *File) (time.Time, error) {
	return latestRowDate(f, b.layout.CSV, "date")
}

// settle merges the importer tags into the categorization result and picks
// the transaction flag: warning unless the record balanced against exactly
// one categorized account.
func settle(res categorize.Resolution, tags model.Tags) (categorize.Result, string, error) {
	result := categorize.Result{Tags: tags}
	if res.Result != nil {
		var err error
		if result, err = result.Merge(*res.Result); err != nil {
			return categorize.Result{}, "", err
		}
	}

	flag := model.FlagWarning
	if len(res.Postings) == 2 {
		flag = result.Flag
		if flag == "" {
			flag = model.FlagOkay
		}
	}
	return result, flag, nil
}
