package importer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Veraticus/the-ledger-must-balance/internal/categorize"
	"github.com/Veraticus/the-ledger-must-balance/internal/model"
	"github.com/Veraticus/the-ledger-must-balance/internal/ofx"
)

// AccountMapping assigns a ledger account to an OFX account ID.
type AccountMapping struct {
	ID      string `mapstructure:"id"`
	Account string `mapstructure:"account"`
}

// OFXConfig configures the OFX importer.
type OFXConfig struct {
	Resolver *categorize.Resolver
	// Account is used for statements without a mapping.
	Account  string
	Accounts []AccountMapping
	Options
}

// OFX imports OFX/QFX downloads. Every statement entry is offset against the
// account chosen by the categorizers, which see the fields description
// (cleaned merchant), name, memo, type, fitid and check_number.
type OFX struct {
	resolver *categorize.Resolver
	parser   *ofx.Parser
	accounts map[string]string
	account  string
	base
}

// NewOFX creates an OFX importer.
func NewOFX(cfg OFXConfig) (*OFX, error) {
	if err := model.ValidateAccount(cfg.Account); err != nil {
		return nil, err
	}

	accounts := make(map[string]string, len(cfg.Accounts))
	for _, m := range cfg.Accounts {
		if err := model.ValidateAccount(m.Account); err != nil {
			return nil, fmt.Errorf("OFX account %s: %w", m.ID, err)
		}
		accounts[m.ID] = m.Account
	}

	opts := cfg.Options
	var extra []Matcher
	if len(opts.Matchers) == 0 {
		extra = []Matcher{
			mustMatcher(MatchFilename, `(?i)\.(ofx|qfx)$`),
			mustMatcher(MatchContent, `(?i)<OFX>`),
		}
	}

	b, err := newBase(opts, "ofx", "", cfg.Account, extra...)
	if err != nil {
		return nil, err
	}

	return &OFX{
		base:     b,
		parser:   ofx.NewParser(),
		resolver: cfg.Resolver,
		accounts: accounts,
		account:  cfg.Account,
	}, nil
}

func (o *OFX) statements(ctx context.Context, f *File) ([]ofx.Statement, error) {
	r, err := os.Open(f.Path())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Path(), err)
	}
	defer r.Close()

	statements, err := o.parser.ParseFile(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Base(), err)
	}
	return statements, nil
}

func (o *OFX) accountFor(s ofx.Statement) string {
	if account, ok := o.accounts[s.AccountID]; ok {
		return account
	}
	return o.account
}

// Extract returns one transaction per statement entry, sorted by date.
// Line numbers count entries across the file.
func (o *OFX) Extract(ctx context.Context, f *File) ([]model.Transaction, error) {
	statements, err := o.statements(ctx, f)
	if err != nil {
		return nil, err
	}

	var txns []model.Transaction
	number := 0
	for _, s := range statements {
		account := o.accountFor(s)
		for _, e := range s.Entries {
			number++
			rec := entryRecord(e)
			o.logRow(number, rec)

			res, err := o.resolver.Resolve(rec, account, model.NewAmount(e.Amount, s.Currency))
			if err != nil {
				return nil, fmt.Errorf("%s entry %s: %w", f.Base(), e.ID, err)
			}
			o.warnAmbiguous(res, number)

			result, flag, err := settle(res, o.tags)
			if err != nil {
				return nil, fmt.Errorf("%s entry %s: %w", f.Base(), e.ID, err)
			}

			narration := result.Narration
			if narration == "" {
				narration = e.Merchant
			}

			txns = append(txns, model.Transaction{
				Meta:      model.NewMeta(f.Path(), number, map[string]any{"fitid": e.ID}),
				Date:      dateOf(e.Date),
				Flag:      flag,
				Payee:     result.Payee,
				Narration: narration,
				Tags:      result.Tags,
				Postings:  res.Postings,
			})
		}
	}

	model.SortByDate(txns)
	return txns, nil
}

func entryRecord(e ofx.Entry) model.Record {
	return model.NewRecord(map[string]string{
		categorize.DefaultField: e.Merchant,
		"name":                  e.Name,
		"memo":                  e.Memo,
		"type":                  e.Type,
		"fitid":                 e.ID,
		"check_number":          e.CheckNumber,
	})
}

// dateOf keeps the calendar date the bank reported.
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FileAccount files the download under the first statement's account.
func (o *OFX) FileAccount(f *File) string {
	if o.base.filing != o.account {
		return o.base.filing
	}
	statements, err := o.statements(context.Background(), f)
	if err != nil || len(statements) == 0 {
		return o.account
	}
	return o.accountFor(statements[0])
}

// FileDate is the latest posting date in the file.
func (o *OFX) FileDate(f *File) (time.Time, error) {
	statements, err := o.statements(context.Background(), f)
	if err != nil {
		return time.Time{}, err
	}

	var dates []time.Time
	for _, s := range statements {
		for _, e := range s.Entries {
			dates = append(dates, dateOf(e.Date))
		}
	}
	return latest(dates), nil
}
