package importer

import (
	"fmt"
	"strings"

	"github.com/Veraticus/the-ledger-must-balance/internal/categorize"
	"github.com/Veraticus/the-ledger-must-balance/internal/common"
	"github.com/Veraticus/the-ledger-must-balance/internal/csvsource"
)

// Importer types accepted in configuration.
const (
	TypeAlly      = "ally"
	TypeChase     = "chase"
	TypeCSV       = "csv"
	TypeAmazon    = "amazon"
	TypeUHC       = "uhc"
	TypeMyLifeNow = "mylifenow"
	TypeOFX       = "ofx"
)

// MatcherSpec is an identification rule as written in configuration.
type MatcherSpec struct {
	Kind    string `mapstructure:"kind"`
	Pattern string `mapstructure:"pattern"`
}

// ColumnSpec maps a CSV header to a field for the generic csv importer.
type ColumnSpec struct {
	Header string `mapstructure:"header"`
	Field  string `mapstructure:"field"`
}

// Spec is the configuration of one importer.
type Spec struct {
	Type     string `mapstructure:"type"`
	Name     string `mapstructure:"name"`
	Prefix   string `mapstructure:"prefix"`
	Filing   string `mapstructure:"filing"`
	Account  string `mapstructure:"account"`
	Currency string `mapstructure:"currency"`

	Tags         []string          `mapstructure:"tags"`
	Matchers     []MatcherSpec     `mapstructure:"matchers"`
	Categorizers []categorize.Rule `mapstructure:"categorizers"`

	// csv
	Columns []ColumnSpec `mapstructure:"columns"`

	// mylifenow
	Investments []Investment      `mapstructure:"investments"`
	Fees        []categorize.Rule `mapstructure:"fees"`

	// amazon
	FundingSources  []FundingSource `mapstructure:"funding_sources"`
	ExpenseAccount  string          `mapstructure:"expense_account"`
	CurrencySymbols string          `mapstructure:"currency_symbols"`

	// uhc
	ReimbursementAccount string `mapstructure:"reimbursement_account"`
	DiscountAccount      string `mapstructure:"discount_account"`

	// ofx
	Accounts []AccountMapping `mapstructure:"accounts"`

	InvertAmounts bool `mapstructure:"invert_amounts"`
	Debug         bool `mapstructure:"debug"`
}

func (s Spec) options() (Options, error) {
	matchers := make([]Matcher, 0, len(s.Matchers))
	for _, ms := range s.Matchers {
		m, err := NewMatcher(MatcherKind(strings.ToLower(ms.Kind)), ms.Pattern)
		if err != nil {
			return Options{}, err
		}
		matchers = append(matchers, m)
	}

	return Options{
		Name:     s.Name,
		Prefix:   s.Prefix,
		Filing:   s.Filing,
		Tags:     s.Tags,
		Matchers: matchers,
		Debug:    s.Debug,
	}, nil
}

func (s Spec) layout() (BankLayout, error) {
	switch strings.ToLower(s.Type) {
	case TypeAlly:
		return AllyLayout, nil
	case TypeChase:
		return ChaseLayout, nil
	case TypeMyLifeNow:
		return MyLifeNowLayout, nil
	}

	if len(s.Columns) == 0 {
		return BankLayout{}, fmt.Errorf("%w: csv importer needs columns", common.ErrInvalidConfig)
	}
	columns := make([]csvsource.Column, len(s.Columns))
	for i, c := range s.Columns {
		columns[i] = csvsource.Column{Header: c.Header, Field: c.Field}
	}
	return BankLayout{Name: TypeCSV, CSV: csvsource.NewLayout(columns...)}, nil
}

// Build creates the importer described by the configuration. Every error is a
// configuration error.
func (s Spec) Build() (Importer, error) {
	opts, err := s.options()
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(s.Type) {
	case TypeAlly, TypeChase, TypeCSV, TypeMyLifeNow:
		return s.buildBank(opts)

	case TypeAmazon:
		return NewAmazon(AmazonConfig{
			Options:         opts,
			FundingSources:  s.FundingSources,
			ExpenseAccount:  s.ExpenseAccount,
			CurrencySymbols: s.CurrencySymbols,
		})

	case TypeUHC:
		return NewUHC(UHCConfig{
			Options:              opts,
			ReimbursementAccount: s.ReimbursementAccount,
			DiscountAccount:      s.DiscountAccount,
			Currency:             s.Currency,
		})

	case TypeOFX:
		resolver, err := categorize.NewResolverFromRules(s.Categorizers)
		if err != nil {
			return nil, err
		}
		return NewOFX(OFXConfig{
			Options:  opts,
			Account:  s.Account,
			Accounts: s.Accounts,
			Resolver: resolver,
		})
	}

	return nil, fmt.Errorf("%w: unknown importer type %q", common.ErrInvalidConfig, s.Type)
}

func (s Spec) buildBank(opts Options) (Importer, error) {
	layout, err := s.layout()
	if err != nil {
		return nil, err
	}
	resolver, err := categorize.NewResolverFromRules(s.Categorizers)
	if err != nil {
		return nil, err
	}

	cfg := BankConfig{
		Options:       opts,
		Account:       s.Account,
		Currency:      s.Currency,
		InvertAmounts: s.InvertAmounts,
		Layout:        layout,
		Resolver:      resolver,
	}

	if strings.ToLower(s.Type) != TypeMyLifeNow {
		return NewBankAccount(cfg)
	}

	fees, err := categorize.NewResolverFromRules(s.Fees)
	if err != nil {
		return nil, fmt.Errorf("fees: %w", err)
	}
	return NewMyLifeNow(MyLifeNowConfig{
		BankConfig:  cfg,
		Investments: s.Investments,
		Fees:        fees,
	})
}

// BuildAll builds every spec, reporting the first failure with its index.
func BuildAll(specs []Spec) ([]Importer, error) {
	importers := make([]Importer, 0, len(specs))
	for i, s := range specs {
		imp, err := s.Build()
		if err != nil {
			label := s.Name
			if label == "" {
				label = s.Type
			}
			return nil, fmt.Errorf("importer %d (%s): %w", i, label, err)
		}
		importers = append(importers, imp)
	}
	return importers, nil
}
