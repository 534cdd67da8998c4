package importer

import (
	"fmt"

	"github.com/Veraticus/the-ledger-must-balance/internal/categorize"
	"github.com/Veraticus/the-ledger-must-balance/internal/common"
	"github.com/Veraticus/the-ledger-must-balance/internal/csvsource"
	"github.com/Veraticus/the-ledger-must-balance/internal/model"
)

// currencySymbols are stripped from money columns before parsing.
const currencySymbols = "$€£"

// MyLifeNowLayout is the John Hancock MyLifeNow account export.
var MyLifeNowLayout = BankLayout{
	Name:   "mylifenow",
	Prefix: "John-Hancock",
	CSV: csvsource.NewLayout(
		csvsource.Column{Header: "Investment", Field: "investment"},
		csvsource.Column{Header: "Date", Field: "date"},
		csvsource.Column{Header: "Investment Activity", Field: "description"},
		csvsource.Column{Header: "Shares", Field: "amount"},
		csvsource.Column{Header: "Price per Share", Field: "price_per_share"},
		csvsource.Column{Header: "Market Value", Field: "price_total"},
	),
}

// Investment maps a fund name in the export to its commodity.
type Investment struct {
	Name      string `mapstructure:"name"`
	Commodity string `mapstructure:"commodity"`
}

// MyLifeNowConfig configures the MyLifeNow importer.
type MyLifeNowConfig struct {
	// Fees picks the account shares are moved out of. When nothing matches
	// the importer account is used.
	Fees        *categorize.Resolver
	Investments []Investment
	BankConfig
}

// NewMyLifeNow creates an importer for John Hancock MyLifeNow exports. Each
// row moves shares of a fund commodity, priced per share in the account
// currency.
func NewMyLifeNow(cfg MyLifeNowConfig) (*BankAccount, error) {
	commodities := make(map[string]string, len(cfg.Investments))
	for _, inv := range cfg.Investments {
		if inv.Name == "" || inv.Commodity == "" {
			return nil, fmt.Errorf("%w: investment needs a name and a commodity", common.ErrInvalidConfig)
		}
		commodities[inv.Name] = inv.Commodity
	}

	bank := cfg.BankConfig
	if bank.Layout.Name == "" {
		bank.Layout = MyLifeNowLayout
	}
	imp, err := NewBankAccount(bank)
	if err != nil {
		return nil, err
	}

	imp.amountOf = func(rec model.Record) (model.Amount, error) {
		raw, err := rec.Require("amount")
		if err != nil {
			return model.Amount{}, err
		}
		investment := rec.Value("investment")
		commodity, ok := commodities[investment]
		if !ok {
			return model.Amount{}, fmt.Errorf("%w: no commodity configured for investment %q", common.ErrInvalidConfig, investment)
		}
		shares, err := model.ParseNumber(raw, "")
		if err != nil {
			return model.Amount{}, err
		}
		if imp.invert {
			shares = shares.Neg()
		}
		return model.NewAmount(shares, commodity), nil
	}

	imp.priceOf = func(rec model.Record) (*model.Amount, error) {
		perShare, err := model.ParseNumber(rec.Value("price_per_share"), currencySymbols+"()")
		if err != nil {
			return nil, fmt.Errorf("price per share: %w", err)
		}
		price := model.NewAmount(perShare, imp.currency)
		return &price, nil
	}

	imp.accountOf = func(rec model.Record) (string, error) {
		result, err := cfg.Fees.Classify(rec)
		if err != nil {
			return "", err
		}
		if result != nil {
			return result.Account, nil
		}
		return imp.account, nil
	}

	return imp, nil
}
