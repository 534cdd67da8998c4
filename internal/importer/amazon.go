package importer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/the-ledger-must-balance/internal/csvsource"
	"github.com/Veraticus/the-ledger-must-balance/internal/model"
)

const amazonReceiptURL = "https://www.amazon.com/gp/your-account/order-details?orderID="

var amazonLayout = csvsource.NewLayout(
	csvsource.Column{Header: "Order Date", Field: "order_date"},
	csvsource.Column{Header: "Order ID", Field: "order_id"},
	csvsource.Column{Header: "Title", Field: "title"},
	csvsource.Column{Header: "Category", Field: "category"},
	csvsource.Column{Header: "ASIN/ISBN", Field: "asin_or_isbn"},
	csvsource.Column{Header: "UNSPSC Code", Field: "unspsc"},
	csvsource.Column{Header: "Website", Field: "website"},
	csvsource.Column{Header: "Release Date", Field: "release_date"},
	csvsource.Column{Header: "Condition", Field: "condition"},
	csvsource.Column{Header: "Seller", Field: "seller"},
	csvsource.Column{Header: "Seller Credentials", Field: "seller_credentials"},
	csvsource.Column{Header: "List Price Per Unit", Field: "list_price_per_unit"},
	csvsource.Column{Header: "Purchase Price Per Unit", Field: "purchase_price_per_unit"},
	csvsource.Column{Header: "Quantity", Field: "quantity"},
	csvsource.Column{Header: "Payment Instrument Type", Field: "payment_instrument"},
	csvsource.Column{Header: "Purchase Order Number", Field: "purchase_order_number"},
	csvsource.Column{Header: "PO Line Number", Field: "po_line_number"},
	csvsource.Column{Header: "Ordering Customer Email", Field: "ordering_customer_email"},
	csvsource.Column{Header: "Shipment Date", Field: "shipment_date"},
	csvsource.Column{Header: "Shipping Address Name", Field: "shipping_address_name"},
	csvsource.Column{Header: "Shipping Address Street 1", Field: "shipping_address_street_1"},
	csvsource.Column{Header: "Shipping Address Street 2", Field: "shipping_address_street_2"},
	csvsource.Column{Header: "Shipping Address City", Field: "shipping_address_city"},
	csvsource.Column{Header: "Shipping Address State", Field: "shipping_address_state"},
	csvsource.Column{Header: "Shipping Address Zip", Field: "shipping_address_zip"},
	csvsource.Column{Header: "Order Status", Field: "order_status"},
	csvsource.Column{Header: "Carrier Name & Tracking Number", Field: "carrier_name_and_tracking"},
	csvsource.Column{Header: "Item Subtotal", Field: "item_subtotal"},
	csvsource.Column{Header: "Item Subtotal Tax", Field: "item_subtotal_tax"},
	csvsource.Column{Header: "Item Total", Field: "item_total"},
	csvsource.Column{Header: "Tax Exemption Applied", Field: "tax_exemption_applied"},
	csvsource.Column{Header: "Tax Exemption Type", Field: "tax_exemption_type"},
	csvsource.Column{Header: "Exemption Opt-Out", Field: "exemption_opt_out"},
	csvsource.Column{Header: "Buyer Name", Field: "buyer_name"},
	csvsource.Column{Header: "Currency", Field: "currency"},
	csvsource.Column{Header: "Group Name", Field: "group_name"},
)

// FundingSource maps a payment instrument to the account that paid for the
// order. A four digit source is shorthand for an Amazon store card.
type FundingSource struct {
	Source  string `mapstructure:"source"`
	Account string `mapstructure:"account"`
}

func (s FundingSource) instrument() string {
	if len(s.Source) == 4 && isDigits(s.Source) {
		return "Amazon.com Store Card - " + s.Source
	}
	return s.Source
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// AmazonConfig configures the Amazon items importer.
type AmazonConfig struct {
	// ExpenseAccount receives the item total. Without it the transactions
	// are left unbalanced for manual review.
	ExpenseAccount string
	// CurrencySymbols are stripped from item totals in addition to $, € and £.
	CurrencySymbols string
	FundingSources  []FundingSource
	Options
}

// Amazon imports Amazon business "Items" reports.
type Amazon struct {
	expense  string
	symbols  string
	fundings []FundingSource
	base
}

// NewAmazon creates an Amazon items importer.
func NewAmazon(cfg AmazonConfig) (*Amazon, error) {
	for _, fs := range cfg.FundingSources {
		if err := model.ValidateAccount(fs.Account); err != nil {
			return nil, fmt.Errorf("funding source %q: %w", fs.Source, err)
		}
	}
	if cfg.ExpenseAccount != "" {
		if err := model.ValidateAccount(cfg.ExpenseAccount); err != nil {
			return nil, fmt.Errorf("expense account: %w", err)
		}
	}

	// Files go under the first funding source unless filing is set.
	filing := cfg.Filing
	if filing == "" && len(cfg.FundingSources) > 0 {
		filing = cfg.FundingSources[0].Account
	}
	opts := cfg.Options
	opts.Filing = filing
	if len(opts.Tags) == 0 {
		opts.Tags = []string{"amazon-purchase"}
	}

	b, err := newBase(opts, "amazon", "Amazon", filing,
		mustMatcher(MatchMime, `text/csv`),
		mustMatcher(MatchContent, amazonLayout.ContentPattern()),
	)
	if err != nil {
		return nil, err
	}

	return &Amazon{
		base:     b,
		expense:  cfg.ExpenseAccount,
		symbols:  currencySymbols + cfg.CurrencySymbols,
		fundings: cfg.FundingSources,
	}, nil
}

// Extract returns one transaction per item, sorted by order date.
func (a *Amazon) Extract(ctx context.Context, f *File) ([]model.Transaction, error) {
	rows, err := csvsource.ReadFile(f.Path(), amazonLayout)
	if err != nil {
		return nil, err
	}

	txns := make([]model.Transaction, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a.logRow(row.Number, row.Record)

		txn, err := a.transaction(f.Path(), row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", f.Base(), row.Number, err)
		}
		txns = append(txns, txn)
	}

	model.SortByDate(txns)
	return txns, nil
}

func (a *Amazon) transaction(path string, row csvsource.Row) (model.Transaction, error) {
	rec := row.Record

	date, err := ParseDate(rec.Value("order_date"))
	if err != nil {
		return model.Transaction{}, err
	}
	total, err := model.ParseNumber(rec.Value("item_total"), a.symbols)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("item total: %w", err)
	}
	amount := model.NewAmount(total, strings.TrimSpace(rec.Value("currency")))

	instrument := rec.Value("payment_instrument")
	// Orders split across instruments cannot be attributed exactly.
	var postingFlag string
	if strings.Contains(strings.ToLower(instrument), " and ") {
		postingFlag = model.FlagWarning
	}

	var postings []model.Posting
	for _, fs := range a.fundings {
		if !strings.Contains(instrument, fs.instrument()) {
			continue
		}
		p := model.NewPosting(fs.Account, amount.Neg())
		p.Flag = postingFlag
		postings = append(postings, p)
	}

	flag := model.FlagOkay
	if len(postings) == 0 {
		flag = model.FlagWarning
	}
	if a.expense != "" {
		postings = append(postings, model.NewPosting(a.expense, amount))
	}

	return model.Transaction{
		Meta: model.NewMeta(path, row.Number, map[string]any{
			"receipt-url":    amazonReceiptURL + rec.Value("order_id"),
			"payment-method": instrument,
		}),
		Date:      date,
		Flag:      flag,
		Payee:     strings.TrimSpace(rec.Value("seller")),
		Narration: strings.TrimSpace(rec.Value("title")),
		Tags:      a.tags,
		Postings:  postings,
	}, nil
}

// FileDate is the latest order date in the report.
func (a *Amazon) FileDate(f *File) (time.Time, error) {
	return latestRowDate(f, amazonLayout, "order_date")
}
