// Package ledger renders transactions and prices as beancount text.
package ledger

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/the-ledger-must-balance/internal/model"
	"github.com/shopspring/decimal"
)

// PriceDirective records the price of one unit of a commodity on a date.
type PriceDirective struct {
	Date      time.Time
	Commodity string
	Amount    model.Amount
}

// Printer writes beancount directives.
type Printer struct {
	w io.Writer
	// sourceMeta keeps the filename and lineno metadata.
	sourceMeta bool
}

// Option configures a Printer.
type Option func(*Printer)

// WithSourceMeta prints the filename and lineno metadata that are omitted
// by default.
func WithSourceMeta() Option {
	return func(p *Printer) { p.sourceMeta = true }
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer, opts ...Option) *Printer {
	p := &Printer{w: w}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Print writes txns to w with the default printer settings.
func Print(w io.Writer, txns []model.Transaction) error {
	return NewPrinter(w).Transactions(txns)
}

// Transactions prints each transaction followed by a blank line.
func (p *Printer) Transactions(txns []model.Transaction) error {
	for _, txn := range txns {
		if _, err := io.WriteString(p.w, p.FormatTransaction(txn)+"\n"); err != nil {
			return fmt.Errorf("failed to write transaction: %w", err)
		}
	}
	return nil
}

// Prices prints one price directive per line.
func (p *Printer) Prices(prices []PriceDirective) error {
	for _, pd := range prices {
		if _, err := io.WriteString(p.w, FormatPrice(pd)); err != nil {
			return fmt.Errorf("failed to write price: %w", err)
		}
	}
	return nil
}

// FormatTransaction renders one transaction.
func (p *Printer) FormatTransaction(txn model.Transaction) string {
	var b strings.Builder

	flag := txn.Flag
	if flag == "" {
		flag = model.FlagOkay
	}
	b.WriteString(txn.Date.Format("2006-01-02"))
	b.WriteString(" " + flag)
	if txn.Payee != "" {
		b.WriteString(" " + quote(txn.Payee))
	}
	b.WriteString(" " + quote(txn.Narration))
	for _, tag := range txn.Tags.Sorted() {
		b.WriteString(" #" + tag)
	}
	for _, link := range txn.Links {
		b.WriteString(" ^" + link)
	}
	b.WriteString("\n")

	for _, key := range p.metaKeys(txn.Meta) {
		fmt.Fprintf(&b, "  %s: %s\n", key, metaValue(txn.Meta[key]))
	}

	width := 0
	for _, posting := range txn.Postings {
		if n := len(postingAccount(posting)); n > width {
			width = n
		}
	}
	for _, posting := range txn.Postings {
		fmt.Fprintf(&b, "  %-*s  %s", width, postingAccount(posting), posting.Units)
		if posting.Price != nil {
			fmt.Fprintf(&b, " @ %s", posting.Price)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func postingAccount(p model.Posting) string {
	if p.Flag != "" {
		return p.Flag + " " + p.Account
	}
	return p.Account
}

func (p *Printer) metaKeys(meta map[string]any) []string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		if !p.sourceMeta && (k == model.MetaFilename || k == model.MetaLineno) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func metaValue(v any) string {
	switch v := v.(type) {
	case string:
		return quote(v)
	case time.Time:
		return v.Format("2006-01-02")
	case int, int64:
		return fmt.Sprintf("%d", v)
	case decimal.Decimal:
		return model.FormatNumber(v)
	case model.Amount:
		return v.String()
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	default:
		return quote(fmt.Sprint(v))
	}
}

var quoteReplacer = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func quote(s string) string {
	return `"` + quoteReplacer.Replace(s) + `"`
}

// FormatPrice renders a price directive.
func FormatPrice(pd PriceDirective) string {
	return fmt.Sprintf("%s price %s %s\n", pd.Date.Format("2006-01-02"), pd.Commodity, pd.Amount)
}
