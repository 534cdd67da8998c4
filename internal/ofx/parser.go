// Package ofx reads OFX/QFX bank and credit card downloads into statements
// of signed entries.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
)

// Statement kinds.
const (
	KindBank       = "bank"
	KindCreditCard = "creditcard"
)

// Entry is one statement transaction. Amounts keep the OFX sign: debits are
// negative.
type Entry struct {
	Date        time.Time
	Amount      decimal.Decimal
	ID          string
	Type        string
	Name        string
	Memo        string
	Merchant    string
	CheckNumber string
}

// Statement is the transaction list of one account.
type Statement struct {
	AccountID string
	Kind      string
	Currency  string
	Entries   []Entry
}

// Parser implements OFX/QFX file parsing.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// Opening tag alone on a line with its closing bracket missing.
	unclosedTagRegex = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocessOFX fixes formatting issues seen in real bank downloads.
func (p *Parser) preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	return unclosedTagRegex.ReplaceAllString(content, "$1>")
}

func (p *Parser) parse(reader io.Reader) (*ofxgo.Response, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}
	return resp, nil
}

// ParseFile parses an OFX/QFX file and returns its bank and credit card
// statements.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) ([]Statement, error) {
	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	var statements []Statement
	var entries int

	for _, msg := range resp.Bank {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			s := p.statement(KindBank, string(stmt.BankAcctFrom.AcctID), stmt.CurDef, stmt.BankTranList)
			entries += len(s.Entries)
			statements = append(statements, s)
		}
	}

	for _, msg := range resp.CreditCard {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			s := p.statement(KindCreditCard, string(stmt.CCAcctFrom.AcctID), stmt.CurDef, stmt.BankTranList)
			entries += len(s.Entries)
			statements = append(statements, s)
		}
	}

	slog.Debug("Parsed OFX file",
		"statements", len(statements),
		"entries", entries)

	return statements, nil
}

func (p *Parser) statement(kind, accountID string, curDef ofxgo.CurrSymbol, list *ofxgo.TransactionList) Statement {
	s := Statement{
		AccountID: accountID,
		Kind:      kind,
		Currency:  currencyCode(curDef),
	}
	if list == nil {
		return s
	}

	for _, tx := range list.Transactions {
		s.Entries = append(s.Entries, p.entry(tx))
	}
	return s
}

// currencyCode returns the ISO code, defaulting to USD when the statement
// omits CURDEF.
func currencyCode(c ofxgo.CurrSymbol) string {
	code := c.String()
	if code == "" || code == "XXX" {
		return "USD"
	}
	return code
}

func (p *Parser) entry(tx ofxgo.Transaction) Entry {
	amount, err := decimal.NewFromString(tx.TrnAmt.Rat.FloatString(2))
	if err != nil {
		slog.Warn("Unreadable OFX amount", "fitid", string(tx.FiTID), "error", err)
		amount = decimal.Zero
	}

	return Entry{
		ID:          string(tx.FiTID),
		Date:        tx.DtPosted.Time,
		Amount:      amount,
		Type:        tx.TrnType.String(),
		Name:        strings.TrimSpace(string(tx.Name)),
		Memo:        strings.TrimSpace(string(tx.Memo)),
		Merchant:    p.extractMerchantName(tx),
		CheckNumber: string(tx.CheckNum),
	}
}

var merchantPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

// extractMerchantName tries to get a clean merchant name from OFX data.
func (p *Parser) extractMerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	for _, prefix := range merchantPrefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// "MM/DD " left over from card authorizations.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

func isGenericDescription(name string) bool {
	switch strings.ToUpper(name) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}

// GetAccounts returns the sorted account IDs found in the file.
func (p *Parser) GetAccounts(ctx context.Context, reader io.Reader) ([]string, error) {
	statements, err := p.ParseFile(ctx, reader)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var accounts []string
	for _, s := range statements {
		if s.AccountID != "" && !seen[s.AccountID] {
			seen[s.AccountID] = true
			accounts = append(accounts, s.AccountID)
		}
	}
	sort.Strings(accounts)
	return accounts, nil
}
