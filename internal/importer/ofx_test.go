package importer

import (
	"context"
	"testing"

	"github.com/Veraticus/the-ledger-must-balance/internal/categorize"
	"github.com/Veraticus/the-ledger-must-balance/internal/common"
	"github.com/Veraticus/the-ledger-must-balance/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const checkingOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240120120000[0:GMT]
<TRNAMT>-125.00
<FITID>2024012001
<NAME>POS PURCHASE WHOLE FOODS
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>2000.00
<FITID>2024011501
<NAME>ACME PAYROLL
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

func newTestOFX(t *testing.T) *OFX {
	t.Helper()
	imp, err := NewOFX(OFXConfig{
		Account:  "Assets:Bank:Unknown",
		Accounts: []AccountMapping{{ID: "1234567890", Account: "Assets:Bank:Checking"}},
		Resolver: mustResolver(t,
			categorize.MustMatch("whole foods", "Expenses:Groceries"),
			mustMatchField(t, "type", "^CREDIT$", "Income:Salary"),
		),
		Options: Options{Tags: []string{"ofx"}},
	})
	require.NoError(t, err)
	return imp
}

func mustMatchField(t *testing.T, field, pattern, account string) categorize.Classifier {
	t.Helper()
	c, err := categorize.MatchField(field, pattern, account)
	require.NoError(t, err)
	return c
}

func TestOFX_Extract(t *testing.T) {
	imp := newTestOFX(t)
	f := NewFile(writeFile(t, t.TempDir(), "checking.qfx", checkingOFX))

	assert.True(t, imp.Identify(f))
	assert.Equal(t, "Assets:Bank:Checking", imp.FileAccount(f))
	assert.Equal(t, "checking.qfx", imp.FileName(f))

	txns, err := imp.Extract(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, txns, 2)

	payroll := txns[0]
	assert.Equal(t, day(2024, 1, 15), payroll.Date)
	assert.Equal(t, model.FlagOkay, payroll.Flag)
	assert.Equal(t, "ACME PAYROLL", payroll.Narration)
	assert.Equal(t, "2024011501", payroll.Meta["fitid"])
	assert.Equal(t, 2, payroll.Meta[model.MetaLineno])
	assert.Equal(t, []postingView{
		{account: "Assets:Bank:Checking", units: "2000.00 USD"},
		{account: "Income:Salary", units: "-2000.00 USD"},
	}, viewPostings(payroll.Postings))

	groceries := txns[1]
	assert.Equal(t, "WHOLE FOODS", groceries.Narration)
	assert.Equal(t, []string{"ofx"}, groceries.Tags.Sorted())
	assert.Equal(t, []postingView{
		{account: "Assets:Bank:Checking", units: "-125.00 USD"},
		{account: "Expenses:Groceries", units: "125.00 USD"},
	}, viewPostings(groceries.Postings))

	date, err := imp.FileDate(f)
	require.NoError(t, err)
	assert.Equal(t, day(2024, 1, 20), date)
}

func TestOFX_Identify(t *testing.T) {
	imp := newTestOFX(t)
	dir := t.TempDir()

	assert.False(t, imp.Identify(NewFile(writeFile(t, dir, "checking.csv", checkingOFX))))
	assert.False(t, imp.Identify(NewFile(writeFile(t, dir, "empty.ofx", "nothing"))))
	assert.True(t, imp.Identify(NewFile(writeFile(t, dir, "checking.OFX", checkingOFX))))
}

func TestOFX_UnmappedAccountUsesDefault(t *testing.T) {
	imp, err := NewOFX(OFXConfig{Account: "Assets:Bank:Unknown"})
	require.NoError(t, err)

	f := NewFile(writeFile(t, t.TempDir(), "checking.ofx", checkingOFX))
	assert.Equal(t, "Assets:Bank:Unknown", imp.FileAccount(f))

	txns, err := imp.Extract(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	for _, txn := range txns {
		assert.Equal(t, model.FlagWarning, txn.Flag)
		require.Len(t, txn.Postings, 1)
		assert.Equal(t, "Assets:Bank:Unknown", txn.Postings[0].Account)
	}
}

func TestOFX_Errors(t *testing.T) {
	_, err := NewOFX(OFXConfig{Account: "bank"})
	require.ErrorIs(t, err, common.ErrInvalidAccount)

	_, err = NewOFX(OFXConfig{
		Account:  "Assets:Bank",
		Accounts: []AccountMapping{{ID: "1", Account: "checking"}},
	})
	require.ErrorIs(t, err, common.ErrInvalidAccount)

	imp, err := NewOFX(OFXConfig{Account: "Assets:Bank"})
	require.NoError(t, err)
	_, err = imp.Extract(context.Background(), NewFile(writeFile(t, t.TempDir(), "broken.ofx", "<OFX>garbage")))
	assert.Error(t, err)
}
