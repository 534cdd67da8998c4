package categorize

import (
	"testing"

	"github.com/Veraticus/the-ledger-must-balance/internal/common"
	"github.com/Veraticus/the-ledger-must-balance/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usd(s string) model.Amount {
	return model.NewAmount(decimal.RequireFromString(s), "USD")
}

func coffeeRecord() model.Record {
	return model.NewRecord(map[string]string{"description": "COFFEE SHOP"})
}

type postingView struct {
	account string
	amount  string
}

func viewPostings(postings []model.Posting) []postingView {
	out := make([]postingView, len(postings))
	for i, p := range postings {
		out[i] = postingView{account: p.Account, amount: p.Units.String()}
	}
	return out
}

func TestResolver_Resolve(t *testing.T) {
	never := func(model.Record) Outcome { return nil }

	tests := []struct {
		name          string
		classifiers   []Classifier
		wantPostings  []postingView
		wantResult    *Result
		wantAmbiguous bool
	}{
		{
			name:        "single match balances the primary posting",
			classifiers: []Classifier{MustMatch("coffee", "Expenses:Dining")},
			wantPostings: []postingView{
				{"Assets:Checking", "-4.50 USD"},
				{"Expenses:Dining", "4.50 USD"},
			},
			wantResult: &Result{Account: "Expenses:Dining"},
		},
		{
			name: "second match flags but first wins",
			classifiers: []Classifier{
				MustMatch("coffee", "Expenses:Dining"),
				MustMatch("shop", "Expenses:Shopping"),
			},
			wantPostings: []postingView{
				{"Assets:Checking", "-4.50 USD"},
				{"Expenses:Dining", "4.50 USD"},
			},
			wantResult:    &Result{Account: "Expenses:Dining", Flag: model.FlagWarning},
			wantAmbiguous: true,
		},
		{
			name: "agreeing matches are still flagged",
			classifiers: []Classifier{
				MustMatch("coffee", "Expenses:Dining"),
				MustMatch("coffee", "Expenses:Dining"),
			},
			wantPostings: []postingView{
				{"Assets:Checking", "-4.50 USD"},
				{"Expenses:Dining", "4.50 USD"},
			},
			wantResult:    &Result{Account: "Expenses:Dining", Flag: model.FlagWarning},
			wantAmbiguous: true,
		},
		{
			name:        "non-matching classifiers are skipped",
			classifiers: []Classifier{never, MustMatch("coffee", "Expenses:Dining"), never},
			wantPostings: []postingView{
				{"Assets:Checking", "-4.50 USD"},
				{"Expenses:Dining", "4.50 USD"},
			},
			wantResult: &Result{Account: "Expenses:Dining"},
		},
		{
			name:        "no classifiers",
			classifiers: nil,
			wantPostings: []postingView{
				{"Assets:Checking", "-4.50 USD"},
			},
		},
		{
			name:        "no match",
			classifiers: []Classifier{MustMatch("grocer", "Expenses:Groceries")},
			wantPostings: []postingView{
				{"Assets:Checking", "-4.50 USD"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver, err := NewResolver(tt.classifiers...)
			require.NoError(t, err)

			res, err := resolver.Resolve(coffeeRecord(), "Assets:Checking", usd("-4.50"))
			require.NoError(t, err)

			assert.Equal(t, tt.wantPostings, viewPostings(res.Postings))
			assert.Equal(t, tt.wantAmbiguous, res.Ambiguous)
			if tt.wantResult == nil {
				assert.Nil(t, res.Result)
				assert.False(t, res.Classified())
				return
			}
			require.NotNil(t, res.Result)
			assert.True(t, res.Classified())
			assert.Equal(t, tt.wantResult.Account, res.Result.Account)
			assert.Equal(t, tt.wantResult.Flag, res.Result.Flag)
		})
	}
}

func TestResolver_PrimaryAmountIsExact(t *testing.T) {
	resolver, err := NewResolver(MustMatch(".", "Expenses:Misc"))
	require.NoError(t, err)

	for _, raw := range []string{"0.01", "-1234567.891", "100", "-0.000001", "3.14159265358979"} {
		amount := usd(raw)
		res, err := resolver.Resolve(coffeeRecord(), "Assets:Checking", amount)
		require.NoError(t, err)
		require.Len(t, res.Postings, 2)

		assert.True(t, res.Postings[0].Units.Equal(amount), raw)
		assert.Equal(t, amount.String(), res.Postings[0].Units.String())
		assert.True(t, res.Postings[0].Units.Number.Add(res.Postings[1].Units.Number).IsZero(), raw)
		assert.Nil(t, res.Postings[0].Price)
		assert.Empty(t, res.Postings[1].Flag)
	}
}

func TestResolver_ResultFlagSurvivesSingleMatch(t *testing.T) {
	resolver, err := NewResolver(MustMatch("coffee", "Expenses:Dining", WithFlag("?"), WithPayee("Blue Bottle")))
	require.NoError(t, err)

	res, err := resolver.Resolve(coffeeRecord(), "Assets:Checking", usd("-4.50"))
	require.NoError(t, err)
	require.NotNil(t, res.Result)
	assert.Equal(t, "?", res.Result.Flag)
	assert.Equal(t, "Blue Bottle", res.Result.Payee)
	assert.False(t, res.Ambiguous)
}

func TestResolver_AccountOnlyNormalized(t *testing.T) {
	bare := func(model.Record) Outcome { return AccountOnly("Expenses:Dining") }
	resolver, err := NewResolver(bare)
	require.NoError(t, err)

	res, err := resolver.Resolve(coffeeRecord(), "Assets:Checking", usd("-4.50"))
	require.NoError(t, err)
	require.NotNil(t, res.Result)
	assert.Equal(t, Result{Account: "Expenses:Dining"}, *res.Result)
}

func TestResolver_ConfigurationErrors(t *testing.T) {
	t.Run("invalid winning account", func(t *testing.T) {
		bad := func(model.Record) Outcome { return AccountOnly("Dining") }
		resolver, err := NewResolver(bad)
		require.NoError(t, err)

		_, err = resolver.Resolve(coffeeRecord(), "Assets:Checking", usd("-4.50"))
		assert.ErrorIs(t, err, common.ErrInvalidAccount)
	})

	t.Run("invalid primary account", func(t *testing.T) {
		resolver, err := NewResolver()
		require.NoError(t, err)

		_, err = resolver.Resolve(coffeeRecord(), "Checking", usd("-4.50"))
		assert.ErrorIs(t, err, common.ErrInvalidAccount)
	})

	t.Run("nil classifier", func(t *testing.T) {
		_, err := NewResolver(MustMatch("coffee", "Expenses:Dining"), nil)
		assert.ErrorIs(t, err, common.ErrInvalidClassifier)
	})

	t.Run("invalid account on losing match is not evaluated", func(t *testing.T) {
		bad := func(model.Record) Outcome { return AccountOnly("Dining") }
		resolver, err := NewResolver(MustMatch("coffee", "Expenses:Dining"), bad)
		require.NoError(t, err)

		res, err := resolver.Resolve(coffeeRecord(), "Assets:Checking", usd("-4.50"))
		require.NoError(t, err)
		assert.True(t, res.Ambiguous)
	})
}

func TestResolver_Deterministic(t *testing.T) {
	resolver, err := NewResolver(
		MustMatch("coffee", "Expenses:Dining", WithTags("food")),
		MustMatch("shop", "Expenses:Shopping"),
	)
	require.NoError(t, err)

	first, err := resolver.Resolve(coffeeRecord(), "Assets:Checking", usd("-4.50"))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := resolver.Resolve(coffeeRecord(), "Assets:Checking", usd("-4.50"))
		require.NoError(t, err)
		assert.Equal(t, viewPostings(first.Postings), viewPostings(again.Postings))
		assert.Equal(t, first.Result.Flag, again.Result.Flag)
		assert.Equal(t, first.Result.Tags.Sorted(), again.Result.Tags.Sorted())
	}
}

func TestResolver_NilResolver(t *testing.T) {
	var resolver *Resolver
	res, err := resolver.Resolve(coffeeRecord(), "Assets:Checking", usd("-4.50"))
	require.NoError(t, err)
	assert.Len(t, res.Postings, 1)
	assert.Equal(t, 0, resolver.Len())
}

func TestResolver_Classify(t *testing.T) {
	r, err := NewResolver(
		func(model.Record) Outcome { return nil },
		MustMatch("fee", "Expenses:Fees"),
		MustMatch("fee", "Expenses:Other"),
	)
	require.NoError(t, err)

	got, err := r.Classify(model.NewRecord(map[string]string{"description": "Admin Fee"}))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Expenses:Fees", got.Account)

	got, err = r.Classify(model.NewRecord(map[string]string{"description": "Contribution"}))
	require.NoError(t, err)
	assert.Nil(t, got)

	bad, err := NewResolver(func(model.Record) Outcome { return AccountOnly("fees") })
	require.NoError(t, err)
	_, err = bad.Classify(coffeeRecord())
	require.ErrorIs(t, err, common.ErrInvalidAccount)

	var none *Resolver
	got, err = none.Classify(coffeeRecord())
	require.NoError(t, err)
	assert.Nil(t, got)
}
