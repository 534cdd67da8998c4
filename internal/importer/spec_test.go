package importer

import (
	"context"
	"testing"

	"github.com/Veraticus/the-ledger-must-balance/internal/categorize"
	"github.com/Veraticus/the-ledger-must-balance/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpec_Build(t *testing.T) {
	tests := []struct {
		name     string
		spec     Spec
		wantName string
		wantType any
	}{
		{
			name:     "ally",
			spec:     Spec{Type: "ally", Account: "Assets:Ally:Checking"},
			wantName: "ally",
			wantType: &BankAccount{},
		},
		{
			name:     "chase with name",
			spec:     Spec{Type: "Chase", Name: "sapphire", Account: "Liabilities:Chase:Sapphire"},
			wantName: "sapphire",
			wantType: &BankAccount{},
		},
		{
			name: "generic csv",
			spec: Spec{
				Type:    "csv",
				Account: "Assets:CreditUnion",
				Columns: []ColumnSpec{
					{Header: "Posted", Field: "date"},
					{Header: "Memo", Field: "description"},
					{Header: "Value", Field: "amount"},
				},
			},
			wantName: "csv",
			wantType: &BankAccount{},
		},
		{
			name: "mylifenow",
			spec: Spec{
				Type:        "mylifenow",
				Account:     "Assets:Retirement",
				Investments: []Investment{{Name: "Stable Value Fund", Commodity: "JH_SVF"}},
				Fees:        []categorize.Rule{{Pattern: "fee", Account: "Expenses:Fees"}},
			},
			wantName: "mylifenow",
			wantType: &BankAccount{},
		},
		{
			name: "amazon",
			spec: Spec{
				Type:           "amazon",
				FundingSources: []FundingSource{{Source: "1234", Account: "Liabilities:Amazon"}},
			},
			wantName: "amazon",
			wantType: &Amazon{},
		},
		{
			name:     "uhc",
			spec:     Spec{Type: "uhc"},
			wantName: "uhc",
			wantType: &UHC{},
		},
		{
			name:     "ofx",
			spec:     Spec{Type: "ofx", Account: "Assets:Bank"},
			wantName: "ofx",
			wantType: &OFX{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imp, err := tt.spec.Build()
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, imp)
			assert.Equal(t, tt.wantName, imp.Name())
		})
	}
}

func TestSpec_BuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr error
	}{
		{
			name:    "unknown type",
			spec:    Spec{Type: "mint", Account: "Assets:Bank"},
			wantErr: common.ErrInvalidConfig,
		},
		{
			name:    "csv without columns",
			spec:    Spec{Type: "csv", Account: "Assets:Bank"},
			wantErr: common.ErrInvalidConfig,
		},
		{
			name:    "bad matcher kind",
			spec:    Spec{Type: "ally", Account: "Assets:Bank", Matchers: []MatcherSpec{{Kind: "size", Pattern: "."}}},
			wantErr: common.ErrInvalidConfig,
		},
		{
			name:    "categorizer with invalid account",
			spec:    Spec{Type: "ally", Account: "Assets:Bank", Categorizers: []categorize.Rule{{Pattern: "x", Account: "food"}}},
			wantErr: common.ErrInvalidAccount,
		},
		{
			name:    "categorizer without pattern",
			spec:    Spec{Type: "ofx", Account: "Assets:Bank", Categorizers: []categorize.Rule{{Account: "Expenses:Food"}}},
			wantErr: common.ErrInvalidClassifier,
		},
		{
			name:    "fee rule with invalid account",
			spec:    Spec{Type: "mylifenow", Account: "Assets:Retirement", Fees: []categorize.Rule{{Pattern: "fee", Account: "fees"}}},
			wantErr: common.ErrInvalidAccount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.spec.Build()
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, common.IsConfigError(err))
		})
	}
}

func TestSpec_CategorizersAreApplied(t *testing.T) {
	imp, err := Spec{
		Type:    "ally",
		Account: "Assets:Ally:Checking",
		Tags:    []string{"bank"},
		Categorizers: []categorize.Rule{
			{Pattern: "coffee", Account: "Expenses:Coffee", Payee: "Corner Cafe"},
		},
	}.Build()
	require.NoError(t, err)

	txns, err := imp.Extract(context.Background(), NewFile(writeFile(t, t.TempDir(), "ally.csv", allyCSV)))
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "Corner Cafe", txns[1].Payee)
	assert.Equal(t, []string{"bank"}, txns[1].Tags.Sorted())
}

func TestBuildAll(t *testing.T) {
	importers, err := BuildAll([]Spec{
		{Type: "ally", Account: "Assets:Ally:Checking"},
		{Type: "uhc"},
	})
	require.NoError(t, err)
	require.Len(t, importers, 2)
	assert.Equal(t, "ally", importers[0].Name())
	assert.Equal(t, "uhc", importers[1].Name())

	_, err = BuildAll([]Spec{
		{Type: "ally", Account: "Assets:Ally:Checking"},
		{Type: "chase", Name: "sapphire", Account: "sapphire"},
	})
	require.ErrorIs(t, err, common.ErrInvalidAccount)
	assert.Contains(t, err.Error(), "importer 1 (sapphire)")
}
