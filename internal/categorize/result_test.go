package categorize

import (
	"testing"

	"github.com/Veraticus/the-ledger-must-balance/internal/common"
	"github.com/Veraticus/the-ledger-must-balance/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_Merge(t *testing.T) {
	tests := []struct {
		name    string
		left    Result
		right   Result
		want    Result
		wantErr bool
	}{
		{
			name:  "equal accounts",
			left:  Result{Account: "Expenses:Dining"},
			right: Result{Account: "Expenses:Dining"},
			want:  Result{Account: "Expenses:Dining"},
		},
		{
			name:  "unset side takes the other",
			left:  Result{Payee: "Cafe"},
			right: Result{Account: "Expenses:Dining", Narration: "Latte"},
			want:  Result{Account: "Expenses:Dining", Payee: "Cafe", Narration: "Latte"},
		},
		{
			name:  "tags are unioned",
			left:  Result{Tags: model.NewTags("a")},
			right: Result{Tags: model.NewTags("b")},
			want:  Result{Tags: model.NewTags("a", "b")},
		},
		{
			name:    "different accounts conflict",
			left:    Result{Account: "Expenses:Dining"},
			right:   Result{Account: "Expenses:Shopping"},
			wantErr: true,
		},
		{
			name:    "different flags conflict",
			left:    Result{Flag: "!"},
			right:   Result{Flag: "*"},
			wantErr: true,
		},
		{
			name:    "different payees conflict",
			left:    Result{Payee: "A"},
			right:   Result{Payee: "B"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.left.Merge(tt.right)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrMergeConflict)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Account, got.Account)
			assert.Equal(t, tt.want.Payee, got.Payee)
			assert.Equal(t, tt.want.Narration, got.Narration)
			assert.Equal(t, tt.want.Flag, got.Flag)
			assert.Equal(t, tt.want.Tags.Sorted(), got.Tags.Sorted())
		})
	}
}

func TestResult_MergeIdempotent(t *testing.T) {
	r := Result{Account: "Expenses:Dining", Payee: "Cafe", Tags: model.NewTags("food")}

	once, err := r.Merge(r)
	require.NoError(t, err)
	twice, err := once.Merge(r)
	require.NoError(t, err)

	assert.Equal(t, r.Account, twice.Account)
	assert.Equal(t, r.Payee, twice.Payee)
	assert.Equal(t, []string{"food"}, twice.Tags.Sorted())
}

func TestResult_MergeDoesNotMutateInputs(t *testing.T) {
	left := Result{Tags: model.NewTags("a")}
	right := Result{Tags: model.NewTags("b")}

	_, err := left.Merge(right)
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, left.Tags.Sorted())
	assert.Equal(t, []string{"b"}, right.Tags.Sorted())
}
