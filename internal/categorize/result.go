// Package categorize turns parsed records into offsetting postings by
// evaluating an ordered list of classifier rules.
package categorize

import (
	"fmt"

	"github.com/Veraticus/the-ledger-must-balance/internal/common"
	"github.com/Veraticus/the-ledger-must-balance/internal/model"
)

// Result is the classification of a record. Empty strings mean "unset".
type Result struct {
	Tags      model.Tags
	Account   string
	Payee     string
	Narration string
	Flag      string
}

// Merge combines two results. Tags are unioned; every other field must be
// equal on both sides or unset on one of them, otherwise ErrMergeConflict
// is returned.
func (r Result) Merge(other Result) (Result, error) {
	merged := Result{Tags: r.Tags.Union(other.Tags)}

	fields := []struct {
		name        string
		left, right string
		dst         *string
	}{
		{"account", r.Account, other.Account, &merged.Account},
		{"payee", r.Payee, other.Payee, &merged.Payee},
		{"narration", r.Narration, other.Narration, &merged.Narration},
		{"flag", r.Flag, other.Flag, &merged.Flag},
	}

	for _, f := range fields {
		switch {
		case f.left == "":
			*f.dst = f.right
		case f.right == "" || f.left == f.right:
			*f.dst = f.left
		default:
			return Result{}, fmt.Errorf("%w: %s %q vs %q", common.ErrMergeConflict, f.name, f.left, f.right)
		}
	}

	return merged, nil
}

// Outcome is what a classifier returns for a record it recognizes: either
// AccountOnly or Full. A nil Outcome means the classifier did not match.
type Outcome interface {
	result() Result
}

// AccountOnly is shorthand for a Result with only the account set.
type AccountOnly string

func (a AccountOnly) result() Result {
	return Result{Account: string(a)}
}

// Full carries a complete Result.
type Full Result

func (f Full) result() Result {
	return Result(f)
}

// Classifier inspects a record and returns an Outcome, or nil when it does
// not apply. Classifiers must be pure.
type Classifier func(model.Record) Outcome
