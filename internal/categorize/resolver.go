package categorize

import (
	"fmt"

	"github.com/Veraticus/the-ledger-must-balance/internal/common"
	"github.com/Veraticus/the-ledger-must-balance/internal/model"
)

// Resolution is the outcome of resolving one record.
type Resolution struct {
	// Result is nil when no classifier matched.
	Result   *Result
	Postings []model.Posting
	// Ambiguous is set when more than one classifier matched.
	Ambiguous bool
}

// Classified reports whether a classifier matched.
func (r Resolution) Classified() bool {
	return r.Result != nil
}

// Resolver evaluates classifiers in order and builds the postings for a record.
type Resolver struct {
	classifiers []Classifier
}

// NewResolver creates a resolver for the given classifiers. A nil
// classifier is a configuration error.
func NewResolver(classifiers ...Classifier) (*Resolver, error) {
	owned := make([]Classifier, len(classifiers))
	for i, c := range classifiers {
		if c == nil {
			return nil, fmt.Errorf("%w: classifier %d is nil", common.ErrInvalidClassifier, i)
		}
		owned[i] = c
	}
	return &Resolver{classifiers: owned}, nil
}

// Len returns the number of classifiers.
func (r *Resolver) Len() int {
	if r == nil {
		return 0
	}
	return len(r.classifiers)
}

// Resolve builds the primary posting for amount against primary and, when a
// classifier matches, an offsetting posting for the first match. Further
// matches do not add postings; they flag the result for review.
func (r *Resolver) Resolve(record model.Record, primary string, amount model.Amount) (Resolution, error) {
	if err := model.ValidateAccount(primary); err != nil {
		return Resolution{}, err
	}

	res := Resolution{
		Postings: []model.Posting{model.NewPosting(primary, amount)},
	}

	if r == nil {
		return res, nil
	}

	for _, classify := range r.classifiers {
		outcome := classify(record)
		if outcome == nil {
			continue
		}

		if res.Result != nil {
			res.Result.Flag = model.FlagWarning
			res.Ambiguous = true
			break
		}

		result := outcome.result()
		if err := model.ValidateAccount(result.Account); err != nil {
			return Resolution{}, err
		}

		res.Result = &result
		res.Postings = append(res.Postings, model.NewPosting(result.Account, amount.Neg()))
	}

	return res, nil
}

// Classify returns the result of the first matching classifier, or nil when
// none match.
func (r *Resolver) Classify(record model.Record) (*Result, error) {
	if r == nil {
		return nil, nil
	}
	for _, classify := range r.classifiers {
		outcome := classify(record)
		if outcome == nil {
			continue
		}
		result := outcome.result()
		if err := model.ValidateAccount(result.Account); err != nil {
			return nil, err
		}
		return &result, nil
	}
	return nil, nil
}
