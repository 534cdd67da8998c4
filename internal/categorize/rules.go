package categorize

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/Veraticus/the-ledger-must-balance/internal/common"
	"github.com/Veraticus/the-ledger-must-balance/internal/model"
)

// DefaultField is the record field inspected when a rule names none.
const DefaultField = "description"

// Option customizes the Result produced by a matching classifier.
type Option func(*Result)

// WithPayee overrides the transaction payee.
func WithPayee(payee string) Option {
	return func(r *Result) { r.Payee = payee }
}

// WithNarration overrides the transaction narration.
func WithNarration(narration string) Option {
	return func(r *Result) { r.Narration = narration }
}

// WithTags adds tags to the transaction.
func WithTags(tags ...string) Option {
	return func(r *Result) { r.Tags = r.Tags.Union(model.NewTags(tags...)) }
}

// WithFlag sets the transaction flag.
func WithFlag(flag string) Option {
	return func(r *Result) { r.Flag = flag }
}

// Match returns a classifier that yields account when pattern is found,
// case-insensitively, in the record's description.
func Match(pattern, account string, opts ...Option) (Classifier, error) {
	return MatchField(DefaultField, pattern, account, opts...)
}

// MustMatch is like Match but panics on invalid input. Intended for
// classifiers declared in code.
func MustMatch(pattern, account string, opts ...Option) Classifier {
	c, err := Match(pattern, account, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// MatchField returns a classifier that yields account when pattern is found,
// case-insensitively, in the given record field. The account is validated
// up front so a bad rule fails when it is built, not when it first matches.
func MatchField(field, pattern, account string, opts ...Option) (Classifier, error) {
	if err := model.ValidateAccount(account); err != nil {
		return nil, err
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: pattern %q: %w", common.ErrInvalidClassifier, pattern, err)
	}

	result := Result{Account: account}
	for _, opt := range opts {
		opt(&result)
	}
	if result.Flag != "" && utf8.RuneCountInString(result.Flag) != 1 {
		return nil, fmt.Errorf("%w: flag %q must be a single character", common.ErrInvalidClassifier, result.Flag)
	}

	if len(opts) == 0 {
		return func(rec model.Record) Outcome {
			if re.MatchString(rec.Value(field)) {
				return AccountOnly(account)
			}
			return nil
		}, nil
	}

	return func(rec model.Record) Outcome {
		if re.MatchString(rec.Value(field)) {
			return Full(result)
		}
		return nil
	}, nil
}

// Rule is the configuration form of a classifier.
type Rule struct {
	Field     string   `mapstructure:"field"`
	Pattern   string   `mapstructure:"pattern"`
	Account   string   `mapstructure:"account"`
	Payee     string   `mapstructure:"payee"`
	Narration string   `mapstructure:"narration"`
	Flag      string   `mapstructure:"flag"`
	Tags      []string `mapstructure:"tags"`
}

// Compile turns the rule into a classifier.
func (r Rule) Compile() (Classifier, error) {
	if r.Pattern == "" {
		return nil, fmt.Errorf("%w: rule for %q has no pattern", common.ErrInvalidClassifier, r.Account)
	}

	field := r.Field
	if field == "" {
		field = DefaultField
	}

	var opts []Option
	if r.Payee != "" {
		opts = append(opts, WithPayee(r.Payee))
	}
	if r.Narration != "" {
		opts = append(opts, WithNarration(r.Narration))
	}
	if len(r.Tags) > 0 {
		opts = append(opts, WithTags(r.Tags...))
	}
	if r.Flag != "" {
		opts = append(opts, WithFlag(r.Flag))
	}

	return MatchField(field, r.Pattern, r.Account, opts...)
}

// CompileRules compiles rules in order.
func CompileRules(rules []Rule) ([]Classifier, error) {
	classifiers := make([]Classifier, 0, len(rules))
	for i, rule := range rules {
		c, err := rule.Compile()
		if err != nil {
			return nil, fmt.Errorf("categorizer %d: %w", i+1, err)
		}
		classifiers = append(classifiers, c)
	}
	return classifiers, nil
}

// NewResolverFromRules compiles rules and wraps them in a resolver.
func NewResolverFromRules(rules []Rule) (*Resolver, error) {
	classifiers, err := CompileRules(rules)
	if err != nil {
		return nil, err
	}
	return NewResolver(classifiers...)
}
