package model

import (
	"sort"
	"time"
)

// Transaction flags.
const (
	FlagOkay    = "*"
	FlagWarning = "!"
)

// Standard metadata keys set on every imported transaction.
const (
	MetaFilename = "filename"
	MetaLineno   = "lineno"
)

// Posting is one account/amount leg of a transaction.
type Posting struct {
	Price   *Amount
	Account string
	Flag    string
	Units   Amount
}

// NewPosting creates a posting with no flag and no price.
func NewPosting(account string, units Amount) Posting {
	return Posting{Account: account, Units: units}
}

// Tags is an immutable-by-convention set of tag names.
type Tags map[string]struct{}

// NewTags builds a tag set, ignoring empty names.
func NewTags(names ...string) Tags {
	tags := make(Tags, len(names))
	for _, n := range names {
		if n != "" {
			tags[n] = struct{}{}
		}
	}
	return tags
}

// Union returns a new set holding the tags of both sets.
func (t Tags) Union(other Tags) Tags {
	out := make(Tags, len(t)+len(other))
	for k := range t {
		out[k] = struct{}{}
	}
	for k := range other {
		out[k] = struct{}{}
	}
	return out
}

// Has reports whether the tag is present.
func (t Tags) Has(name string) bool {
	_, ok := t[name]
	return ok
}

// Sorted returns the tags in lexical order.
func (t Tags) Sorted() []string {
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Transaction is a dated, balanced (or flagged) set of postings.
type Transaction struct {
	Date      time.Time
	Meta      map[string]any
	Tags      Tags
	Flag      string
	Payee     string
	Narration string
	Links     []string
	Postings  []Posting
}

// NewMeta creates metadata pointing at the source file and line, merged
// with extra entries.
func NewMeta(filename string, lineno int, extra map[string]any) map[string]any {
	meta := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		meta[k] = v
	}
	meta[MetaFilename] = filename
	meta[MetaLineno] = lineno
	return meta
}

// SortByDate orders transactions by date, keeping file order for ties.
func SortByDate(txns []Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		return txns[i].Date.Before(txns[j].Date)
	})
}
