// Package importer converts bank, brokerage, e-commerce and insurance export
// files into ledger transactions.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/the-ledger-must-balance/internal/categorize"
	"github.com/Veraticus/the-ledger-must-balance/internal/common"
	"github.com/Veraticus/the-ledger-must-balance/internal/csvsource"
	"github.com/Veraticus/the-ledger-must-balance/internal/model"
)

// Importer recognizes one kind of export file and turns it into transactions.
type Importer interface {
	// Name identifies the importer in logs and CLI output.
	Name() string
	// Identify reports whether the file is one this importer handles.
	Identify(f *File) bool
	// Extract returns the file's transactions sorted by date.
	Extract(ctx context.Context, f *File) ([]model.Transaction, error)
	// FileAccount is the account whose document folder the file belongs in.
	FileAccount(f *File) string
	// FileDate is the date used when filing the document, or the zero time
	// when the importer cannot tell.
	FileDate(f *File) (time.Time, error)
	// FileName is the name the document is filed under, without date.
	FileName(f *File) string
}

// File is a source file whose contents are read at most once.
type File struct {
	path     string
	contents string
	err      error
	once     sync.Once
}

// NewFile creates a file handle for path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the path the file was opened with.
func (f *File) Path() string {
	return f.path
}

// Base returns the file's base name.
func (f *File) Base() string {
	return filepath.Base(f.path)
}

// Contents returns the full file contents.
func (f *File) Contents() (string, error) {
	f.once.Do(func() {
		data, err := os.ReadFile(f.path)
		if err != nil {
			f.err = fmt.Errorf("failed to read %s: %w", f.path, err)
			return
		}
		f.contents = string(data)
	})
	return f.contents, f.err
}

var extensionTypes = map[string]string{
	".csv":  "text/csv",
	".json": "application/json",
	".ofx":  "application/x-ofx",
	".qfx":  "application/x-ofx",
}

// MimeType guesses the media type from the extension, falling back to
// content sniffing.
func (f *File) MimeType() string {
	ext := strings.ToLower(filepath.Ext(f.path))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if media, _, err := mime.ParseMediaType(t); err == nil {
			return media
		}
	}

	contents, err := f.Contents()
	if err != nil {
		return ""
	}
	media, _, err := mime.ParseMediaType(http.DetectContentType([]byte(contents)))
	if err != nil {
		return ""
	}
	return media
}

// MatcherKind selects what a matcher inspects.
type MatcherKind string

// Matcher kinds.
const (
	MatchMime     MatcherKind = "mime"
	MatchFilename MatcherKind = "filename"
	MatchContent  MatcherKind = "content"
)

// Matcher is one identification rule.
type Matcher struct {
	re   *regexp.Regexp
	Kind MatcherKind
}

// NewMatcher compiles a matcher.
func NewMatcher(kind MatcherKind, pattern string) (Matcher, error) {
	switch kind {
	case MatchMime, MatchFilename, MatchContent:
	default:
		return Matcher{}, fmt.Errorf("%w: unknown matcher kind %q", common.ErrInvalidConfig, kind)
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return Matcher{}, fmt.Errorf("%w: matcher pattern %q: %w", common.ErrInvalidConfig, pattern, err)
	}
	return Matcher{Kind: kind, re: re}, nil
}

func mustMatcher(kind MatcherKind, pattern string) Matcher {
	m, err := NewMatcher(kind, pattern)
	if err != nil {
		panic(err)
	}
	return m
}

// Matches reports whether the file satisfies the matcher.
func (m Matcher) Matches(f *File) bool {
	switch m.Kind {
	case MatchMime:
		return m.re.MatchString(f.MimeType())
	case MatchFilename:
		return m.re.MatchString(f.Path())
	case MatchContent:
		contents, err := f.Contents()
		if err != nil {
			slog.Debug("Cannot read file for identification", "file", f.Path(), "error", err)
			return false
		}
		return m.re.MatchString(contents)
	}
	return false
}

// Options are settings shared by every importer.
type Options struct {
	// Name defaults to the importer type.
	Name string
	// Prefix is prepended to filed document names.
	Prefix string
	// Filing overrides the account documents are filed under.
	Filing   string
	Tags     []string
	Matchers []Matcher
	// Debug logs every parsed row.
	Debug bool
}

// base carries identification, filing and logging shared by importers.
type base struct {
	tags     model.Tags
	name     string
	prefix   string
	filing   string
	matchers []Matcher
	debug    bool
}

func newBase(opts Options, defaultName, defaultPrefix, filing string, extra ...Matcher) (base, error) {
	if opts.Filing != "" {
		filing = opts.Filing
	}
	if err := model.ValidateAccount(filing); err != nil {
		return base{}, fmt.Errorf("filing account: %w", err)
	}

	name := opts.Name
	if name == "" {
		name = defaultName
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}

	matchers := make([]Matcher, 0, len(opts.Matchers)+len(extra))
	matchers = append(matchers, opts.Matchers...)
	matchers = append(matchers, extra...)

	return base{
		name:     name,
		prefix:   prefix,
		filing:   filing,
		tags:     model.NewTags(opts.Tags...),
		matchers: matchers,
		debug:    opts.Debug,
	}, nil
}

func (b *base) Name() string {
	return b.name
}

// Identify requires every matcher to match. An importer without matchers
// never identifies a file.
func (b *base) Identify(f *File) bool {
	if len(b.matchers) == 0 {
		return false
	}
	for _, m := range b.matchers {
		if !m.Matches(f) {
			return false
		}
	}
	return true
}

func (b *base) FileAccount(*File) string {
	return b.filing
}

func (b *base) FileName(f *File) string {
	if b.prefix == "" {
		return f.Base()
	}
	return b.prefix + "." + f.Base()
}

func (b *base) logRow(number int, rec model.Record) {
	if b.debug {
		common.LogDebug("Parsed row", common.Fields{
			"importer": b.name,
			"row":      number,
			"record":   rec.String(),
		})
	}
}

func (b *base) warnAmbiguous(res categorize.Resolution, number int) {
	if res.Ambiguous {
		slog.Warn("Multiple categorizers matched, flagging for review",
			"importer", b.name,
			"row", number,
			"account", res.Result.Account)
	}
}

// Identified returns the importers that accept the file, in order.
func Identified(importers []Importer, f *File) []Importer {
	var matched []Importer
	for _, imp := range importers {
		if imp.Identify(f) {
			matched = append(matched, imp)
		}
	}
	return matched
}

// Identification errors.
var (
	ErrUnidentified = errors.New("no importer recognizes the file")
	ErrAmbiguous    = errors.New("file recognized by more than one importer")
)

// Select returns the single importer that accepts the file.
func Select(importers []Importer, f *File) (Importer, error) {
	matched := Identified(importers, f)
	switch len(matched) {
	case 0:
		return nil, fmt.Errorf("%s: %w", f.Path(), ErrUnidentified)
	case 1:
		return matched[0], nil
	}

	names := make([]string, len(matched))
	for i, imp := range matched {
		names[i] = imp.Name()
	}
	return nil, fmt.Errorf("%s: %w: %s", f.Path(), ErrAmbiguous, strings.Join(names, ", "))
}

// latestRowDate is the newest date found in field across the file's rows.
func latestRowDate(f *File, layout csvsource.Layout, field string) (time.Time, error) {
	rows, err := csvsource.ReadFile(f.Path(), layout)
	if err != nil {
		return time.Time{}, err
	}

	dates := make([]time.Time, 0, len(rows))
	for _, row := range rows {
		d, err := ParseDate(row.Record.Value(field))
		if err != nil {
			return time.Time{}, fmt.Errorf("row %d: %w", row.Number, err)
		}
		dates = append(dates, d)
	}
	return latest(dates), nil
}

func latest(dates []time.Time) time.Time {
	var newest time.Time
	for _, d := range dates {
		if d.After(newest) {
			newest = d
		}
	}
	return newest
}
