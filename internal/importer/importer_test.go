package importer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/the-ledger-must-balance/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{input: "2024-01-15", want: day(2024, 1, 15)},
		{input: "01/15/2024", want: day(2024, 1, 15)},
		{input: "1/5/2024", want: day(2024, 1, 5)},
		{input: "1/5/24", want: day(2024, 1, 5)},
		{input: "Jan 5, 2024", want: day(2024, 1, 5)},
		{input: "  2024-01-15  ", want: day(2024, 1, 15)},
		{input: "2024-01-15T23:30:00-05:00", want: day(2024, 1, 15)},
		{input: "20240115", want: day(2024, 1, 15)},
		{input: "yesterday", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, common.ErrInvalidDate)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "export.csv", "a,b\n1,2\n")

	f := NewFile(path)
	assert.Equal(t, path, f.Path())
	assert.Equal(t, "export.csv", f.Base())
	assert.Equal(t, "text/csv", f.MimeType())

	contents, err := f.Contents()
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", contents)

	// Contents are cached after the first read.
	require.NoError(t, os.Remove(path))
	contents, err = f.Contents()
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", contents)

	missing := NewFile(filepath.Join(dir, "missing.csv"))
	_, err = missing.Contents()
	assert.Error(t, err)
}

func TestFile_MimeType(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "statement.OFX", content: "<OFX>", want: "application/x-ofx"},
		{name: "download.qfx", content: "<OFX>", want: "application/x-ofx"},
		{name: "claims.json", content: "{}", want: "application/json"},
		{name: "noextension", content: "plain words", want: "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFile(writeFile(t, dir, tt.name, tt.content))
			assert.Equal(t, tt.want, f.MimeType())
		})
	}
}

func TestNewMatcher(t *testing.T) {
	_, err := NewMatcher("extension", `\.csv$`)
	require.ErrorIs(t, err, common.ErrInvalidConfig)

	_, err = NewMatcher(MatchContent, `(`)
	require.ErrorIs(t, err, common.ErrInvalidConfig)

	dir := t.TempDir()
	f := NewFile(writeFile(t, dir, "ally-2024.csv", "Date,Amount\n"))

	tests := []struct {
		kind    MatcherKind
		pattern string
		want    bool
	}{
		{MatchMime, `text/csv`, true},
		{MatchMime, `application/json`, false},
		{MatchFilename, `ally-\d+\.csv$`, true},
		{MatchFilename, `chase`, false},
		{MatchContent, `^Date,Amount`, true},
		{MatchContent, `Description`, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+" "+tt.pattern, func(t *testing.T) {
			m, err := NewMatcher(tt.kind, tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Matches(f))
		})
	}
}

func TestIdentified(t *testing.T) {
	dir := t.TempDir()
	allyFile := NewFile(writeFile(t, dir, "ally.csv", allyCSV))
	chaseFile := NewFile(writeFile(t, dir, "chase.csv", chaseCSV))
	other := NewFile(writeFile(t, dir, "notes.txt", "nothing to see"))

	ally, err := NewBankAccount(BankConfig{Account: "Assets:Ally:Checking", Layout: AllyLayout})
	require.NoError(t, err)
	chase, err := NewBankAccount(BankConfig{Account: "Liabilities:Chase:Sapphire", Layout: ChaseLayout})
	require.NoError(t, err)
	onlyNamed, err := NewBankAccount(BankConfig{
		Account: "Assets:Ally:Savings",
		Layout:  AllyLayout,
		Options: Options{Matchers: []Matcher{mustMatcher(MatchFilename, `savings`)}},
	})
	require.NoError(t, err)

	importers := []Importer{ally, chase, onlyNamed}

	assert.Equal(t, []Importer{ally}, Identified(importers, allyFile))
	assert.Equal(t, []Importer{chase}, Identified(importers, chaseFile))
	assert.Empty(t, Identified(importers, other))
}

func TestSelect(t *testing.T) {
	dir := t.TempDir()
	allyFile := NewFile(writeFile(t, dir, "ally.csv", allyCSV))
	other := NewFile(writeFile(t, dir, "notes.txt", "nothing to see"))

	checking, err := NewBankAccount(BankConfig{Account: "Assets:Ally:Checking", Layout: AllyLayout})
	require.NoError(t, err)
	savings, err := NewBankAccount(BankConfig{
		Account: "Assets:Ally:Savings",
		Layout:  AllyLayout,
		Options: Options{Name: "ally-savings"},
	})
	require.NoError(t, err)

	imp, err := Select([]Importer{checking}, allyFile)
	require.NoError(t, err)
	assert.Same(t, checking, imp)

	_, err = Select([]Importer{checking}, other)
	require.ErrorIs(t, err, ErrUnidentified)

	_, err = Select([]Importer{checking, savings}, allyFile)
	require.ErrorIs(t, err, ErrAmbiguous)
	assert.Contains(t, err.Error(), "ally-savings")
}

func TestBase_IdentifyWithoutMatchers(t *testing.T) {
	b, err := newBase(Options{}, "none", "", "Assets:Cash")
	require.NoError(t, err)

	f := NewFile(writeFile(t, t.TempDir(), "any.csv", "x"))
	assert.False(t, b.Identify(f))
}

func TestNewBase(t *testing.T) {
	b, err := newBase(Options{Prefix: "Mine", Filing: "Assets:Docs"}, "ally", "Ally", "Assets:Ally:Checking")
	require.NoError(t, err)
	assert.Equal(t, "ally", b.Name())
	assert.Equal(t, "Assets:Docs", b.FileAccount(nil))
	assert.Equal(t, "Mine.export.csv", b.FileName(NewFile("/tmp/export.csv")))

	_, err = newBase(Options{}, "ally", "Ally", "checking")
	require.ErrorIs(t, err, common.ErrInvalidAccount)

	plain, err := newBase(Options{}, "csv", "", "Assets:Cash")
	require.NoError(t, err)
	assert.Equal(t, "export.csv", plain.FileName(NewFile("/tmp/export.csv")))
}

func TestDestination(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "export.csv", allyCSV)

	ally, err := NewBankAccount(BankConfig{Account: "Assets:Ally:Checking", Layout: AllyLayout})
	require.NoError(t, err)

	dst, err := Destination(ally, NewFile(path), "/docs")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/docs", "Assets", "Ally", "Checking", "2024-01-15.Ally.export.csv"), dst)
}

func TestDestination_FallsBackToModTime(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "claims.csv", uhcHeader+"\n")
	mtime := time.Date(2023, 6, 1, 12, 0, 0, 0, time.Local)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	uhc, err := NewUHC(UHCConfig{})
	require.NoError(t, err)

	dst, err := Destination(uhc, NewFile(path), "/docs")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/docs", "Income", "Health-Insurance", "Reimbursements", "2023-06-01.UHC.claims.csv"), dst)
}

func TestMove(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "export.csv", "data")
	dst := filepath.Join(dir, "filed", "Assets", "Cash", "2024-01-15.export.csv")

	require.NoError(t, Move(src, dst))

	_, err := os.Stat(src)
	assert.True(t, os.IsNotExist(err))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))

	again := writeFile(t, dir, "export.csv", "newer")
	err = Move(again, dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	data, err = os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}
