package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Veraticus/the-ledger-must-balance/internal/common"
)

// Root account types accepted by the ledger.
var AccountTypes = []string{"Assets", "Liabilities", "Equity", "Income", "Expenses"}

// Each component after the root starts with an uppercase letter or digit and
// continues with letters, digits or dashes. At least one component is required.
var accountRegex = regexp.MustCompile(
	`^(?:` + strings.Join(AccountTypes, "|") + `)(?::[\p{Lu}\p{Nd}][\p{L}\p{Nd}\-]*)+$`)

// IsValidAccount reports whether name is a syntactically valid account.
func IsValidAccount(name string) bool {
	return accountRegex.MatchString(name)
}

// ValidateAccount returns ErrInvalidAccount when name is not a valid account.
func ValidateAccount(name string) error {
	if !IsValidAccount(name) {
		return fmt.Errorf("%w: %q is not a valid account", common.ErrInvalidAccount, name)
	}
	return nil
}

// AccountComponents splits an account into its components.
func AccountComponents(name string) []string {
	return strings.Split(name, ":")
}
