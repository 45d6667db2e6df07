package credentials

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeEmail case-folds and trims an email so that A@x.com and a@x.com share one key.
func NormalizeEmail(email string) string {
	// cases.Caser keeps state and is not safe for concurrent use.
	return cases.Fold().String(strings.TrimSpace(email))
}
