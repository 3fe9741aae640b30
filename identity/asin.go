package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	asinRegex       = regexp.MustCompile(`^[A-Z0-9]{10}$`)
)

// CleanASIN strips embedded tabs, newlines and spaces and upper-cases the
// identifier. Catalog lists copied out of spreadsheets often carry a leading tab.
func CleanASIN(asin string) string {
	return strings.ToUpper(whitespaceRegex.ReplaceAllString(asin, ""))
}

// ValidASIN reports whether asin is a cleaned 10-character marketplace id
func ValidASIN(asin string) bool {
	return asinRegex.MatchString(asin)
}

// SameASIN compares two identifiers after cleaning
func SameASIN(a, b string) bool {
	return CleanASIN(a) == CleanASIN(b)
}

// ContentHash returns a short hex digest used to address raw payload copies
func ContentHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}
