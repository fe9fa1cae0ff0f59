package pgconst

import "regexp"

// MaxIdentifierLength is the maximum length in bytes of a PostgreSQL
// identifier, database names included.
const MaxIdentifierLength = 63

// identifierRegex matches unquoted identifiers we generate: a letter or
// underscore followed by letters, digits and underscores.
var identifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// IsValidIdentifier reports whether s can be used as a database name
// without quoting surprises.
func IsValidIdentifier(s string) bool {
	if len(s) == 0 || len(s) > MaxIdentifierLength {
		return false
	}
	return identifierRegex.MatchString(s)
}
