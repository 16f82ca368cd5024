package document

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const matchAllPattern = ".*"

// patternOptions makes matching case-insensitive and lets . cross newlines,
// so tokens are found on any line of a multi-line value.
const patternOptions = "is"

// Tokenize splits free text on whitespace. Runs of separators never produce empty tokens.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// TokenPattern builds a case-insensitive, dotall regular expression that
// matches a value containing every token of text, in any order and at any
// position, newlines included.
// Tokens are quoted so they match literally. Text without tokens matches everything.
func TokenPattern(text string) primitive.Regex {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return primitive.Regex{Pattern: matchAllPattern, Options: patternOptions}
	}

	var b strings.Builder
	b.WriteString("^")
	for _, token := range tokens {
		b.WriteString("(?=.*")
		b.WriteString(regexp.QuoteMeta(token))
		b.WriteString(")")
	}
	b.WriteString(".*$")
	return primitive.Regex{Pattern: b.String(), Options: patternOptions}
}

// MatchNothing returns a filter no document satisfies.
func MatchNothing() Filter {
	return Filter{"$expr": false}
}

// BuildTokenizedFilter returns {$or: [{field: pattern}, ...]} with one entry per
// searchable field. With no fields the $or list is empty, which MongoDB rejects
// with a BadValue error; use searchFilter when the field set may be empty.
func BuildTokenizedFilter(text string, fields []string) Filter {
	pattern := TokenPattern(text)
	clauses := make([]interface{}, 0, len(fields))
	for _, field := range fields {
		clauses = append(clauses, Filter{field: pattern})
	}
	return Filter{"$or": clauses}
}

// searchFilter is BuildTokenizedFilter with the empty field set mapped to MatchNothing.
func searchFilter(text string, fields []string) Filter {
	if len(fields) == 0 {
		return MatchNothing()
	}
	return BuildTokenizedFilter(text, fields)
}
