package storedb

import (
	"regexp"
	"strings"
)

// The validator is defense in depth, not the primary injection defense.
// Parameter binding is. The rules below are heuristic by design: they catch
// the common destructive and injection idioms, they do not try to parse SQL.

type denyRule struct {
	name string
	re   *regexp.Regexp
}

var denyRules = []denyRule{
	{"structural_ddl", regexp.MustCompile(`(?i)\b(DROP|ALTER|CREATE|TRUNCATE|RENAME)\s`)},
	{"file_access", regexp.MustCompile(`(?i)\b(INTO\s+(OUTFILE|DUMPFILE)\b|LOAD_FILE\s*\()`)},
	{"command_exec", regexp.MustCompile(`(?i)\b(XP_CMDSHELL|SYS_EXEC|SYS_EVAL|SYS_SHELL)\b`)},
	{"stacked_statement", regexp.MustCompile(`(?i);\s*(DROP|DELETE|TRUNCATE|ALTER|UPDATE|INSERT|CREATE|GRANT|REVOKE)\b`)},
	{"boolean_injection", regexp.MustCompile(`(?i)\bOR\s+('1'\s*=\s*'1'|1\s*=\s*1)`)},
	{"union_injection", regexp.MustCompile(`(?i)\bUNION\s+(ALL\s+)?SELECT\b`)},
}

// validateQuery rejects statements matching any deny rule. The statement is
// normalized first (comments stripped, whitespace collapsed) so the rules
// cannot be dodged with spacing or block comments; a line comment marker is
// itself a rejection since it can truncate the logically intended query.
func validateQuery(query string) *ValidationError {
	normalized, lineComment := normalizeQuery(query)
	if lineComment {
		return &ValidationError{Rule: "comment_truncation", Query: query}
	}
	for _, r := range denyRules {
		if r.re.MatchString(normalized) {
			return &ValidationError{Rule: r.name, Query: query}
		}
	}
	return nil
}

// normalizeQuery strips comments and collapses runs of whitespace.
// It reports whether a line comment ("--" or "#") occurred outside a string
// literal. Quote handling mirrors the small scanners used elsewhere in this
// package: single and double quotes toggle, no escape-sequence parsing.
func normalizeQuery(query string) (string, bool) {
	var b strings.Builder
	b.Grow(len(query))
	inSingle, inDouble := false, false
	lineComment := false
	i := 0
	for i < len(query) {
		ch := query[i]
		switch {
		case ch == '\'' && !inDouble:
			inSingle = !inSingle
		case ch == '"' && !inSingle:
			inDouble = !inDouble
		case !inSingle && !inDouble:
			// block comment
			if ch == '/' && i+1 < len(query) && query[i+1] == '*' {
				end := strings.Index(query[i+2:], "*/")
				if end < 0 {
					i = len(query)
				} else {
					i += 2 + end + 2
				}
				b.WriteByte(' ')
				continue
			}
			// line comment: "-- " per MySQL, "#" anywhere
			if ch == '#' || (ch == '-' && i+1 < len(query) && query[i+1] == '-') {
				lineComment = true
				nl := strings.IndexByte(query[i:], '\n')
				if nl < 0 {
					i = len(query)
				} else {
					i += nl
				}
				continue
			}
		}
		b.WriteByte(ch)
		i++
	}

	collapsed := strings.Join(strings.Fields(b.String()), " ")
	return collapsed, lineComment
}

// isReadOnly reports whether the statement is SELECT-shaped and therefore
// eligible for result caching.
func isReadOnly(query string) bool {
	trimmed := strings.TrimSpace(query)
	if len(trimmed) < 6 {
		return false
	}
	return strings.EqualFold(trimmed[:6], "SELECT")
}
