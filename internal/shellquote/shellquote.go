// Package shellquote renders strings as POSIX shell tokens. It backs the
// Job Dispatcher's script synthesis (spec §4.3).
package shellquote

import "strings"

// DoubleQuote renders s for use inside a double-quoted shell string (an
// `export NAME="..."` value): backslash-escape `"` and `$` only, per
// spec §4.3 step 2. Backslashes themselves are left alone — the dispatcher
// targets environment variable values, not arbitrary shell metacharacters.
func DoubleQuote(s string) string {
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, `$`, `\$`)
	return s
}

// Quote renders s as a single POSIX shell word, safe to splice into a
// command line regardless of its contents (spaces, quotes, `$`,
// backticks, globs). Uses single quotes, since nothing inside a
// single-quoted string needs escaping except the single quote itself,
// which is closed, escaped, and reopened: ' -> '\''.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if isSafeBareword(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// QuoteArgs joins command/args into a single shell command line with each
// token individually quoted.
func QuoteArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = Quote(a)
	}
	return strings.Join(quoted, " ")
}

func isSafeBareword(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.' || r == '/' || r == ':' || r == '=':
		default:
			return false
		}
	}
	return true
}
