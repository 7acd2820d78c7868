// Package normalize canonicalizes company names so that every producer in the
// system compares the same key.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// legalSuffixRe matches one trailing legal-entity suffix as a whole word, with an
// optional trailing period. The name is already upper-cased when it is applied.
var legalSuffixRe = regexp.MustCompile(`(?:^|[\s,])(?:INCORPORATED|INC|LLC|LLP|LP|CORPORATION|CORP|CO|LIMITED|LTD|PLC)\.?$`)

// Name standardizes a company name for matching:
//  1. Trimming whitespace
//  2. Upper-casing (Unicode aware)
//  3. Removing trailing legal suffixes (Inc, LLC, Corp, Co, Ltd, LP, LLP, PLC, ...)
//  4. Dropping everything except letters, digits, whitespace and hyphens
//  5. Collapsing whitespace runs into single spaces
//
// The steps repeat until the output is stable, so Name(Name(x)) == Name(x).
// Empty or whitespace-only input yields "".
func Name(name string) string {
	out := strings.TrimSpace(name)
	for {
		next := pass(out)
		if next == out {
			return next
		}
		out = next
	}
}

func pass(name string) string {
	if name == "" {
		return ""
	}
	name = cases.Upper(language.Und).String(name)

	for {
		loc := legalSuffixRe.FindStringIndex(name)
		if loc == nil {
			break
		}
		rest := strings.TrimSpace(name[:loc[0]])
		// A bare suffix ("LLC") is the whole name, not a suffix.
		if strings.TrimFunc(rest, isNoise) == "" {
			break
		}
		name = rest
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// isNoise reports characters that are removed by the character filter.
func isNoise(r rune) bool {
	return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-')
}
