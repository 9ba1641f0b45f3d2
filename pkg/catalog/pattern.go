// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package catalog

import (
	"fmt"
	"strings"
)

type patternKind int

const (
	patternAny patternKind = iota
	patternPrefix
	patternLiteral
)

// Pattern matches an uppercase hex rendering of a telegram field. "*" matches
// any value, "^4B" matches values starting with 4B, and "4*01" matches exactly
// four digits with any digit in position two.
type Pattern struct {
	kind patternKind
	text string
}

// CompilePattern validates and normalizes a pattern. The empty pattern is
// equivalent to "*".
func CompilePattern(s string) (Pattern, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch {
	case s == "" || s == "*":
		return Pattern{kind: patternAny}, nil
	case strings.HasPrefix(s, "^"):
		prefix := s[1:]
		if err := checkDigits(prefix, false); err != nil {
			return Pattern{}, err
		}
		return Pattern{kind: patternPrefix, text: prefix}, nil
	default:
		if err := checkDigits(s, true); err != nil {
			return Pattern{}, err
		}
		return Pattern{kind: patternLiteral, text: s}, nil
	}
}

func checkDigits(s string, wildcard bool) error {
	for i, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'A' && c <= 'F':
		case c == '*' && wildcard:
		default:
			return fmt.Errorf("invalid character %q at position %d in pattern %q", c, i, s)
		}
	}
	return nil
}

// String returns the normalized pattern text
func (p Pattern) String() string {
	switch p.kind {
	case patternPrefix:
		return "^" + p.text
	case patternLiteral:
		return p.text
	default:
		return "*"
	}
}

// Match reports whether value is accepted
func (p Pattern) Match(value string) bool {
	switch p.kind {
	case patternAny:
		return true
	case patternPrefix:
		return strings.HasPrefix(value, p.text)
	default:
		if len(value) != len(p.text) {
			return false
		}
		for i := 0; i < len(p.text); i++ {
			if p.text[i] != '*' && p.text[i] != value[i] {
				return false
			}
		}
		return true
	}
}

// MatchPattern compiles pattern and matches value against it. Invalid patterns
// never match.
func MatchPattern(pattern, value string) bool {
	p, err := CompilePattern(pattern)
	if err != nil {
		return false
	}
	return p.Match(strings.ToUpper(value))
}
