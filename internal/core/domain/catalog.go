package domain

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

type Material struct {
	ID   int64
	Name string
}

type Person struct {
	ID   int64
	Name string
}

// NormalizeName trims surrounding whitespace and applies NFC so that
// precomposed and decomposed spellings key the same stock row.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
