package spc

import (
	"math"
	"strconv"
	"strings"
)

// ParseValues turns the comma-separated text entered for one group into its
// measurements. Whitespace around tokens is ignored and empty tokens are
// dropped, so "1, 2,,3 " yields [1 2 3]. A single bad token rejects the
// whole input; the group is never partially accepted.
func ParseValues(raw string, declaredCount int) ([]float64, error) {
	var values []float64
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &ParseError{Token: tok, Index: len(values)}
		}
		values = append(values, v)
	}

	if declaredCount < 1 || len(values) != declaredCount {
		return nil, &CountMismatchError{Declared: declaredCount, Got: len(values)}
	}
	return values, nil
}

// FormatValues is the inverse of ParseValues: it renders values as the
// comma-separated text a user would type.
func FormatValues(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ", ")
}
