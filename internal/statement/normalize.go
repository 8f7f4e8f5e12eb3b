package statement

import (
	"strconv"
	"strings"
)

// NormalizeAmount turns a raw numeric token with ambiguous separators into a
// float64 amount. The input may contain only digits, commas and periods; the
// caller strips everything else. Indonesian statements write amounts as
// "1.234.567,89", UK-style exports as "1,234,567.89", and this function
// disambiguates both without knowing which convention it is looking at:
//
//  1. more than one period  -> periods are grouping, comma (if any) is decimal
//  2. more than one comma   -> commas are grouping
//  3. one period, one comma -> period grouping, comma decimal
//  4. one comma, no period  -> comma is the decimal point
//  5. otherwise             -> already standard decimal form
//
// A token that still fails to parse yields 0. This is a best-effort
// heuristic, not a validator, so it never returns an error.
func NormalizeAmount(token string) float64 {
	s := strings.TrimSpace(token)
	if s == "" {
		return 0
	}

	periods := strings.Count(s, ".")
	commas := strings.Count(s, ",")

	switch {
	case periods > 1:
		s = strings.ReplaceAll(s, ".", "")
		if i := strings.LastIndex(s, ","); i >= 0 {
			s = strings.ReplaceAll(s[:i], ",", "") + "." + s[i+1:]
		}
	case commas > 1:
		s = strings.ReplaceAll(s, ",", "")
	case periods == 1 && commas == 1:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case commas == 1:
		s = strings.Replace(s, ",", ".", 1)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
