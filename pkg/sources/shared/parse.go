package shared

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ParseFirstFloat finds the first float match in the string using the provided regex.
// The regex must have at least one capture group.
func ParseFirstFloat(re *regexp.Regexp, s string) float64 {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0
	}
	var v float64
	fmt.Sscanf(m[1], "%f", &v)
	return v
}

// ParseMoney parses a dollar amount like "$3.09", "3.09" or "3.099 USD"
// into a float. Returns 0 on malformed input.
func ParseMoney(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSuffix(s, " USD")
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
