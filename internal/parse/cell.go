package parse

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	spaceRe = regexp.MustCompile(`\s+`)
	dateRe  = regexp.MustCompile(`^(\d{4})\s*[-/.年]\s*(\d{1,2})\s*[-/.月]\s*(\d{1,2})\s*日?$`)
)

// TicketNumber parses a spreadsheet or path value into a positive ticket number.
// Spreadsheet cells may carry a trailing ".0" or surrounding whitespace.
func TicketNumber(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty ticket number")
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("ticket number must be positive: %q", raw)
		}
		return n, nil
	}

	// 12.0 / 1.2e1 style numeric cells
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid ticket number: %q", raw)
	}
	if f != math.Trunc(f) || f <= 0 || f > math.MaxInt64/2 {
		return 0, fmt.Errorf("ticket number must be a positive integer: %q", raw)
	}
	return int64(f), nil
}

// Counter parses an administrative counter value; zero is allowed.
func Counter(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", raw)
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative: %q", raw)
	}
	return n, nil
}

// Text collapses internal whitespace runs and trims the value.
func Text(raw string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(raw, " "))
}

// Date rewrites common calendar spellings (2025/1/5, 2025.01.05, 2025年1月5日)
// to YYYY-MM-DD. Values it does not recognize are returned trimmed and unchanged.
func Date(raw string) string {
	s := strings.TrimSpace(raw)
	m := dateRe.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])

	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	// Reject rollovers such as 2025-02-30.
	if t.Year() != y || int(t.Month()) != mo || t.Day() != d {
		return s
	}
	return t.Format("2006-01-02")
}
