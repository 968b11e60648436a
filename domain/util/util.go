package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// AmountString formats a token amount with thousand separators and at most
// six fractional digits.
func AmountString(amount float64, symbol string) string {
	s := humanize.CommafWithDigits(amount, 6)
	if symbol == "" {
		return s
	}
	return fmt.Sprintf("%v %v", s, symbol)
}

// TotalTimeString renders the time between two unix timestamps, e.g. "3m 12s".
// Missing or reversed timestamps render as an empty string.
func TotalTimeString(from, to int64) string {
	if from <= 0 || to <= 0 || to < from {
		return ""
	}
	d := time.Duration(to-from) * time.Second
	if d == 0 {
		return "0s"
	}

	parts := make([]string, 0, 4)
	days := int64(d / (24 * time.Hour))
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%vd", humanize.Comma(days)))
		d -= time.Duration(days) * 24 * time.Hour
	}
	for _, unit := range []struct {
		size   time.Duration
		suffix string
	}{
		{time.Hour, "h"},
		{time.Minute, "m"},
		{time.Second, "s"},
	} {
		if n := d / unit.size; n > 0 {
			parts = append(parts, fmt.Sprintf("%d%v", n, unit.suffix))
			d -= n * unit.size
		}
	}
	return strings.Join(parts, " ")
}

// Ellipse shortens long strings such as hashes to head...tail.
func Ellipse(s string, keep int) string {
	if keep <= 0 || len(s) <= 2*keep+3 {
		return s
	}
	return s[:keep] + "..." + s[len(s)-keep:]
}

// Truncate caps s at max characters.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
