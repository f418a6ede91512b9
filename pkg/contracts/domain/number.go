package domain

import (
	"errors"
	"strconv"
	"strings"
)

// maxExactInt is the largest integer magnitude a float64 holds without rounding
const maxExactInt = 1 << 53

// Int wraps an integer cell. Integers a float64 cannot hold exactly keep
// their int64 payload so String and MarshalJSON reproduce every digit.
func Int(i int64) Value {
	if i >= -maxExactInt && i <= maxExactInt {
		return Number(float64(i))
	}
	return Value{kind: KindNumber, num: float64(i), whole: i, wide: true}
}

// ParseNumber converts a decimal literal into a number cell. It reports
// false when the literal is not a number or when storing it would change
// its digits, e.g. an integer beyond int64 or a fraction with more
// precision than a float64 carries. Callers keep such cells as text.
func ParseNumber(s string) (Value, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Value{}, false
	}

	i, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return Int(i), true
	}
	if errors.Is(err, strconv.ErrRange) {
		return Value{}, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, false
	}
	if !strings.ContainsAny(s, "eE") && f != 0 && strconv.FormatFloat(f, 'f', -1, 64) != canonicalDecimal(s) {
		return Value{}, false
	}
	return Number(f), true
}

// canonicalDecimal strips the sign noise and the insignificant zeros of a
// plain decimal literal so it compares equal to strconv's shortest form
func canonicalDecimal(s string) string {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimLeft(s, "+-")

	intPart, frac, _ := strings.Cut(s, ".")
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	frac = strings.TrimRight(frac, "0")

	out := intPart
	if frac != "" {
		out += "." + frac
	}
	if neg && out != "0" {
		out = "-" + out
	}
	return out
}
