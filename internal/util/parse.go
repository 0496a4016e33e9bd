package util

import (
	"strconv"
	"strings"
)

// ParsePrice reads the amount following the first '$' up to the next space.
// Thousands separators are accepted. ok is false when no amount can be read.
func ParsePrice(s string) (price float64, ok bool) {
	_, after, found := strings.Cut(strings.TrimSpace(s), "$")
	if !found {
		return 0, false
	}
	amount, _, _ := strings.Cut(after, " ")
	amount = strings.ReplaceAll(strings.TrimSpace(amount), ",", "")
	v, err := strconv.ParseFloat(amount, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// ParseScore parses a signed integer such as "+12", "-3" or "1,024".
// It returns nil when the text is not a number.
func ParseScore(s string) *int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}
