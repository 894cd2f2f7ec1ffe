package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var priceNumberRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParsePrice extracts a numeric price from a catalog string such as
// "61 263 руб." or "61263,50". Returns 0 when no number is present.
func ParsePrice(s string) float64 {
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "") // non-breaking space from price columns
	s = strings.ReplaceAll(s, "руб.", "")
	s = strings.ReplaceAll(s, "руб", "")
	s = strings.ReplaceAll(s, ",", ".")

	m := priceNumberRe.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return v
}

// FormatPrice renders a price for display: rounded to whole rubles with
// space-separated thousands, e.g. "12 345 руб.".
func FormatPrice(price float64) string {
	n := int64(math.Round(price))
	neg := n < 0
	if neg {
		n = -n
	}

	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(d)
	}

	out := b.String()
	if neg {
		out = "-" + out
	}
	return out + " руб."
}
