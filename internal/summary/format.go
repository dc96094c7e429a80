package summary

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatCents renders a minor-unit amount as display currency, e.g.
// -500000 -> "-$5,000.00". Formatting to display currency happens only
// here and in rendering; the engines stay in minor units.
func FormatCents(cents int64) string {
	amount := decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
	text := amount.Abs().StringFixed(2)

	whole, frac, _ := strings.Cut(text, ".")
	sign := ""
	if cents < 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s$%s.%s", sign, groupThousands(whole), frac)
}

// FormatPct renders a 0..1 fraction as a percentage.
func FormatPct(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

// FormatPctDelta renders a signed fractional change with an explicit
// leading sign.
func FormatPctDelta(v float64) string {
	return fmt.Sprintf("%+.1f%%", v*100)
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
