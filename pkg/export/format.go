package export

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

// amount renders x with thousands separators and two decimals.
func amount(x float64) string {
	return humanize.FormatFloat("#,###.##", x)
}

// wholeAmount renders x with thousands separators and no decimals.
func wholeAmount(x float64) string {
	return humanize.FormatFloat("#,###.", x)
}

func usd(x float64) string {
	return "$" + amount(x)
}

// ratioLabel renders a ratio such as 0.9 as "90%".
func ratioLabel(r float64) string {
	return fmt.Sprintf("%g%%", math.Round(r*10000)/100)
}
