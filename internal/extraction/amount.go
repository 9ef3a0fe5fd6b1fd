package extraction

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a printed amount into a decimal. Currency symbols and
// codes around the number are ignored. The last '.' or ',' is the decimal
// separator when one or two digits follow it, every other separator groups
// thousands: "1.234,56", "1,234.56" and "€ 1234,56" are all 1234.56.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	start := strings.IndexFunc(s, unicode.IsDigit)
	if start == -1 {
		return decimal.Zero, false
	}
	end := strings.LastIndexFunc(s, unicode.IsDigit) + 1

	prefix, core := s[:start], s[start:end]
	negative := strings.ContainsAny(prefix, "-(")
	if strings.ContainsAny(prefix, ".,") {
		// ".50" and ",50"
		core = prefix[len(prefix)-1:] + core
		prefix = prefix[:len(prefix)-1]
	}

	for _, r := range core {
		if !unicode.IsDigit(r) && r != '.' && r != ',' {
			return decimal.Zero, false
		}
	}

	intPart, fracPart := core, ""
	if i := strings.LastIndexAny(core, ".,"); i != -1 {
		if digits := len(core) - i - 1; digits == 1 || digits == 2 {
			intPart, fracPart = core[:i], core[i+1:]
		}
	}
	intPart = strings.NewReplacer(".", "", ",", "").Replace(intPart)
	if intPart == "" {
		intPart = "0"
	}

	literal := intPart
	if fracPart != "" {
		literal += "." + fracPart
	}
	d, err := decimal.NewFromString(literal)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// amountsIn returns every word of the line that reads as an amount, in order
func amountsIn(texts []string) []decimal.Decimal {
	var amounts []decimal.Decimal
	for _, t := range texts {
		if d, ok := ParseAmount(t); ok {
			amounts = append(amounts, d)
		}
	}
	return amounts
}
