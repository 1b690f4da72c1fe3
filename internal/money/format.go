// Package money formats decimal amounts for notifications and chat replies.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var symbols = map[string]string{
	"INR": "₹",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
}

type Formatter struct {
	printer *message.Printer
	symbol  string
}

// NewFormatter builds a formatter for a BCP 47 locale (e.g. "en-IN") and an
// ISO 4217 currency code. Unknown values fall back to English and INR.
func NewFormatter(locale, code string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}

	unit, err := currency.ParseISO(strings.ToUpper(code))
	if err != nil {
		unit = currency.INR
	}

	symbol, ok := symbols[unit.String()]
	if !ok {
		symbol = unit.String() + " "
	}

	return &Formatter{
		printer: message.NewPrinter(tag),
		symbol:  symbol,
	}
}

// Format renders d with grouping separators and the currency symbol.
// Fractional paise/cents are shown only when non-zero.
func (f *Formatter) Format(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	d = d.Round(2)
	whole := d.Truncate(0)
	out := sign + f.symbol + f.printer.Sprintf("%d", whole.IntPart())

	frac := d.Sub(whole).Mul(decimal.NewFromInt(100)).IntPart()
	if frac != 0 {
		out += fmt.Sprintf(".%02d", frac)
	}
	return out
}

// Percent renders a percentage with one decimal place.
func (f *Formatter) Percent(p float64) string {
	return decimal.NewFromFloat(p).StringFixed(1) + "%"
}
