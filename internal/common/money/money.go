// Package money formats Chilean peso amounts the way the shop displays them.
package money

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.MustParse("es-CL"))

// FormatCLP renders n whole pesos with es-CL digit grouping, e.g. "$13.990".
func FormatCLP(n int64) string {
	if n < 0 {
		return "-" + printer.Sprintf("$%d", -n)
	}
	return printer.Sprintf("$%d", n)
}
