package funcs

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/constraints"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.English)

var TemplateFuncs = map[string]any{
	"formatTime":  formatTime,
	"formatMoney": formatMoney,
	"formatInt":   formatInt[int],
	"pluralize":   pluralize[int],
	"toUpper":     strings.ToUpper,
}

func formatTime(format string, t time.Time) string {
	return t.Format(format)
}

// formatMoney renders amounts as "$1,234.50". Amounts arrive as decimals,
// decimal strings or floats depending on the caller.
func formatMoney(v any) string {
	var d decimal.Decimal

	switch amount := v.(type) {
	case decimal.Decimal:
		d = amount
	case string:
		parsed, err := decimal.NewFromString(amount)
		if err != nil {
			return amount
		}
		d = parsed
	case float64:
		d = decimal.NewFromFloat(amount)
	case int:
		d = decimal.NewFromInt(int64(amount))
	default:
		return fmt.Sprint(v)
	}

	f, _ := d.Round(2).Float64()
	return printer.Sprintf("$%v", number.Decimal(f, number.Scale(2)))
}

func formatInt[T constraints.Integer](i T) string {
	return printer.Sprintf("%d", i)
}

func pluralize[T constraints.Integer](count T, singular, plural string) string {
	if count == 1 {
		return singular
	}

	return plural
}
