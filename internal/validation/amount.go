package validation

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmountCents ограничивает вводимые вручную суммы.
const MaxAmountCents int64 = 100_000_000

// ParseAmountCents разбирает денежную сумму вида "7.50" или "7,5" в центы.
// Отрицательные суммы и более двух знаков после запятой не допускаются.
func ParseAmountCents(raw string) (int64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return 0, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}

	if d.IsNegative() || !d.Equal(d.Round(2)) {
		return 0, false
	}

	cents := d.Shift(2)
	if cents.GreaterThan(decimal.NewFromInt(MaxAmountCents)) {
		return 0, false
	}

	return cents.IntPart(), true
}
