package i18n

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/gatedmart/internal/model"
)

func TestCatalogsAreComplete(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	base := c.Keys(model.DefaultLanguage)
	require.NotEmpty(t, base)

	for _, lang := range model.Languages {
		for _, key := range base {
			text, ok := c.texts[lang][key]
			if !assert.Truef(t, ok, "%s: missing key %q", lang, key) {
				continue
			}
			want := strings.Count(c.texts[model.DefaultLanguage][key], "%")
			assert.Equalf(t, want, strings.Count(text, "%"), "%s: verb count differs for %q", lang, key)
		}
		assert.Lenf(t, c.Keys(lang), len(base), "%s: unexpected extra keys", lang)
	}
}

func TestText(t *testing.T) {
	c := MustLoad()

	assert.Equal(t, "Order #7 is already completed.", c.Text(model.LanguageEnglish, "admin_order_already", 7))
	assert.Equal(t, "Pood on praegu suletud. Palun proovi hiljem.", c.Text(model.LanguageEstonian, "store_offline"))
	assert.Equal(t, "Your cart is empty.", c.Text("xx", "cart_empty"))
	assert.Equal(t, "no_such_key", c.Text(model.LanguageEnglish, "no_such_key"))
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{cents: 0, want: "0.00 €"},
		{cents: 5, want: "0.05 €"},
		{cents: 1300, want: "13.00 €"},
		{cents: 2050, want: "20.50 €"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPrice(tt.cents))
	}
}
