// Package i18n содержит тексты интерфейса на поддерживаемых языках и форматирование цен.
package i18n

import (
	"embed"
	"fmt"
	"path"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/mmeshcher/gatedmart/internal/model"
)

//go:embed locales/*.yaml
var localesFS embed.FS

// Catalog хранит тексты по языку и ключу.
type Catalog struct {
	texts    map[model.Language]map[string]string
	fallback model.Language
}

// Load читает встроенные каталоги всех поддерживаемых языков.
func Load() (*Catalog, error) {
	c := &Catalog{
		texts:    make(map[model.Language]map[string]string, len(model.Languages)),
		fallback: model.DefaultLanguage,
	}

	for _, lang := range model.Languages {
		raw, err := localesFS.ReadFile(path.Join("locales", string(lang)+".yaml"))
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", lang, err)
		}

		texts := make(map[string]string)
		if err := yaml.Unmarshal(raw, &texts); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", lang, err)
		}
		c.texts[lang] = texts
	}

	return c, nil
}

// MustLoad как Load, но паникует при ошибке. Каталоги встроены в бинарник.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// Text возвращает текст по ключу, подставляя аргументы. При отсутствии перевода
// используется язык по умолчанию, затем сам ключ.
func (c *Catalog) Text(lang model.Language, key string, args ...any) string {
	tmpl, ok := c.texts[lang][key]
	if !ok {
		tmpl, ok = c.texts[c.fallback][key]
	}
	if !ok {
		tmpl = key
	}

	tmpl = strings.TrimRight(tmpl, "\n")
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

// Keys возвращает ключи каталога языка.
func (c *Catalog) Keys(lang model.Language) []string {
	keys := make([]string, 0, len(c.texts[lang]))
	for k := range c.texts[lang] {
		keys = append(keys, k)
	}
	return keys
}

// FormatPrice форматирует сумму в центах: 1300 -> "13.00 €".
func FormatPrice(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2) + " €"
}
