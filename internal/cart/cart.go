// Package cart содержит корзину покупателя и хранилища пользовательских сессий.
package cart

import (
	"sort"

	"github.com/mmeshcher/gatedmart/internal/model"
)

// Cart хранит выбранные позиции каталога и их количество. Нулевых строк в корзине не бывает.
type Cart struct {
	Lines map[int64]int `json:"lines,omitempty"`
}

// SetQuantity устанавливает количество позиции; ноль удаляет строку.
func (c *Cart) SetQuantity(itemID int64, qty int) error {
	if qty < 0 {
		return model.ErrInvalidQuantity
	}

	if qty == 0 {
		delete(c.Lines, itemID)
		return nil
	}

	if c.Lines == nil {
		c.Lines = make(map[int64]int)
	}
	c.Lines[itemID] = qty
	return nil
}

// Quantity возвращает количество позиции в корзине.
func (c Cart) Quantity(itemID int64) int {
	return c.Lines[itemID]
}

// Clear очищает корзину.
func (c *Cart) Clear() {
	c.Lines = nil
}

// IsEmpty сообщает, пуста ли корзина.
func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// ItemIDs возвращает идентификаторы позиций по возрастанию.
func (c Cart) ItemIDs() []int64 {
	ids := make([]int64, 0, len(c.Lines))
	for id := range c.Lines {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Priced описывает корзину, оценённую по текущим ценам каталога.
type Priced struct {
	Lines         []model.OrderLine
	SubtotalCents int64
	// Missing содержит позиции, которых больше нет в каталоге.
	Missing []int64
}

// Price оценивает корзину по переданному каталогу. Сумма всегда пересчитывается заново.
func (c Cart) Price(catalog map[int64]model.Item) Priced {
	var p Priced
	for _, id := range c.ItemIDs() {
		item, ok := catalog[id]
		if !ok {
			p.Missing = append(p.Missing, id)
			continue
		}

		line := model.OrderLine{
			ItemID:         id,
			Name:           item.Name,
			Quantity:       c.Lines[id],
			UnitPriceCents: item.PriceCents,
		}
		p.Lines = append(p.Lines, line)
		p.SubtotalCents += line.TotalCents()
	}
	return p
}

func (c Cart) clone() Cart {
	if c.Lines == nil {
		return Cart{}
	}
	lines := make(map[int64]int, len(c.Lines))
	for id, qty := range c.Lines {
		lines[id] = qty
	}
	return Cart{Lines: lines}
}
