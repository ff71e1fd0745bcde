package repository

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mmeshcher/gatedmart/internal/model"
	"github.com/mmeshcher/gatedmart/internal/validation"
)

// ItemWriter принимает позиции каталога при начальной загрузке.
type ItemWriter interface {
	UpsertItem(ctx context.Context, item model.Item) (*model.Item, error)
}

type catalogEntry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	Image       string `yaml:"image"`
}

// ReadCatalog разбирает YAML-список позиций вида:
//
//	- name: Tea
//	  description: Black tea
//	  price: "5.00"
//	  image: tea.jpg
func ReadCatalog(r io.Reader) ([]model.Item, error) {
	var entries []catalogEntry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	items := make([]model.Item, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("catalog entry %d: %w: empty name", i+1, model.ErrValidation)
		}
		if seen[name] {
			return nil, fmt.Errorf("catalog entry %d: %w: duplicate name %q", i+1, model.ErrValidation, name)
		}
		seen[name] = true

		price, ok := validation.ParseAmountCents(e.Price)
		if !ok {
			return nil, fmt.Errorf("catalog entry %q: %w", name, model.ErrInvalidAmount)
		}

		items = append(items, model.Item{
			Name:        name,
			Description: strings.TrimSpace(e.Description),
			PriceCents:  price,
			ImageRef:    strings.TrimSpace(e.Image),
		})
	}
	return items, nil
}

// SeedCatalogFile загружает каталог из файла и записывает его в хранилище.
func SeedCatalogFile(ctx context.Context, w ItemWriter, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	items, err := ReadCatalog(f)
	if err != nil {
		return 0, err
	}

	for _, it := range items {
		if _, err := w.UpsertItem(ctx, it); err != nil {
			return 0, err
		}
	}
	return len(items), nil
}
