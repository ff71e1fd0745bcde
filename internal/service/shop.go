package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmeshcher/gatedmart/internal/cart"
	"github.com/mmeshcher/gatedmart/internal/model"
	"github.com/mmeshcher/gatedmart/internal/validation"
)

// MaxLineQuantity ограничивает количество одной позиции в корзине.
const MaxLineQuantity = 99

// Catalog возвращает позиции каталога.
func (s *Service) Catalog(ctx context.Context) ([]model.Item, error) {
	return s.repo.ListItems(ctx)
}

// Item возвращает позицию каталога.
func (s *Service) Item(ctx context.Context, id int64) (*model.Item, error) {
	return s.repo.GetItem(ctx, id)
}

// requireShopper проверяет, что пользователь допущен и витрина открыта.
func (s *Service) requireShopper(ctx context.Context, userID int64) (*model.Account, error) {
	acc, err := s.repo.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch acc.Status {
	case model.AdmissionSafe:
	case model.AdmissionPending:
		return nil, model.ErrAwaitingReview
	default:
		return nil, model.ErrNotAdmitted
	}

	online, err := s.repo.IsOnline(ctx)
	if err != nil {
		return nil, err
	}
	if !online {
		return nil, model.ErrStoreOffline
	}

	return acc, nil
}

// SetQuantity задаёт количество позиции в корзине; ноль удаляет строку.
func (s *Service) SetQuantity(ctx context.Context, userID, itemID int64, qty int) error {
	if qty < 0 || qty > MaxLineQuantity {
		return model.ErrInvalidQuantity
	}

	if _, err := s.requireShopper(ctx, userID); err != nil {
		return err
	}

	if qty > 0 {
		if _, err := s.repo.GetItem(ctx, itemID); err != nil {
			return err
		}
	}

	return s.updateSession(ctx, userID, func(sess *cart.Session) error {
		return sess.Cart.SetQuantity(itemID, qty)
	})
}

// ClearCart очищает корзину.
func (s *Service) ClearCart(ctx context.Context, userID int64) error {
	if _, err := s.requireShopper(ctx, userID); err != nil {
		return err
	}

	return s.updateSession(ctx, userID, func(sess *cart.Session) error {
		sess.Cart.Clear()
		return nil
	})
}

// CartView оценивает корзину по текущим ценам каталога.
// Позиции, удалённые из каталога, убираются из корзины.
func (s *Service) CartView(ctx context.Context, userID int64) (cart.Priced, error) {
	sess, err := s.sessions.Load(ctx, userID)
	if err != nil {
		return cart.Priced{}, fmt.Errorf("load session: %w", err)
	}

	if sess.Cart.IsEmpty() {
		return cart.Priced{}, nil
	}

	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return cart.Priced{}, err
	}

	catalog := make(map[int64]model.Item, len(items))
	for _, it := range items {
		catalog[it.ID] = it
	}

	priced := sess.Cart.Price(catalog)
	if len(priced.Missing) > 0 {
		for _, id := range priced.Missing {
			_ = sess.Cart.SetQuantity(id, 0)
		}
		if err := s.sessions.Save(ctx, userID, sess); err != nil {
			return cart.Priced{}, fmt.Errorf("save session: %w", err)
		}
	}

	return priced, nil
}

// BeginCheckout проверяет, что оформление возможно: пользователь допущен, витрина открыта, корзина не пуста.
func (s *Service) BeginCheckout(ctx context.Context, userID int64) (cart.Priced, error) {
	if _, err := s.requireShopper(ctx, userID); err != nil {
		return cart.Priced{}, err
	}

	priced, err := s.CartView(ctx, userID)
	if err != nil {
		return cart.Priced{}, err
	}
	if len(priced.Lines) == 0 || priced.SubtotalCents <= 0 {
		return cart.Priced{}, model.ErrEmptyCart
	}
	return priced, nil
}

// RequestDelivery переводит пользователя в ожидание адреса доставки.
func (s *Service) RequestDelivery(ctx context.Context, userID int64) error {
	if _, err := s.BeginCheckout(ctx, userID); err != nil {
		return err
	}
	return s.repo.SetInteractionState(ctx, userID, model.StateAwaitingAddress)
}

// Checkout оформляет заказ из корзины. Сумма пересчитывается по текущим ценам
// и фиксируется в заказе; корзина очищается.
func (s *Service) Checkout(ctx context.Context, userID int64, delivery bool, address string) (*model.Order, error) {
	acc, err := s.requireShopper(ctx, userID)
	if err != nil {
		return nil, err
	}

	if delivery {
		normalized, ok := validation.NormalizeAddress(address)
		if !ok {
			return nil, model.ErrAddressRequired
		}
		address = normalized
	} else {
		address = ""
	}

	priced, err := s.CartView(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(priced.Lines) == 0 || priced.SubtotalCents <= 0 {
		return nil, model.ErrEmptyCart
	}

	// Корзина очищается до создания заказа; если заказ создать не удалось, сессия восстанавливается.
	sess, err := s.sessions.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	cleared := sess
	cleared.Cart = cart.Cart{}
	if err := s.sessions.Save(ctx, userID, cleared); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	restore := func(cause error) error {
		errs := []error{cause}
		if err := s.sessions.Save(ctx, userID, sess); err != nil {
			errs = append(errs, fmt.Errorf("restore session: %w", err))
		}
		if acc.State != model.StateNone {
			if err := s.repo.SetInteractionState(ctx, userID, acc.State); err != nil {
				errs = append(errs, fmt.Errorf("restore state: %w", err))
			}
		}
		return errors.Join(errs...)
	}

	if acc.State != model.StateNone {
		if err := s.repo.SetInteractionState(ctx, userID, model.StateNone); err != nil {
			return nil, restore(err)
		}
	}

	order, err := s.repo.CreateOrder(ctx, model.Order{
		BuyerID:           userID,
		Lines:             priced.Lines,
		SubtotalCents:     priced.SubtotalCents,
		DeliveryRequested: delivery,
		Address:           address,
	})
	if err != nil {
		return nil, restore(err)
	}

	return order, nil
}

// CancelAddressEntry возвращает пользователя из ожидания адреса, корзина сохраняется.
func (s *Service) CancelAddressEntry(ctx context.Context, userID int64) error {
	acc, err := s.repo.GetAccount(ctx, userID)
	if err != nil {
		return err
	}
	if acc.State != model.StateAwaitingAddress {
		return nil
	}
	return s.repo.SetInteractionState(ctx, userID, model.StateNone)
}
