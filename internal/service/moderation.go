package service

import (
	"context"
	"errors"
	"strings"

	"github.com/mmeshcher/gatedmart/internal/cart"
	"github.com/mmeshcher/gatedmart/internal/model"
	"github.com/mmeshcher/gatedmart/internal/validation"
)

// Moderator открывает операции администратора. Получить его можно только через Service.Moderator,
// поэтому проверка прав выполняется в одном месте.
type Moderator struct {
	s     *Service
	actor int64
}

// Moderator возвращает набор операций администратора или ErrNotAllowed для остальных пользователей.
func (s *Service) Moderator(actor int64) (*Moderator, error) {
	if !s.IsAdmin(actor) {
		return nil, model.ErrNotAllowed
	}
	return &Moderator{s: s, actor: actor}, nil
}

// DecideClaim принимает или отклоняет заявку. Повторное решение ничего не меняет.
// Если статус заявителя уже изменён администратором напрямую, заявка закрывается без последствий для него.
func (m *Moderator) DecideClaim(ctx context.Context, claimID int64, accept bool) (*model.Claim, model.ClaimOutcome, error) {
	decision := model.ClaimDeclined
	if accept {
		decision = model.ClaimAccepted
	}
	return m.s.repo.DecideClaim(ctx, claimID, decision)
}

// Grant допускает пользователя к витрине в обход заявки.
func (m *Moderator) Grant(ctx context.Context, userID int64) error {
	return m.s.repo.SetAdmissionStatus(ctx, userID, model.AdmissionSafe)
}

// Revoke отзывает допуск пользователя и удаляет его корзину.
func (m *Moderator) Revoke(ctx context.Context, userID int64) error {
	if err := m.s.repo.SetAdmissionStatus(ctx, userID, model.AdmissionNew); err != nil {
		return err
	}
	return m.s.sessions.Delete(ctx, userID)
}

// SetOnline открывает или закрывает витрину.
func (m *Moderator) SetOnline(ctx context.Context, online bool) error {
	return m.s.repo.SetOnline(ctx, online)
}

// SetDeliveryFee задаёт стоимость доставки. Для завершённого заказа возвращает ErrOrderCompleted.
func (m *Moderator) SetDeliveryFee(ctx context.Context, orderID, feeCents int64) (*model.Order, error) {
	if feeCents < 0 || feeCents > validation.MaxAmountCents {
		return nil, model.ErrInvalidAmount
	}
	return m.s.repo.SetDeliveryFee(ctx, orderID, feeCents)
}

// CompleteOrder завершает заказ ровно один раз и увеличивает сумму покупок покупателя на итог заказа.
func (m *Moderator) CompleteOrder(ctx context.Context, orderID int64) (*model.Order, bool, error) {
	return m.s.repo.CompleteOrder(ctx, orderID)
}

// PickupInfo проверяет заказ и текст с местом и временем выдачи. Статус заказа не меняется.
func (m *Moderator) PickupInfo(ctx context.Context, orderID int64, text string) (*model.Order, string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, "", model.ErrEmptyMessage
	}

	order, err := m.s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, "", err
	}
	return order, text, nil
}

// BeginFeeEntry переводит сессию администратора в ввод стоимости доставки для заказа.
func (m *Moderator) BeginFeeEntry(ctx context.Context, orderID int64) (*model.Order, error) {
	order, err := m.s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == model.FulfillmentDone {
		return nil, model.ErrOrderCompleted
	}

	err = m.s.updateSession(ctx, m.actor, func(sess *cart.Session) error {
		sess.PendingFeeOrder = orderID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// PendingFeeOrder возвращает заказ, для которого ожидается ввод стоимости доставки, или ноль.
func (m *Moderator) PendingFeeOrder(ctx context.Context) (int64, error) {
	sess, err := m.s.Session(ctx, m.actor)
	if err != nil {
		return 0, err
	}
	return sess.PendingFeeOrder, nil
}

// SubmitFee разбирает введённую сумму и применяет её к ожидающему заказу.
// При некорректной сумме режим ввода сохраняется.
func (m *Moderator) SubmitFee(ctx context.Context, raw string) (*model.Order, error) {
	orderID, err := m.PendingFeeOrder(ctx)
	if err != nil {
		return nil, err
	}
	if orderID == 0 {
		return nil, model.ErrUnexpectedInput
	}

	fee, ok := validation.ParseAmountCents(raw)
	if !ok {
		return nil, model.ErrInvalidAmount
	}

	order, err := m.SetDeliveryFee(ctx, orderID, fee)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}

	if clearErr := m.CancelFeeEntry(ctx); clearErr != nil {
		return nil, clearErr
	}
	return order, err
}

// CancelFeeEntry выходит из режима ввода стоимости доставки.
func (m *Moderator) CancelFeeEntry(ctx context.Context) error {
	return m.s.updateSession(ctx, m.actor, func(sess *cart.Session) error {
		sess.PendingFeeOrder = 0
		return nil
	})
}
