package service

import (
	"context"
	"strings"

	"github.com/mmeshcher/gatedmart/internal/model"
	"github.com/mmeshcher/gatedmart/internal/validation"
)

// BeginVerification переводит пользователя в ожидание имени рекомендателя.
// Доступно только в статусах NEW и DECLINED.
func (s *Service) BeginVerification(ctx context.Context, userID int64) error {
	acc, err := s.repo.GetAccount(ctx, userID)
	if err != nil {
		return err
	}

	switch acc.Status {
	case model.AdmissionNew, model.AdmissionDeclined:
	case model.AdmissionPending:
		return model.ErrAwaitingReview
	default:
		return model.ErrVerificationClosed
	}

	return s.repo.SetInteractionState(ctx, userID, model.StateAwaitingVouch)
}

// SubmitVoucher принимает имя рекомендателя и создаёт заявку на допуск.
// Некорректный ввод не меняет состояние: пользователь остаётся в ожидании имени.
func (s *Service) SubmitVoucher(ctx context.Context, userID int64, text string) (*model.Claim, error) {
	acc, err := s.repo.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	if acc.Status == model.AdmissionPending {
		return nil, model.ErrAwaitingReview
	}
	if acc.State != model.StateAwaitingVouch {
		return nil, model.ErrUnexpectedInput
	}

	handle := strings.TrimSpace(text)
	if !validation.IsValidVoucherHandle(handle) {
		return nil, model.ErrInvalidVoucher
	}

	return s.repo.CreateClaim(ctx, userID, handle)
}
