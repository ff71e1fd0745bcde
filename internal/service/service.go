// Package service реализует бизнес-логику маркетплейса: допуск пользователей, корзину и заказы.
package service

import (
	"context"
	"fmt"

	"github.com/mmeshcher/gatedmart/internal/cart"
	"github.com/mmeshcher/gatedmart/internal/model"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	TouchAccount(ctx context.Context, id int64, username string, lang model.Language) (*model.Account, error)
	GetAccount(ctx context.Context, id int64) (*model.Account, error)
	SetLanguage(ctx context.Context, id int64, lang model.Language) error
	SetInteractionState(ctx context.Context, id int64, state model.InteractionState) error
	SetAdmissionStatus(ctx context.Context, id int64, status model.AdmissionStatus) error

	CreateClaim(ctx context.Context, applicantID int64, handle string) (*model.Claim, error)
	GetClaim(ctx context.Context, id int64) (*model.Claim, error)
	DecideClaim(ctx context.Context, id int64, decision model.ClaimStatus) (*model.Claim, model.ClaimOutcome, error)

	ListItems(ctx context.Context) ([]model.Item, error)
	GetItem(ctx context.Context, id int64) (*model.Item, error)

	CreateOrder(ctx context.Context, o model.Order) (*model.Order, error)
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	SetDeliveryFee(ctx context.Context, id int64, feeCents int64) (*model.Order, error)
	CompleteOrder(ctx context.Context, id int64) (*model.Order, bool, error)

	IsOnline(ctx context.Context) (bool, error)
	SetOnline(ctx context.Context, online bool) error
}

// Service содержит бизнес-логику маркетплейса.
type Service struct {
	repo            Repository
	sessions        cart.Store
	adminID         int64
	defaultLanguage model.Language
}

// NewService создаёт сервис. adminID задаёт единственного администратора.
func NewService(repo Repository, sessions cart.Store, adminID int64, defaultLanguage model.Language) *Service {
	if !defaultLanguage.IsSupported() {
		defaultLanguage = model.DefaultLanguage
	}
	return &Service{
		repo:            repo,
		sessions:        sessions,
		adminID:         adminID,
		defaultLanguage: defaultLanguage,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// AdminID возвращает идентификатор администратора.
func (s *Service) AdminID() int64 {
	return s.adminID
}

// IsAdmin сообщает, является ли пользователь администратором.
func (s *Service) IsAdmin(userID int64) bool {
	return s.adminID != 0 && userID == s.adminID
}

// Touch создаёт или освежает аккаунт отправителя события.
func (s *Service) Touch(ctx context.Context, userID int64, username string) (*model.Account, error) {
	return s.repo.TouchAccount(ctx, userID, username, s.defaultLanguage)
}

// Account возвращает аккаунт пользователя.
func (s *Service) Account(ctx context.Context, userID int64) (*model.Account, error) {
	return s.repo.GetAccount(ctx, userID)
}

// SetLanguage меняет язык. Допустимо в любом статусе и не меняет ни статус, ни корзину.
func (s *Service) SetLanguage(ctx context.Context, userID int64, lang model.Language) error {
	if !lang.IsSupported() {
		return model.ErrInvalidLanguage
	}
	return s.repo.SetLanguage(ctx, userID, lang)
}

// IsOnline сообщает, принимает ли витрина заказы.
func (s *Service) IsOnline(ctx context.Context) (bool, error) {
	return s.repo.IsOnline(ctx)
}

// Session возвращает эфемерную сессию пользователя.
func (s *Service) Session(ctx context.Context, userID int64) (cart.Session, error) {
	sess, err := s.sessions.Load(ctx, userID)
	if err != nil {
		return cart.Session{}, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

// SetScreen запоминает текущий экран пользователя.
func (s *Service) SetScreen(ctx context.Context, userID int64, screen string, arg int64) error {
	return s.updateSession(ctx, userID, func(sess *cart.Session) error {
		sess.Screen = screen
		sess.ScreenArg = arg
		return nil
	})
}

func (s *Service) updateSession(ctx context.Context, userID int64, fn func(*cart.Session) error) error {
	sess, err := s.sessions.Load(ctx, userID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	if err := fn(&sess); err != nil {
		return err
	}

	if err := s.sessions.Save(ctx, userID, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
